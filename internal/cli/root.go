// Package cli implements the voice-notes CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcliao/voice-notes/internal/config"
	"github.com/rcliao/voice-notes/internal/logging"
	"github.com/rcliao/voice-notes/internal/store"
)

var (
	dbPath     string
	formatFlag string
	envFile    string

	cfg    *config.Config
	logger = zerolog.Nop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "voice-notes",
	Short: "Record, transcribe and search voice notes",
	Long: "Capture audio, transcribe it, let a language model title, categorize and summarize it, " +
		"and keep the result in a local SQLite database you can search.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $VOICE_NOTES_DB_PATH or ~/.voice-notes/notes.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file (default: ./.env when present)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath
	}
	return config.DefaultDBPath()
}

func openStore() (*store.SQLiteStore, error) {
	return store.Open(getDBPath())
}

func textOutput() bool {
	return formatFlag == "text"
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// notice prints a short user-facing message for problems the user can fix.
func notice(msg string) {
	fmt.Fprintf(os.Stderr, "notice: %s\n", msg)
}
