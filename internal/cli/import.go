package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/voice-notes/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import notes from an export",
		Long:  "Import notes (stdin or --file) in the format produced by export. Ids are reassigned; dates are kept.",
		Run:   runImport,
	}

	cmd.Flags().String("as", "json", "Encoding: json or yaml")
	cmd.Flags().String("file", "", "Read from this file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func decodeNotes(data []byte, as string) ([]model.Note, error) {
	var notes []model.Note
	switch as {
	case "json":
		if err := json.Unmarshal(data, &notes); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &notes); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", as)
	}
	return notes, nil
}

func runImport(cmd *cobra.Command, args []string) {
	as, _ := cmd.Flags().GetString("as")
	file, _ := cmd.Flags().GetString("file")

	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		exitErr("read input", err)
	}

	notes, err := decodeNotes(data, as)
	if err != nil {
		exitErr("import", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), notes)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}
