package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/voice-notes/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search notes by text",
		Long: "Case-insensitive substring search over title, category, summary, transcription, " +
			"telegram handle and every value inside the metadata. An empty query lists all notes.",
		Run: runSearch,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.TrimSpace(strings.Join(args, " "))

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var results []model.Note
	if query == "" {
		results, err = s.ListAll(cmd.Context())
	} else {
		results, err = s.Search(cmd.Context(), query)
	}
	if err != nil {
		exitErr("search", err)
	}

	results = newestFirst(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	writeNotes(cmd.OutOrStdout(), results, time.Now())
}
