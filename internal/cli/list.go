package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/voice-notes/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Run:   runList,
	}

	cmd.Flags().StringP("category", "c", "", "Only notes in this category (case-insensitive)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var notes []model.Note
	if category != "" {
		notes, err = s.ListByCategory(cmd.Context(), category)
	} else {
		notes, err = s.ListAll(cmd.Context())
	}
	if err != nil {
		exitErr("list", err)
	}

	notes = newestFirst(notes)
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	writeNotes(cmd.OutOrStdout(), notes, time.Now())
}
