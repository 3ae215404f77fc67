package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "handle <id> [telegram-handle]",
		Short: "Set or clear the telegram handle of a note",
		Long:  "Attach a telegram handle to a note. Omit the handle to clear it.",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runHandle,
	}

	RootCmd.AddCommand(cmd)
}

func runHandle(cmd *cobra.Command, args []string) {
	id, err := parseID(args[0])
	if err != nil {
		exitErr("handle", err)
	}
	handle := ""
	if len(args) == 2 {
		handle = args[1]
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	note, err := s.SetTelegramHandle(cmd.Context(), id, handle)
	if err != nil {
		exitErr("handle", err)
	}
	writeNote(cmd.OutOrStdout(), note, time.Now())
}
