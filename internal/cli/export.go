package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all notes",
		Long:  "Write every note, oldest first, as JSON or YAML to stdout.",
		Run:   runExport,
	}

	cmd.Flags().String("as", "json", "Encoding: json or yaml")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	as, _ := cmd.Flags().GetString("as")
	if as != "json" && as != "yaml" {
		exitErr("export", fmt.Errorf("unsupported encoding %q", as))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	notes, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	if as == "yaml" {
		b, err := yaml.Marshal(notes)
		if err != nil {
			exitErr("encode yaml", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return
	}
	printJSON(cmd.OutOrStdout(), notes)
}
