package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/language"
)

func newLanguagesCommand() *cobra.Command {
	var withNotes bool

	cmd := &cobra.Command{
		Use:         "languages",
		Short:       "List supported target languages",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			columns := []tableColumn{{header: "Code"}, {header: "Language"}, {header: "Native"}}
			if withNotes {
				columns = append(columns, tableColumn{header: "Note", maxWidth: 48})
			}
			var rows [][]string
			for _, target := range language.Supported() {
				row := []string{target.Code, target.Label, target.Native()}
				if withNotes {
					row = append(row, target.Note)
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withNotes, "notes", false, "Include a short note about each language")
	return cmd
}
