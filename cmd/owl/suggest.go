package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/bootstrap"
)

func newSuggestCommand() *cobra.Command {
	var format Format
	command := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest words from the search history and the known words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(components *bootstrap.Components) error {
				suggestions := components.Service.Suggest(args[0])
				if format != FormatText {
					return format.writeData(cmd.OutOrStdout(), suggestions)
				}
				for _, suggestion := range suggestions {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), suggestion.Term); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	addFormatFlag(command.Flags(), &format)
	return command
}
