package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/assets"
	"github.com/at-ishikawa/owl/internal/bootstrap"
	"github.com/at-ishikawa/owl/internal/lookup"
)

func newLookupCommand() *cobra.Command {
	var (
		format       Format
		templatePath string
	)
	command := &cobra.Command{
		Use:   "lookup <word>...",
		Short: "Look words up, using the cache when possible",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := assets.ParseEntryTemplate(templatePath)
			if err != nil {
				return fmt.Errorf("assets.ParseEntryTemplate > %w", err)
			}

			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				failed := 0
				for i, word := range args {
					result, err := components.Service.Search(ctx, word)
					if err != nil {
						if printOutcome(cmd.ErrOrStderr(), word, err) {
							failed++
						}
						continue
					}
					if i > 0 && format == FormatText {
						fmt.Fprintln(cmd.OutOrStdout())
					}
					if err := format.writeResult(cmd.OutOrStdout(), result, tmpl); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d lookups failed", failed, len(args))
				}
				return nil
			})
		},
	}
	addFormatFlag(command.Flags(), &format)
	command.Flags().StringVar(&templatePath, "template", "", "text/template file used to print entries")
	return command
}

// printOutcome reports a failed search the way a user should see it, and returns false when nothing was shown.
func printOutcome(w io.Writer, word string, err error) bool {
	outcome := lookup.Describe(err)
	if outcome.Silent {
		return false
	}
	red := color.New(color.FgRed)
	if _, printErr := red.Fprintf(w, "%s: %s\n", word, outcome.Message); printErr != nil {
		return true
	}
	if outcome.Retryable {
		_, _ = color.New(color.Faint).Fprintln(w, "Run the command again to retry.")
	}
	return true
}
