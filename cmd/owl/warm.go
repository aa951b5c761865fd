package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/assets"
	"github.com/at-ishikawa/owl/internal/bootstrap"
)

func newWarmCommand() *cobra.Command {
	var file string
	command := &cobra.Command{
		Use:   "warm [word]...",
		Short: "Fetch words into the cache ahead of time",
		RunE: func(cmd *cobra.Command, args []string) error {
			words := args
			if file != "" {
				fromFile, err := assets.LoadKnownTerms(file)
				if err != nil {
					return fmt.Errorf("assets.LoadKnownTerms > %w", err)
				}
				words = append(words, fromFile...)
			}
			if len(words) == 0 {
				return fmt.Errorf("no words to warm, pass words or --file")
			}

			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				results, err := components.Service.Warm(ctx, words)
				green := color.New(color.FgGreen)
				failed := 0
				for _, result := range results {
					switch {
					case result.Err == nil && result.FromCache:
						fmt.Fprintf(cmd.OutOrStdout(), "%s (cached)\n", result.Term)
					case result.Err == nil:
						green.Fprintf(cmd.OutOrStdout(), "%s\n", result.Term)
					default:
						if printOutcome(cmd.ErrOrStderr(), string(result.Term), result.Err) {
							failed++
						}
					}
				}
				if err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d words could not be fetched", failed, len(results))
				}
				return nil
			})
		},
	}
	command.Flags().StringVar(&file, "file", "", "file with one word per line")
	return command
}
