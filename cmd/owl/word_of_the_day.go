package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/assets"
	"github.com/at-ishikawa/owl/internal/bootstrap"
)

func newWordOfTheDayCommand() *cobra.Command {
	var (
		format Format
		date   string
	)
	command := &cobra.Command{
		Use:     "word-of-the-day",
		Aliases: []string{"wotd"},
		Short:   "Show the word of the day",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.ParseInLocation(time.DateOnly, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", date, err)
				}
				day = parsed
			}
			tmpl, err := assets.ParseEntryTemplate("")
			if err != nil {
				return fmt.Errorf("assets.ParseEntryTemplate > %w", err)
			}

			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				result, err := components.Service.WordOfTheDay(ctx, day)
				if err != nil {
					if printOutcome(cmd.ErrOrStderr(), date, err) {
						return err
					}
					return nil
				}
				return format.writeResult(cmd.OutOrStdout(), result, tmpl)
			})
		},
	}
	addFormatFlag(command.Flags(), &format)
	command.Flags().StringVar(&date, "date", "", "day to pick the word for, as YYYY-MM-DD (default today)")
	return command
}
