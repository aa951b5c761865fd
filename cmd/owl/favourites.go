package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/owl/internal/bootstrap"
)

func newFavouritesCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "favourites",
		Aliases: []string{"fav"},
		Short:   "Manage favourite words",
	}
	command.AddCommand(
		newFavouritesAddCommand(),
		newFavouritesRemoveCommand(),
		newFavouritesListCommand(),
		newFavouritesExportCommand(),
		newFavouritesImportCommand(),
	)
	return command
}

func newFavouritesAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <word>...",
		Short: "Mark words as favourites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				for _, word := range args {
					added, err := components.Service.AddFavourite(ctx, word)
					if err != nil {
						return fmt.Errorf("AddFavourite(%s) > %w", word, err)
					}
					if added {
						color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "added %s\n", word)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is already a favourite\n", word)
					}
				}
				return nil
			})
		},
	}
}

func newFavouritesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <word>...",
		Aliases: []string{"rm"},
		Short:   "Remove words from the favourites",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				for _, word := range args {
					removed, err := components.Service.RemoveFavourite(ctx, word)
					if err != nil {
						return fmt.Errorf("RemoveFavourite(%s) > %w", word, err)
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", word)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is not a favourite\n", word)
					}
				}
				return nil
			})
		},
	}
}

func newFavouritesListCommand() *cobra.Command {
	var format Format
	command := &cobra.Command{
		Use:   "list",
		Short: "List favourites, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				records, err := components.Service.Favourites(ctx)
				if err != nil {
					return err
				}
				if format != FormatText {
					return format.writeData(cmd.OutOrStdout(), records)
				}
				for _, record := range records {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", record.Term, record.CreatedAt.Local().Format(time.DateTime)); err != nil {
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

func newFavouritesExportCommand() *cobra.Command {
	var output string
	command := &cobra.Command{
		Use:   "export",
		Short: "Export favourites as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("os.Create(%s) > %w", output, err)
					}
					defer func() {
						_ = file.Close()
					}()
					w = file
				}
				return components.Service.ExportFavourites(ctx, w)
			})
		},
	}
	command.Flags().StringVar(&output, "output", "", "file to write instead of stdout")
	return command
}

func newFavouritesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import favourites exported as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("os.Open(%s) > %w", args[0], err)
			}
			defer func() {
				_ = file.Close()
			}()

			ctx := cmd.Context()
			return withComponents(ctx, func(components *bootstrap.Components) error {
				imported, err := components.Service.ImportFavourites(ctx, file)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d favourites\n", imported)
				return err
			})
		},
	}
}
