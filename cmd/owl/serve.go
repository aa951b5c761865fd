package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/owl/internal/bootstrap"
	"github.com/at-ishikawa/owl/internal/server"
)

func newServeCommand() *cobra.Command {
	var port int
	command := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dictionary over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := bootstrap.NewApp()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loadConfig() > %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			components, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return fmt.Errorf("bootstrap.Build > %w", err)
			}
			app.AddShutdownHook(components.Close)

			logger := slog.Default()
			handler := server.NewHandler(components.Service, server.WithLogger(logger))
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           h2c.NewHandler(server.NewRouter(handler, cfg.Server.CORS.AllowedOrigins, logger), &http2.Server{}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			app.AddShutdownHook(srv.Shutdown)

			return app.Run(ctx, func(ctx context.Context) error {
				logger.InfoContext(ctx, "starting server", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	command.Flags().IntVar(&port, "port", 8080, "port to listen on, overriding server.port")
	return command
}
