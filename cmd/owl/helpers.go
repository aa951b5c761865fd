package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/at-ishikawa/owl/internal/bootstrap"
	"github.com/at-ishikawa/owl/internal/config"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// withComponents builds the lookup components, runs fn and closes them.
func withComponents(ctx context.Context, fn func(components *bootstrap.Components) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	components, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap.Build > %w", err)
	}
	defer func() {
		if closeErr := components.Close(ctx); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(components)
}
