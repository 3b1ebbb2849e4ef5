package main

import (
	"context"
	"fmt"

	"github.com/sievefin/tradesift/internal/config"
	"github.com/sievefin/tradesift/internal/service"
	"github.com/sievefin/tradesift/internal/storage"
)

// initStorage opens the configured database and applies migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
