//go:build integration

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cardmap/cardmap-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "cardmap.db"
		}
		return store.NewSQLite(path, lookupTTL())
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool, lookupTTL())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
