//go:build !integration

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cardmap/cardmap-cli/internal/store"
)

// initStore opens the configured store backend. Default builds carry
// only the SQLite driver; postgres needs the integration tag.
func initStore(_ context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "cardmap.db"
		}
		return store.NewSQLite(path, lookupTTL())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
