// Package store persists everything that outlives one session: the
// user's visibility preferences, the per-entry resolution log, and
// cached geocoding results. Two backends exist, SQLite for the local
// single-user case and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/geocode"
)

// Store is the persistence interface for the overlay pipeline. Its
// Lookup/Store pair satisfies geocode.Cache so a store can back the
// geocoding client's result cache directly.
type Store interface {
	// Visibility preferences, keyed by board. VisibilityState returns
	// (nil, nil) when the board has no saved state yet.
	VisibilityState(ctx context.Context, boardID string) (*model.VisibilityState, error)
	SaveVisibilityState(ctx context.Context, boardID string, st model.VisibilityState) error

	// Per-group default-visibility overrides, applied when a board has
	// no saved state.
	GroupDefaults(ctx context.Context, boardID string) (map[string]bool, error)
	SaveGroupDefault(ctx context.Context, boardID, groupID string, visible bool) error

	// Resolution audit log.
	RecordResolution(ctx context.Context, rec model.ResolutionRecord) error
	Resolutions(ctx context.Context, boardID string, limit int) ([]model.ResolutionRecord, error)
	ResolutionCounts(ctx context.Context, boardID string) (map[model.ResolutionStatus]int, error)

	// Geocode lookup cache.
	Lookup(ctx context.Context, key string) ([]geocode.Result, bool, error)
	Store(ctx context.Context, key, query string, results []geocode.Result) error
	DeleteExpiredLookups(ctx context.Context) (int, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
