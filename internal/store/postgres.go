package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cardmap/cardmap-cli/internal/db"
	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	lookupTTL time.Duration
	closeFn   func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. lookupTTL
// bounds the geocode cache; zero means DefaultLookupTTL.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, lookupTTL time.Duration) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	if lookupTTL <= 0 {
		lookupTTL = DefaultLookupTTL
	}
	return &PostgresStore{pool: pool, lookupTTL: lookupTTL, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS visibility_state (
	board_id   TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS group_defaults (
	board_id   TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	visible    BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (board_id, group_id)
);

CREATE TABLE IF NOT EXISTS resolution_log (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	board_id   TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	candidate  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	lat        DOUBLE PRECISION,
	lng        DOUBLE PRECISION,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	key        TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	results    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolution_log_board ON resolution_log(board_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_resolution_log_status ON resolution_log(board_id, status);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) VisibilityState(ctx context.Context, boardID string) (*model.VisibilityState, error) {
	var stateJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM visibility_state WHERE board_id = $1`, boardID,
	).Scan(&stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get visibility state")
	}

	var st model.VisibilityState
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal visibility state")
	}
	return &st, nil
}

func (s *PostgresStore) SaveVisibilityState(ctx context.Context, boardID string, st model.VisibilityState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal visibility state")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO visibility_state (board_id, state, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (board_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		boardID, stateJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save visibility state")
}

func (s *PostgresStore) GroupDefaults(ctx context.Context, boardID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT group_id, visible FROM group_defaults WHERE board_id = $1`, boardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get group defaults")
	}
	defer rows.Close()

	defaults := make(map[string]bool)
	for rows.Next() {
		var groupID string
		var visible bool
		if err := rows.Scan(&groupID, &visible); err != nil {
			return nil, eris.Wrap(err, "postgres: scan group default")
		}
		defaults[groupID] = visible
	}
	return defaults, eris.Wrap(rows.Err(), "postgres: group defaults iterate")
}

func (s *PostgresStore) SaveGroupDefault(ctx context.Context, boardID, groupID string, visible bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_defaults (board_id, group_id, visible, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (board_id, group_id) DO UPDATE SET visible = EXCLUDED.visible, updated_at = EXCLUDED.updated_at`,
		boardID, groupID, visible, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save group default %s", groupID)
}

func (s *PostgresStore) RecordResolution(ctx context.Context, rec model.ResolutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var lat, lng any
	if rec.Coords != nil {
		lat, lng = rec.Coords.Lat, rec.Coords.Lng
	}
	var errMsg any
	if rec.Error != "" {
		errMsg = rec.Error
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO resolution_log (id, board_id, item_id, candidate, status, lat, lng, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.BoardID, rec.ItemID, rec.Candidate, string(rec.Status), lat, lng, errMsg, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert resolution")
}

func (s *PostgresStore) Resolutions(ctx context.Context, boardID string, limit int) ([]model.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, board_id, item_id, candidate, status, lat, lng, error, created_at
		 FROM resolution_log WHERE board_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		boardID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resolutions")
	}
	defer rows.Close()

	var recs []model.ResolutionRecord
	for rows.Next() {
		rec, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: resolutions iterate")
}

func (s *PostgresStore) ResolutionCounts(ctx context.Context, boardID string) (map[model.ResolutionStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM resolution_log WHERE board_id = $1 GROUP BY status`,
		boardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: resolution counts")
	}
	defer rows.Close()

	counts := make(map[model.ResolutionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resolution count")
		}
		counts[model.ResolutionStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: resolution counts iterate")
}

func (s *PostgresStore) Lookup(ctx context.Context, key string) ([]geocode.Result, bool, error) {
	var resultsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT results FROM lookup_cache WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&resultsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached lookup")
	}

	var results []geocode.Result
	if err := json.Unmarshal(resultsJSON, &results); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal cached lookup")
	}
	return results, true, nil
}

func (s *PostgresStore) Store(ctx context.Context, key, query string, results []geocode.Result) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lookup results")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lookup_cache (key, query, results, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET query = EXCLUDED.query, results = EXCLUDED.results,
		 cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		key, query, resultsJSON, now, now.Add(s.lookupTTL),
	)
	return eris.Wrap(err, "postgres: set cached lookup")
}

func (s *PostgresStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lookup_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired lookups")
	}
	return int(tag.RowsAffected()), nil
}
