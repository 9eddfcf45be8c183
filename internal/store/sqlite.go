package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cardmap/cardmap-cli/internal/model"
	"github.com/cardmap/cardmap-cli/pkg/geocode"
)

// DefaultLookupTTL is how long cached geocode results stay valid when
// the config does not say otherwise.
const DefaultLookupTTL = 30 * 24 * time.Hour

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	lookupTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode. lookupTTL bounds the geocode cache; zero means
// DefaultLookupTTL.
func NewSQLite(dsn string, lookupTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if lookupTTL <= 0 {
		lookupTTL = DefaultLookupTTL
	}
	return &SQLiteStore{db: db, lookupTTL: lookupTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS visibility_state (
	board_id   TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS group_defaults (
	board_id   TEXT NOT NULL,
	group_id   TEXT NOT NULL,
	visible    INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (board_id, group_id)
);

CREATE TABLE IF NOT EXISTS resolution_log (
	id         TEXT PRIMARY KEY,
	board_id   TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	candidate  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	lat        REAL,
	lng        REAL,
	error      TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	key        TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	results    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolution_log_board ON resolution_log(board_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_resolution_log_status ON resolution_log(board_id, status);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) VisibilityState(ctx context.Context, boardID string) (*model.VisibilityState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state FROM visibility_state WHERE board_id = ?`, boardID,
	)

	var stateJSON string
	err := row.Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get visibility state")
	}

	var st model.VisibilityState
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal visibility state")
	}
	return &st, nil
}

func (s *SQLiteStore) SaveVisibilityState(ctx context.Context, boardID string, st model.VisibilityState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal visibility state")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visibility_state (board_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(board_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		boardID, string(stateJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save visibility state")
}

func (s *SQLiteStore) GroupDefaults(ctx context.Context, boardID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, visible FROM group_defaults WHERE board_id = ?`, boardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get group defaults")
	}
	defer rows.Close()

	defaults := make(map[string]bool)
	for rows.Next() {
		var groupID string
		var visible bool
		if err := rows.Scan(&groupID, &visible); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan group default")
		}
		defaults[groupID] = visible
	}
	return defaults, eris.Wrap(rows.Err(), "sqlite: group defaults iterate")
}

func (s *SQLiteStore) SaveGroupDefault(ctx context.Context, boardID, groupID string, visible bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_defaults (board_id, group_id, visible, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(board_id, group_id) DO UPDATE SET visible = excluded.visible, updated_at = excluded.updated_at`,
		boardID, groupID, visible, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save group default %s", groupID)
}

func (s *SQLiteStore) RecordResolution(ctx context.Context, rec model.ResolutionRecord) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolution_log (id, board_id, item_id, candidate, status, lat, lng, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BoardID, rec.ItemID, rec.Candidate, string(rec.Status), lat, lng, errMsg, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert resolution")
}

func (s *SQLiteStore) Resolutions(ctx context.Context, boardID string, limit int) ([]model.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, board_id, item_id, candidate, status, lat, lng, error, created_at
		 FROM resolution_log WHERE board_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		boardID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resolutions")
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
	return recs, eris.Wrap(rows.Err(), "sqlite: resolutions iterate")
}

func (s *SQLiteStore) ResolutionCounts(ctx context.Context, boardID string) (map[model.ResolutionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM resolution_log WHERE board_id = ? GROUP BY status`,
		boardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resolution counts")
	}
	defer rows.Close()

	counts := make(map[model.ResolutionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resolution count")
		}
		counts[model.ResolutionStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: resolution counts iterate")
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string) ([]geocode.Result, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT results FROM lookup_cache WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)

	var resultsJSON string
	err := row.Scan(&resultsJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached lookup")
	}

	var results []geocode.Result
	if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal cached lookup")
	}
	return results, true, nil
}

func (s *SQLiteStore) Store(ctx context.Context, key, query string, results []geocode.Result) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lookup results")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (key, query, results, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET query = excluded.query, results = excluded.results,
		 cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, query, string(resultsJSON), now, now.Add(s.lookupTTL),
	)
	return eris.Wrap(err, "sqlite: set cached lookup")
}

func (s *SQLiteStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lookup_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanResolution(row scannable) (model.ResolutionRecord, error) {
	var rec model.ResolutionRecord
	var lat, lng sql.NullFloat64
	var errMsg sql.NullString

	err := row.Scan(&rec.ID, &rec.BoardID, &rec.ItemID, &rec.Candidate, &rec.Status,
		&lat, &lng, &errMsg, &rec.CreatedAt)
	if err != nil {
		return rec, eris.Wrap(err, "scan resolution")
	}

	if lat.Valid && lng.Valid {
		rec.Coords = &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	return rec, nil
}
