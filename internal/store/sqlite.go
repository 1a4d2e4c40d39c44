package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/draftroom/stats-cli/internal/model"
)

// SQLiteStore implements Store over a local sqlite file. It is the
// default backend so the CLI works with no infrastructure.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
// Pass ":memory:" for an ephemeral store.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "stats.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create dir for %s", path)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	// modernc sqlite does not support concurrent writers.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS run_log (
	id           TEXT PRIMARY KEY,
	provider     TEXT NOT NULL,
	dataset      TEXT NOT NULL,
	as_of        DATE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	row_count    INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_run_log_dataset ON run_log (provider, dataset, started_at DESC);

CREATE TABLE IF NOT EXISTS crosswalk_entity (
	canonical_id TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	team         TEXT NOT NULL DEFAULT '',
	position     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS crosswalk_alias (
	provider     TEXT NOT NULL,
	native_id    TEXT NOT NULL,
	canonical_id TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (provider, native_id)
);

CREATE TABLE IF NOT EXISTS unresolved_keys (
	provider      TEXT NOT NULL,
	dataset       TEXT NOT NULL,
	native_id     TEXT NOT NULL,
	composite_key TEXT NOT NULL DEFAULT '',
	first_seen    TIMESTAMP NOT NULL,
	last_seen     TIMESTAMP NOT NULL,
	occurrences   INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (provider, dataset, native_id)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, provider, dataset string, asOf time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, provider, dataset, as_of, status, started_at)
		 VALUES (?, ?, ?, ?, 'running', ?)`,
		id, provider, dataset, asOf.UTC().Truncate(24*time.Hour), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: start run %s/%s", provider, dataset)
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, rowCount int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, row_count = ?, completed_at = ? WHERE id = ?`,
		string(status), rowCount, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = 'failed', error = ?, completed_at = ? WHERE id = ?`,
		errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) LastSuccess(ctx context.Context, provider, dataset string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM run_log
		 WHERE provider = ? AND dataset = ?
		   AND status IN ('published', 'published_with_warnings')
		 ORDER BY started_at DESC LIMIT 1`,
		provider, dataset,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: last success %s/%s", provider, dataset)
	}
	return &t, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error) {
	query := `SELECT id, provider, dataset, as_of, status, row_count, COALESCE(error, ''), started_at, completed_at
		 FROM run_log WHERE 1=1`
	var args []any
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Dataset, &r.AsOf, &r.Status, &r.RowCount, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAlias(ctx context.Context, provider, nativeID string) (*model.Alias, error) {
	var a model.Alias
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, native_id, canonical_id, source, created_at
		 FROM crosswalk_alias WHERE provider = ? AND native_id = ?`,
		provider, nativeID,
	).Scan(&a.Provider, &a.NativeID, &a.CanonicalID, &a.Source, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get alias %s:%s", provider, nativeID)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAliases(ctx context.Context) ([]model.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, native_id, canonical_id, source, created_at FROM crosswalk_alias`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aliases")
	}
	defer rows.Close()

	var out []model.Alias
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.Provider, &a.NativeID, &a.CanonicalID, &a.Source, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertAlias(ctx context.Context, a model.Alias) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crosswalk_alias (provider, native_id, canonical_id, source, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (provider, native_id)
		 DO UPDATE SET canonical_id = excluded.canonical_id, source = excluded.source`,
		a.Provider, a.NativeID, a.CanonicalID, a.Source, a.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert alias %s:%s", a.Provider, a.NativeID)
	}
	return nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT canonical_id, kind, name, team, position, created_at FROM crosswalk_entity`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var kind string
		if err := rows.Scan(&e.CanonicalID, &kind, &e.Name, &e.Team, &e.Position, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		e.Kind = model.EntityKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertEntity(ctx context.Context, e model.Entity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crosswalk_entity (canonical_id, kind, name, team, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (canonical_id)
		 DO UPDATE SET kind = excluded.kind, name = excluded.name,
		               team = excluded.team, position = excluded.position`,
		e.CanonicalID, string(e.Kind), e.Name, e.Team, e.Position, e.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert entity %s", e.CanonicalID)
	}
	return nil
}

func (s *SQLiteStore) RecordUnresolved(ctx context.Context, k model.UnresolvedKey) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unresolved_keys (provider, dataset, native_id, composite_key, first_seen, last_seen, occurrences)
		 VALUES (?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT (provider, dataset, native_id)
		 DO UPDATE SET last_seen = excluded.last_seen,
		               occurrences = unresolved_keys.occurrences + 1,
		               composite_key = excluded.composite_key`,
		k.Provider, k.Dataset, k.NativeID, k.CompositeKey, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record unresolved %s:%s", k.Provider, k.NativeID)
	}
	return nil
}

func (s *SQLiteStore) ListUnresolved(ctx context.Context, provider string, limit int) ([]model.UnresolvedKey, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT provider, dataset, native_id, composite_key, first_seen, last_seen, occurrences
		 FROM unresolved_keys`
	var args []any
	if provider != "" {
		query += ` WHERE provider = ? ORDER BY occurrences DESC LIMIT ?`
		args = []any{provider, limit}
	} else {
		query += ` ORDER BY occurrences DESC LIMIT ?`
		args = []any{limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved")
	}
	defer rows.Close()

	var out []model.UnresolvedKey
	for rows.Next() {
		var k model.UnresolvedKey
		if err := rows.Scan(&k.Provider, &k.Dataset, &k.NativeID, &k.CompositeKey, &k.FirstSeen, &k.LastSeen, &k.Occurrences); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved")
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
