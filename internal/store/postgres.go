package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/draftroom/stats-cli/internal/model"
)

// Pool is the slice of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store over pgx.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS run_log (
	id           TEXT PRIMARY KEY,
	provider     TEXT NOT NULL,
	dataset      TEXT NOT NULL,
	as_of        DATE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	row_count    BIGINT NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_run_log_dataset ON run_log (provider, dataset, started_at DESC);

CREATE TABLE IF NOT EXISTS crosswalk_entity (
	canonical_id TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL,
	team         TEXT NOT NULL DEFAULT '',
	position     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crosswalk_alias (
	provider     TEXT NOT NULL,
	native_id    TEXT NOT NULL,
	canonical_id TEXT NOT NULL REFERENCES crosswalk_entity(canonical_id),
	source       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, native_id)
);

CREATE TABLE IF NOT EXISTS unresolved_keys (
	provider      TEXT NOT NULL,
	dataset       TEXT NOT NULL,
	native_id     TEXT NOT NULL,
	composite_key TEXT NOT NULL DEFAULT '',
	first_seen    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
	occurrences   BIGINT NOT NULL DEFAULT 1,
	PRIMARY KEY (provider, dataset, native_id)
);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, provider, dataset string, asOf time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, provider, dataset, as_of, status, started_at)
		 VALUES ($1, $2, $3, $4, 'running', now())`,
		id, provider, dataset, asOf.UTC().Format(model.DateFormat),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: start run %s/%s", provider, dataset)
	}
	return id, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, rowCount int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE run_log SET status = $1, row_count = $2, completed_at = now() WHERE id = $3`,
		string(status), rowCount, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE run_log SET status = 'failed', error = $1, completed_at = now() WHERE id = $2`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return nil
}

func (s *PostgresStore) LastSuccess(ctx context.Context, provider, dataset string) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM run_log
		 WHERE provider = $1 AND dataset = $2
		   AND status IN ('published', 'published_with_warnings')
		 ORDER BY started_at DESC LIMIT 1`,
		provider, dataset,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: last success %s/%s", provider, dataset)
	}
	return &t, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error) {
	query := `SELECT id, provider, dataset, as_of, status, row_count, COALESCE(error, ''), started_at, completed_at
		 FROM run_log WHERE 1=1`
	var args []any
	n := 0
	add := func(clause string, v any) {
		n++
		args = append(args, v)
		query += clause
	}
	if filter.Provider != "" {
		add(` AND provider = $`+strconv.Itoa(n+1), filter.Provider)
	}
	if filter.Dataset != "" {
		add(` AND dataset = $`+strconv.Itoa(n+1), filter.Dataset)
	}
	if filter.Status != "" {
		add(` AND status = $`+strconv.Itoa(n+1), filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY started_at DESC LIMIT $` + strconv.Itoa(n+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Dataset, &r.AsOf, &r.Status, &r.RowCount, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAlias(ctx context.Context, provider, nativeID string) (*model.Alias, error) {
	var a model.Alias
	err := s.pool.QueryRow(ctx,
		`SELECT provider, native_id, canonical_id, source, created_at
		 FROM crosswalk_alias WHERE provider = $1 AND native_id = $2`,
		provider, nativeID,
	).Scan(&a.Provider, &a.NativeID, &a.CanonicalID, &a.Source, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get alias %s:%s", provider, nativeID)
	}
	return &a, nil
}

func (s *PostgresStore) ListAliases(ctx context.Context) ([]model.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, native_id, canonical_id, source, created_at FROM crosswalk_alias`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aliases")
	}
	defer rows.Close()

	var out []model.Alias
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.Provider, &a.NativeID, &a.CanonicalID, &a.Source, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertAlias(ctx context.Context, a model.Alias) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crosswalk_alias (provider, native_id, canonical_id, source, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, native_id)
		 DO UPDATE SET canonical_id = EXCLUDED.canonical_id, source = EXCLUDED.source`,
		a.Provider, a.NativeID, a.CanonicalID, a.Source, a.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert alias %s:%s", a.Provider, a.NativeID)
	}
	return nil
}

func (s *PostgresStore) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT canonical_id, kind, name, team, position, created_at FROM crosswalk_entity`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var kind string
		if err := rows.Scan(&e.CanonicalID, &kind, &e.Name, &e.Team, &e.Position, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		e.Kind = model.EntityKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertEntity(ctx context.Context, e model.Entity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crosswalk_entity (canonical_id, kind, name, team, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (canonical_id)
		 DO UPDATE SET kind = EXCLUDED.kind, name = EXCLUDED.name,
		               team = EXCLUDED.team, position = EXCLUDED.position`,
		e.CanonicalID, string(e.Kind), e.Name, e.Team, e.Position, e.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert entity %s", e.CanonicalID)
	}
	return nil
}

func (s *PostgresStore) RecordUnresolved(ctx context.Context, k model.UnresolvedKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO unresolved_keys (provider, dataset, native_id, composite_key, first_seen, last_seen, occurrences)
		 VALUES ($1, $2, $3, $4, now(), now(), 1)
		 ON CONFLICT (provider, dataset, native_id)
		 DO UPDATE SET last_seen = now(),
		               occurrences = unresolved_keys.occurrences + 1,
		               composite_key = EXCLUDED.composite_key`,
		k.Provider, k.Dataset, k.NativeID, k.CompositeKey,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record unresolved %s:%s", k.Provider, k.NativeID)
	}
	return nil
}

func (s *PostgresStore) ListUnresolved(ctx context.Context, provider string, limit int) ([]model.UnresolvedKey, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT provider, dataset, native_id, composite_key, first_seen, last_seen, occurrences
		 FROM unresolved_keys`
	var args []any
	if provider != "" {
		query += ` WHERE provider = $1 ORDER BY occurrences DESC LIMIT $2`
		args = []any{provider, limit}
	} else {
		query += ` ORDER BY occurrences DESC LIMIT $1`
		args = []any{limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved")
	}
	defer rows.Close()

	var out []model.UnresolvedKey
	for rows.Next() {
		var k model.UnresolvedKey
		if err := rows.Scan(&k.Provider, &k.Dataset, &k.NativeID, &k.CompositeKey, &k.FirstSeen, &k.LastSeen, &k.Occurrences); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved")
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
