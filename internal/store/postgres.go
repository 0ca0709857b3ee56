package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS offerings (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	key_features TEXT[] NOT NULL DEFAULT '{}',
	benefits     TEXT[] NOT NULL DEFAULT '{}',
	practice     TEXT NOT NULL DEFAULT '',
	tags         TEXT[] NOT NULL DEFAULT '{}',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_offerings_position ON offerings(position);

CREATE TABLE IF NOT EXISTS insight_sets (
	client_name TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL UNIQUE,
	sentiment   INTEGER NOT NULL CHECK (sentiment BETWEEN 0 AND 100),
	captured_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	snapshot_id TEXT NOT NULL REFERENCES insight_sets(snapshot_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	confidence  INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	kind        TEXT NOT NULL DEFAULT 'challenge',
	PRIMARY KEY (snapshot_id, position)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

func (s *PostgresStore) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, key_features, benefits, practice, tags FROM offerings ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list offerings")
	}
	defer rows.Close()

	out := []model.Offering{}
	for rows.Next() {
		var o model.Offering
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.KeyFeatures, &o.Benefits, &o.Practice, &o.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: scan offering")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list offerings iterate")
}

func (s *PostgresStore) GetOffering(ctx context.Context, id string) (model.Offering, error) {
	var o model.Offering
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, key_features, benefits, practice, tags FROM offerings WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Description, &o.KeyFeatures, &o.Benefits, &o.Practice, &o.Tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Offering{}, eris.Wrapf(ErrNotFound, "postgres: offering %s", id)
	}
	if err != nil {
		return model.Offering{}, eris.Wrapf(err, "postgres: get offering %s", id)
	}
	return o, nil
}

func (s *PostgresStore) ReplaceCatalog(ctx context.Context, offerings []model.Offering) error {
	if err := validateCatalog(offerings); err != nil {
		return eris.Wrap(err, "postgres: replace catalog")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM offerings`); err != nil {
		return eris.Wrap(err, "postgres: clear offerings")
	}
	now := time.Now().UTC()
	for pos, o := range offerings {
		_, err := tx.Exec(ctx,
			`INSERT INTO offerings (id, position, name, description, key_features, benefits, practice, tags, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, pos, o.Name, o.Description, nonNil(o.KeyFeatures), nonNil(o.Benefits), o.Practice, nonNil(o.Tags), now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert offering %s", o.ID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit catalog")
	}
	return nil
}

func (s *PostgresStore) ListInsightSets(ctx context.Context) ([]model.ClientInsightSet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.client_name, i.sentiment, i.captured_at, s.name, s.confidence, s.kind
		FROM insight_sets i
		LEFT JOIN signals s ON s.snapshot_id = i.snapshot_id
		ORDER BY i.client_name, s.position`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list insight sets")
	}
	defer rows.Close()

	var out []model.ClientInsightSet
	for rows.Next() {
		var client string
		var sentiment int
		var captured time.Time
		var name, kind *string
		var confidence *int
		if err := rows.Scan(&client, &sentiment, &captured, &name, &confidence, &kind); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight set")
		}
		if len(out) == 0 || out[len(out)-1].ClientName != client {
			out = append(out, model.ClientInsightSet{
				ClientName: client,
				Sentiment:  sentiment,
				CapturedAt: &captured,
				Signals:    []model.Signal{},
			})
		}
		if name != nil {
			last := &out[len(out)-1]
			last.Signals = append(last.Signals, model.Signal{
				Name:       *name,
				Confidence: derefInt(confidence),
				Kind:       model.SignalKind(derefString(kind)),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list insight sets iterate")
	}
	if out == nil {
		out = []model.ClientInsightSet{}
	}
	return out, nil
}

func (s *PostgresStore) GetInsightSet(ctx context.Context, clientName string) (model.ClientInsightSet, error) {
	var set model.ClientInsightSet
	var snapshotID string
	var captured time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT client_name, snapshot_id, sentiment, captured_at FROM insight_sets WHERE client_name = $1`,
		clientName,
	).Scan(&set.ClientName, &snapshotID, &set.Sentiment, &captured)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ClientInsightSet{}, eris.Wrapf(ErrNotFound, "postgres: insight set %s", clientName)
	}
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrapf(err, "postgres: get insight set %s", clientName)
	}
	set.CapturedAt = &captured

	rows, err := s.pool.Query(ctx,
		`SELECT name, confidence, kind FROM signals WHERE snapshot_id = $1 ORDER BY position`, snapshotID)
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrapf(err, "postgres: load signals %s", snapshotID)
	}
	defer rows.Close()

	set.Signals = []model.Signal{}
	for rows.Next() {
		var sig model.Signal
		var kind string
		if err := rows.Scan(&sig.Name, &sig.Confidence, &kind); err != nil {
			return model.ClientInsightSet{}, eris.Wrap(err, "postgres: scan signal")
		}
		sig.Kind = model.SignalKind(kind)
		set.Signals = append(set.Signals, sig)
	}
	if err := rows.Err(); err != nil {
		return model.ClientInsightSet{}, eris.Wrap(err, "postgres: load signals iterate")
	}
	return set, nil
}

func (s *PostgresStore) ReplaceInsightSet(ctx context.Context, set model.ClientInsightSet) error {
	snapshot, err := prepareInsightSet(set)
	if err != nil {
		return eris.Wrap(err, "postgres: replace insight set")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Signals go with their snapshot through ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM insight_sets WHERE client_name = $1`, snapshot.ClientName); err != nil {
		return eris.Wrapf(err, "postgres: delete insight set %s", snapshot.ClientName)
	}

	snapshotID := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO insight_sets (client_name, snapshot_id, sentiment, captured_at) VALUES ($1, $2, $3, $4)`,
		snapshot.ClientName, snapshotID, snapshot.Sentiment, snapshot.CapturedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: insert insight set %s", snapshot.ClientName)
	}
	for pos, sig := range snapshot.Signals {
		if _, err := tx.Exec(ctx,
			`INSERT INTO signals (snapshot_id, position, name, confidence, kind) VALUES ($1, $2, $3, $4, $5)`,
			snapshotID, pos, sig.Name, sig.Confidence, string(sig.Kind),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert signal %q", sig.Name)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit insight set")
	}
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
