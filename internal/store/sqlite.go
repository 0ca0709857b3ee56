package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS offerings (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	key_features TEXT NOT NULL DEFAULT '[]',
	benefits     TEXT NOT NULL DEFAULT '[]',
	practice     TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS insight_sets (
	client_name TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL UNIQUE,
	sentiment   INTEGER NOT NULL,
	captured_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	snapshot_id TEXT NOT NULL,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	kind        TEXT NOT NULL DEFAULT 'challenge',
	PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_offerings_position ON offerings(position);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListOfferings(ctx context.Context) ([]model.Offering, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, key_features, benefits, practice, tags FROM offerings ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list offerings")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list offerings iterate")
}

func (s *SQLiteStore) GetOffering(ctx context.Context, id string) (model.Offering, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, key_features, benefits, practice, tags FROM offerings WHERE id = ?`, id)
	o, err := scanOffering(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Offering{}, eris.Wrapf(ErrNotFound, "sqlite: offering %s", id)
	}
	return o, err
}

func (s *SQLiteStore) ReplaceCatalog(ctx context.Context, offerings []model.Offering) error {
	if err := validateCatalog(offerings); err != nil {
		return eris.Wrap(err, "sqlite: replace catalog")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM offerings`); err != nil {
		return eris.Wrap(err, "sqlite: clear offerings")
	}
	now := time.Now().UTC()
	for pos, o := range offerings {
		features, benefits, tags, err := marshalLists(o)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal offering %s", o.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO offerings (id, position, name, description, key_features, benefits, practice, tags, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, pos, o.Name, o.Description, features, benefits, o.Practice, tags, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert offering %s", o.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit catalog")
}

func (s *SQLiteStore) ListInsightSets(ctx context.Context) ([]model.ClientInsightSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_name, snapshot_id, sentiment, captured_at FROM insight_sets ORDER BY client_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list insight sets")
	}

	type header struct {
		set        model.ClientInsightSet
		snapshotID string
	}
	var headers []header
	for rows.Next() {
		var h header
		var captured time.Time
		if err := rows.Scan(&h.set.ClientName, &h.snapshotID, &h.set.Sentiment, &captured); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan insight set")
		}
		h.set.CapturedAt = &captured
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: list insight sets iterate")
	}
	rows.Close() //nolint:errcheck

	out := make([]model.ClientInsightSet, 0, len(headers))
	for _, h := range headers {
		signals, err := s.loadSignals(ctx, h.snapshotID)
		if err != nil {
			return nil, err
		}
		h.set.Signals = signals
		out = append(out, h.set)
	}
	return out, nil
}

func (s *SQLiteStore) GetInsightSet(ctx context.Context, clientName string) (model.ClientInsightSet, error) {
	var set model.ClientInsightSet
	var snapshotID string
	var captured time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT client_name, snapshot_id, sentiment, captured_at FROM insight_sets WHERE client_name = ?`,
		clientName,
	).Scan(&set.ClientName, &snapshotID, &set.Sentiment, &captured)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClientInsightSet{}, eris.Wrapf(ErrNotFound, "sqlite: insight set %s", clientName)
	}
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrapf(err, "sqlite: get insight set %s", clientName)
	}
	set.CapturedAt = &captured

	set.Signals, err = s.loadSignals(ctx, snapshotID)
	if err != nil {
		return model.ClientInsightSet{}, err
	}
	return set, nil
}

func (s *SQLiteStore) ReplaceInsightSet(ctx context.Context, set model.ClientInsightSet) error {
	snapshot, err := prepareInsightSet(set)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace insight set")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM signals WHERE snapshot_id IN (SELECT snapshot_id FROM insight_sets WHERE client_name = ?)`,
		snapshot.ClientName,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete signals for %s", snapshot.ClientName)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM insight_sets WHERE client_name = ?`, snapshot.ClientName); err != nil {
		return eris.Wrapf(err, "sqlite: delete insight set %s", snapshot.ClientName)
	}

	snapshotID := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO insight_sets (client_name, snapshot_id, sentiment, captured_at) VALUES (?, ?, ?, ?)`,
		snapshot.ClientName, snapshotID, snapshot.Sentiment, snapshot.CapturedAt.UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert insight set %s", snapshot.ClientName)
	}
	for pos, sig := range snapshot.Signals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO signals (snapshot_id, position, name, confidence, kind) VALUES (?, ?, ?, ?, ?)`,
			snapshotID, pos, sig.Name, sig.Confidence, string(sig.Kind),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert signal %q", sig.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insight set")
}

func (s *SQLiteStore) loadSignals(ctx context.Context, snapshotID string) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, confidence, kind FROM signals WHERE snapshot_id = ? ORDER BY position`, snapshotID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load signals %s", snapshotID)
	}
	defer rows.Close() //nolint:errcheck

	signals := []model.Signal{}
	for rows.Next() {
		var sig model.Signal
		var kind string
		if err := rows.Scan(&sig.Name, &sig.Confidence, &kind); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.Kind = model.SignalKind(kind)
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "sqlite: load signals iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanOffering(row scannable) (model.Offering, error) {
	var o model.Offering
	var features, benefits, tags string
	err := row.Scan(&o.ID, &o.Name, &o.Description, &features, &benefits, &o.Practice, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return o, err
	}
	if err != nil {
		return o, eris.Wrap(err, "sqlite: scan offering")
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{features, &o.KeyFeatures}, {benefits, &o.Benefits}, {tags, &o.Tags}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return o, eris.Wrapf(err, "sqlite: unmarshal offering %s", o.ID)
		}
	}
	return o, nil
}

func marshalLists(o model.Offering) (features, benefits, tags string, err error) {
	out := make([]string, 3)
	for i, list := range [][]string{o.KeyFeatures, o.Benefits, o.Tags} {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return "", "", "", err
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}
