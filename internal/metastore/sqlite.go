package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"ratesetl/internal/config"
)

// sqliteStore is the local-dev pointer store. The DSN is a file path or
// ":memory:".
type sqliteStore struct {
	db    *sql.DB
	table string
}

func newSQLiteStore(ctx context.Context, cfg config.Metastore) (Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "metastore: open sqlite")
	}
	// Single-writer batch job; one connection avoids table lock churn.
	db.SetMaxOpenConns(1)

	s := &sqliteStore{db: db, table: cfg.Table}
	if err := s.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		table_name        TEXT PRIMARY KEY,
		metadata_location TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	)`, sqliteIdent(s.table))
	_, err := s.db.ExecContext(ctx, ddl)
	return errors.Wrapf(err, "metastore: ensure table %q", s.table)
}

func (s *sqliteStore) Put(ctx context.Context, p Pointer) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (table_name, metadata_location, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE
		SET metadata_location = excluded.metadata_location,
		    updated_at        = excluded.updated_at`, sqliteIdent(s.table))
	_, err := s.db.ExecContext(ctx, stmt,
		p.TableName, p.MetadataLocation, p.UpdatedAt.UTC().Format(time.RFC3339))
	return errors.Wrapf(err, "metastore: put pointer for %q", p.TableName)
}

// Get reads a pointer back; used by tests and operational tooling.
func (s *sqliteStore) Get(ctx context.Context, tableName string) (Pointer, error) {
	stmt := fmt.Sprintf(`SELECT table_name, metadata_location, updated_at FROM %s WHERE table_name = ?`,
		sqliteIdent(s.table))
	var (
		p  Pointer
		ts string
	)
	err := s.db.QueryRowContext(ctx, stmt, tableName).Scan(&p.TableName, &p.MetadataLocation, &ts)
	if err != nil {
		return Pointer{}, errors.Wrapf(err, "metastore: get pointer for %q", tableName)
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339, ts)
	if err != nil {
		return Pointer{}, errors.Wrapf(err, "metastore: parse updated_at %q", ts)
	}
	return p, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func sqliteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func init() {
	Register("sqlite", newSQLiteStore)
}
