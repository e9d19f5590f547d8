package metastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"ratesetl/internal/config"
)

// pgStore keeps pointers in a Postgres table with table_name as primary key.
type pgStore struct {
	pool  *pgxpool.Pool
	table string
}

func newPGStore(ctx context.Context, cfg config.Metastore) (Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "metastore: pgxpool")
	}
	s := &pgStore{pool: pool, table: cfg.Table}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *pgStore) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		table_name        text PRIMARY KEY,
		metadata_location text NOT NULL,
		updated_at        timestamptz NOT NULL
	)`, pgFQN(s.table))
	_, err := s.pool.Exec(ctx, ddl)
	return errors.Wrapf(err, "metastore: ensure table %q", s.table)
}

func (s *pgStore) Put(ctx context.Context, p Pointer) error {
	sql := fmt.Sprintf(`INSERT INTO %s (table_name, metadata_location, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (table_name) DO UPDATE
		SET metadata_location = EXCLUDED.metadata_location,
		    updated_at        = EXCLUDED.updated_at`, pgFQN(s.table))
	_, err := s.pool.Exec(ctx, sql, p.TableName, p.MetadataLocation, p.UpdatedAt.UTC())
	return errors.Wrapf(err, "metastore: put pointer for %q", p.TableName)
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// pgFQN quotes a possibly schema-qualified name like "public.pointers" to
// "public"."pointers".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func init() {
	Register("postgres", newPGStore)
}
