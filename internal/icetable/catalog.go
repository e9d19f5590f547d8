// Package icetable implements the open table format boundary: a catalog of
// tables whose schema, snapshot lineage, and data file manifest live as JSON
// metadata objects next to newline-delimited data files in the object store.
// A version-hint object points at the current metadata version; every commit
// writes a new metadata version and advances the hint. The design assumes a
// single writer per table.
package icetable

import (
	"context"

	"github.com/pkg/errors"

	"ratesetl/internal/records"
)

// ErrTableNotFound is returned by LoadTable when the table has never been
// created.
var ErrTableNotFound = errors.New("icetable: table not found")

// Ident names a table within a namespace.
type Ident struct {
	Namespace string
	Name      string
}

func (id Ident) String() string { return id.Namespace + "." + id.Name }

// Table is a loaded table handle. Mutations commit a new metadata version;
// the handle tracks the latest committed state.
type Table interface {
	// Schema returns the current committed schema.
	Schema() Schema

	// UpdateSchema commits the unioned schema. The union must be additive:
	// fields are only ever appended, never dropped or retyped.
	UpdateSchema(ctx context.Context, unioned Schema) error

	// Delete removes all rows matching pred and returns the count removed.
	Delete(ctx context.Context, pred Predicate) (int64, error)

	// Append adds rows unconditionally and returns the count written.
	Append(ctx context.Context, rows []records.Record) (int64, error)

	// Scan returns every live row. Row order follows data file order.
	Scan(ctx context.Context) ([]records.Record, error)

	// MetadataLocation is the snapshot pointer: the object-store URI of the
	// current metadata file.
	MetadataLocation() string
}

// Catalog loads and creates tables.
type Catalog interface {
	// EnsureNamespace creates the namespace if missing; an existing namespace
	// is success, not an error.
	EnsureNamespace(ctx context.Context, namespace string) error

	// LoadTable opens an existing table or returns ErrTableNotFound.
	LoadTable(ctx context.Context, id Ident) (Table, error)

	// CreateTable creates the table with the given schema and returns it.
	CreateTable(ctx context.Context, id Ident, schema Schema) (Table, error)
}
