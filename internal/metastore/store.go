// Package metastore records the destination table's current snapshot pointer
// in an external lookup store for downstream consumers. The pointer is a
// convenience index, not a correctness dependency: the authoritative state is
// always the table itself.
//
// Backends register themselves by kind, mirroring the storage factory
// pattern: callers pick a backend through config without importing it.
package metastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ratesetl/internal/config"
)

// Pointer is the single current snapshot pointer for a table.
type Pointer struct {
	TableName        string
	MetadataLocation string
	UpdatedAt        time.Time
}

// Store is a key-value pointer store keyed by table name. Put overwrites any
// prior entry unconditionally.
type Store interface {
	Put(ctx context.Context, p Pointer) error
	Close() error
}

// Constructor builds a backend from its configuration.
type Constructor func(ctx context.Context, cfg config.Metastore) (Store, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Constructor{}
)

// Register installs a backend constructor under kind. Later registrations
// replace earlier ones, which tests use to stub backends.
func Register(kind string, ctor Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[kind] = ctor
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the backend selected by cfg.Kind.
func New(ctx context.Context, cfg config.Metastore) (Store, error) {
	regMu.RLock()
	ctor, ok := registry[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("metastore: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return ctor(ctx, cfg)
}

// nopStore is the "none" backend: publishing is disabled.
type nopStore struct{}

func (nopStore) Put(context.Context, Pointer) error { return nil }
func (nopStore) Close() error                       { return nil }

func init() {
	Register("none", func(context.Context, config.Metastore) (Store, error) {
		return nopStore{}, nil
	})
}
