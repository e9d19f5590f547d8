package objstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("objstore: object not found")

// MemBucket is an in-memory Bucket used by tests and local dry runs, the same
// role sqlite :memory: plays for the SQL-backed stores.
type MemBucket struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemBucket returns an empty in-memory bucket.
func NewMemBucket() *MemBucket {
	return &MemBucket{objs: make(map[string][]byte)}
}

func (m *MemBucket) List(ctx context.Context, prefix string, max int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objs))
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]ObjectInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, ObjectInfo{Key: k, Size: int64(len(m.objs[k]))})
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (m *MemBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "get %q", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemBucket) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "put %q", key)
	}
	m.mu.Lock()
	m.objs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemBucket) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objs, key)
	m.mu.Unlock()
	return nil
}

// PutString is a convenience for seeding test fixtures.
func (m *MemBucket) PutString(key, data string) {
	m.mu.Lock()
	m.objs[key] = []byte(data)
	m.mu.Unlock()
}

// Len reports the number of stored objects.
func (m *MemBucket) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objs)
}
