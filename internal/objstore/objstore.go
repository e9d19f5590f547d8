// Package objstore abstracts the object store the pipeline reads bronze files
// from and writes table data to. The interface is deliberately narrow: listing
// by prefix, streaming reads, whole-object writes, and removal are the only
// primitives the pipeline needs.
package objstore

import (
	"context"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Bucket is a handle to a single bucket.
type Bucket interface {
	// List returns up to max objects whose keys start with prefix. max <= 0
	// means no limit. Listing is recursive.
	List(ctx context.Context, prefix string, max int) ([]ObjectInfo, error)

	// Get opens the object at key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the object at key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Remove deletes the object at key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// globMeta reports whether s contains glob metacharacters.
func globMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// ListPrefix returns the longest literal key prefix of a glob pattern, the
// part the store can list cheaply before matching. The prefix is cut at the
// last '/' before the first metacharacter.
func ListPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{")
	if i < 0 {
		return pattern
	}
	j := strings.LastIndex(pattern[:i], "/")
	if j < 0 {
		return ""
	}
	return pattern[:j+1]
}

// Glob lists the bucket under the pattern's literal prefix and returns the
// objects whose keys match the pattern. "**" matches across '/' boundaries.
func Glob(ctx context.Context, b Bucket, pattern string) ([]ObjectInfo, error) {
	if !globMeta(pattern) {
		// Literal key: either it exists or it does not.
		objs, err := b.List(ctx, pattern, 1)
		if err != nil {
			return nil, err
		}
		out := objs[:0]
		for _, o := range objs {
			if o.Key == pattern {
				out = append(out, o)
			}
		}
		return out, nil
	}

	objs, err := b.List(ctx, ListPrefix(pattern), 0)
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	for _, o := range objs {
		ok, err := doublestar.Match(pattern, o.Key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}
