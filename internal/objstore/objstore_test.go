package objstore

import (
	"context"
	"strings"
	"testing"
)

func seedBucket(tb testing.TB, keys ...string) *MemBucket {
	tb.Helper()
	b := NewMemBucket()
	for _, k := range keys {
		b.PutString(k, "{}")
	}
	return b
}

func TestListPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern string
		want    string
	}{
		{"rates/2024/01/02/*.jsonl", "rates/2024/01/02/"},
		{"rates/2024/01/**/*.jsonl", "rates/2024/01/"},
		{"rates/**/*.jsonl", "rates/"},
		{"*.jsonl", ""},
		{"rates/2024/01/02/file.jsonl", "rates/2024/01/02/file.jsonl"},
	}
	for _, tc := range cases {
		if got := ListPrefix(tc.pattern); got != tc.want {
			t.Errorf("ListPrefix(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestGlobByDay(t *testing.T) {
	t.Parallel()

	b := seedBucket(t,
		"rates/2024/01/02/frankfurter.jsonl",
		"rates/2024/01/02/exchangerate.jsonl",
		"rates/2024/01/03/frankfurter.jsonl",
		"rates/2024/01/02/notes.txt",
	)
	objs, err := Glob(context.Background(), b, "rates/2024/01/02/*.jsonl")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objects, want 2: %+v", len(objs), objs)
	}
	for _, o := range objs {
		if !strings.HasPrefix(o.Key, "rates/2024/01/02/") || !strings.HasSuffix(o.Key, ".jsonl") {
			t.Errorf("unexpected match %q", o.Key)
		}
	}
}

func TestGlobRecursive(t *testing.T) {
	t.Parallel()

	b := seedBucket(t,
		"rates/2024/01/02/a.jsonl",
		"rates/2024/02/11/b.jsonl",
		"rates/readme.md",
	)
	objs, err := Glob(context.Background(), b, "rates/**/*.jsonl")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objects, want 2: %+v", len(objs), objs)
	}
}

func TestGlobLiteralKey(t *testing.T) {
	t.Parallel()

	b := seedBucket(t, "rates/2024/01/02/a.jsonl", "rates/2024/01/02/a.jsonl.bak")
	objs, err := Glob(context.Background(), b, "rates/2024/01/02/a.jsonl")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "rates/2024/01/02/a.jsonl" {
		t.Fatalf("got %+v, want exactly the literal key", objs)
	}
}

func TestMemBucketListLimit(t *testing.T) {
	t.Parallel()

	b := seedBucket(t, "p/a", "p/b", "p/c", "q/d")
	objs, err := b.List(context.Background(), "p/", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("got %d objects, want 1", len(objs))
	}
}
