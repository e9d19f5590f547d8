// Package reader turns bronze NDJSON objects into normalized records.
//
// Bronze files are written by an ingestion framework that flattens the nested
// per-currency rates object into dynamically named columns ("rates__eur",
// "rates__jpy", ...). The key set varies by extractor and by run, so the
// reader discovers rate fields by their marker prefix and reconstructs a
// single typed rates map per record instead of relying on schema inference
// matching between runs.
package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ratesetl/internal/objstore"
	"ratesetl/internal/records"
)

// RatePrefix marks a flattened per-currency rate field.
const RatePrefix = "rates__"

// maxLineBytes bounds a single NDJSON line; bronze records are small.
const maxLineBytes = 4 << 20

// Reader scans all objects matching a glob pattern and normalizes them.
type Reader struct {
	bucket objstore.Bucket
	logger logrus.FieldLogger
}

// New returns a Reader over the bronze bucket.
func New(bucket objstore.Bucket, logger logrus.FieldLogger) *Reader {
	return &Reader{bucket: bucket, logger: logger}
}

// Read parses every object matching pattern as newline-delimited JSON and
// returns the normalized batch. Zero matching objects is a clean no-op:
// (nil, nil). Malformed lines and rows violating the rates-map key invariant
// are dropped and counted, never fatal.
func (r *Reader) Read(ctx context.Context, pattern string) ([]records.Record, error) {
	objs, err := objstore.Glob(ctx, r.bucket, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	if len(objs) == 0 {
		r.logger.WithField("pattern", pattern).Warn("no files match pattern")
		return nil, nil
	}

	var (
		batch     []records.Record
		malformed int
		badKeys   int
	)
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, stats, err := r.readObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		batch = append(batch, recs...)
		malformed += stats.malformed
		badKeys += stats.badKeys
	}

	if malformed > 0 {
		r.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"lines":   malformed,
		}).Warn("skipped malformed NDJSON lines")
	}
	if badKeys > 0 {
		// Historically this has indicated an upstream serialization defect;
		// offending rows are filtered rather than allowed through.
		r.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"rows":    badKeys,
		}).Warn("dropped rows with null or empty rate map keys")
	}

	r.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"objects": len(objs),
		"rows":    len(batch),
	}).Info("read bronze batch")
	return batch, nil
}

type readStats struct {
	malformed int
	badKeys   int
}

func (r *Reader) readObject(ctx context.Context, key string) ([]records.Record, readStats, error) {
	var stats readStats

	rc, err := r.bucket.Get(ctx, key)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "open %q", key)
	}
	defer rc.Close()

	var out []records.Record
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		rec, ok := decodeLine(raw)
		if !ok {
			stats.malformed++
			r.logger.WithFields(logrus.Fields{
				"object": key,
				"line":   line,
			}).Debug("malformed line")
			continue
		}
		if !validRateKeys(rec.Rates()) {
			stats.badKeys++
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, errors.Wrapf(err, "scan %q", key)
	}
	return out, stats, nil
}

// decodeLine parses one NDJSON object and reconstructs the rates map from the
// flattened rate fields. Returns false for non-object or unparseable lines.
func decodeLine(raw string) (records.Record, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}

	rec := make(records.Record, len(obj))
	rates := map[string]float64{}
	for k, v := range obj {
		name := strings.ToLower(strings.TrimSpace(k))
		if code, isRate := strings.CutPrefix(name, RatePrefix); isRate {
			// Null rate values contribute no map entry.
			if v == nil {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			rates[strings.ToUpper(code)] = f
			continue
		}
		// Some extractors write the nested form directly.
		if name == records.FieldRates {
			if m, ok := v.(map[string]any); ok {
				for code, rv := range m {
					if rv == nil {
						continue
					}
					if f, ok := toFloat(rv); ok {
						rates[strings.ToUpper(strings.TrimSpace(code))] = f
					}
				}
				continue
			}
		}
		rec[name] = v
	}
	// The map is empty, not absent, when no rate fields were discovered.
	rec[records.FieldRates] = rates
	return rec, true
}

// validRateKeys re-validates the invariant the construction already enforces:
// no null and no empty-string keys in the rates map.
func validRateKeys(m map[string]float64) bool {
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	}
	return 0, false
}
