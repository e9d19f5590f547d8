// Package records defines the normalized record unit passed between pipeline
// stages. A Record is a flat field map as produced by the batch reader: the
// bronze identity fields plus a single reconstructed rates map.
package records

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bronze identity field names shared by every extractor.
const (
	FieldExtractionID        = "extraction_id"
	FieldExtractionTimestamp = "extraction_timestamp"
	FieldSource              = "source"
	FieldSourceTier          = "source_tier"
	FieldBaseCurrency        = "base_currency"
	FieldRateDate            = "rate_date"
	FieldRates               = "rates"
)

// Record is a single normalized row. Values are JSON-decoded primitives
// (string, json.Number, float64, bool) except FieldRates, which holds a
// map[string]float64 built by the reader.
type Record map[string]any

// String returns the string value for key, or "" when missing or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Rates returns the reconstructed rates map. The reader guarantees the map is
// present (possibly empty) on every row it emits; a missing or mistyped value
// yields nil here.
func (r Record) Rates() map[string]float64 {
	if v, ok := r[FieldRates]; ok {
		if m, ok := v.(map[string]float64); ok {
			return m
		}
	}
	return nil
}

// RateDate parses the record's rate_date field as a calendar date.
func (r Record) RateDate() (time.Time, error) {
	s := r.String(FieldRateDate)
	if s == "" {
		return time.Time{}, fmt.Errorf("record has no %s", FieldRateDate)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", FieldRateDate, s, err)
	}
	return t, nil
}

// ExtractionTimestamp returns the raw extraction_timestamp string. ISO-8601
// timestamps from a single extractor compare correctly as strings, which is
// how the deduplicator ranks them; parsing is left to callers that need it.
func (r Record) ExtractionTimestamp() string {
	return r.String(FieldExtractionTimestamp)
}

// Clone returns a shallow copy of the record with its rates map copied.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	if rates := r.Rates(); rates != nil {
		cp := make(map[string]float64, len(rates))
		for k, v := range rates {
			cp[k] = v
		}
		out[FieldRates] = cp
	}
	return out
}

// KeyValue renders a field value for key construction and predicate
// comparison. Scalars stringify stably; json.Number keeps its literal form.
func KeyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "\x00"
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
