// Package dedupe collapses repeated extractions of the same logical fact down
// to the most recent one, scoped to the date window appropriate for the run
// mode.
package dedupe

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ratesetl/internal/config"
	"ratesetl/internal/records"
)

// Deduper filters a batch by date window and keeps the latest record per
// primary-key tuple.
type Deduper struct {
	keys         []string
	lookbackDays int
	logger       logrus.FieldLogger
}

// New returns a Deduper for the configured primary-key fields. lookbackDays
// is the trailing window accepted in daily mode.
func New(keys []string, lookbackDays int, logger logrus.FieldLogger) *Deduper {
	return &Deduper{keys: keys, lookbackDays: lookbackDays, logger: logger}
}

// Dedupe applies the mode-dependent date filter, then keeps exactly one
// record per key tuple: the one with the greatest extraction_timestamp.
// On exactly equal timestamps the first record in input order wins; callers
// must not depend on a specific winner beyond determinism.
//
// Rows without a parseable rate_date or with a missing key field are dropped:
// they cannot be placed in a window or keyed, so letting them through would
// break the destination's one-row-per-key invariant.
func (d *Deduper) Dedupe(in []records.Record, mode config.Mode, start, end time.Time) []records.Record {
	lo, hi := d.window(mode, start, end)

	type slot struct {
		rec   records.Record
		ts    string
		index int
	}
	winners := make(map[string]slot, len(in))
	dropped := 0

	for i, rec := range in {
		date, err := rec.RateDate()
		if err != nil {
			dropped++
			continue
		}
		if date.Before(lo) || date.After(hi) {
			continue
		}
		key, ok := d.keyOf(rec)
		if !ok {
			dropped++
			continue
		}
		ts := rec.ExtractionTimestamp()
		prev, exists := winners[key]
		if !exists || ts > prev.ts {
			winners[key] = slot{rec: rec, ts: ts, index: i}
		}
	}

	// Stable output: winners in original input order.
	out := make([]records.Record, 0, len(winners))
	slots := make([]slot, 0, len(winners))
	for _, s := range winners {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(a, b int) bool { return slots[a].index < slots[b].index })
	for _, s := range slots {
		out = append(out, s.rec)
	}

	if dropped > 0 {
		d.logger.WithField("rows", dropped).Warn("dropped rows with unusable date or missing key fields")
	}
	d.logger.WithFields(logrus.Fields{
		"mode":     mode,
		"window":   lo.Format("2006-01-02") + ".." + hi.Format("2006-01-02"),
		"rows_in":  len(in),
		"rows_out": len(out),
	}).Info("deduplicated batch")
	return out
}

// window computes the accepted [lo, hi] rate_date range.
func (d *Deduper) window(mode config.Mode, start, end time.Time) (time.Time, time.Time) {
	if mode == config.ModeDaily {
		// Providers return stale "latest available" data over weekends and
		// holidays; accept a trailing window ending at the target date.
		return start.AddDate(0, 0, -d.lookbackDays), start
	}
	return start, end
}

// keyOf builds the composite key string; records missing any key field are
// excluded from the dedup domain.
func (d *Deduper) keyOf(rec records.Record) (string, bool) {
	var b strings.Builder
	for i, k := range d.keys {
		v, ok := rec[k]
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(records.KeyValue(v))
	}
	return b.String(), true
}
