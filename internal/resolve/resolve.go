// Package resolve locates the slice of bronze data a run should compact.
//
// Extraction jobs may land data under "today's" wall-clock partition even when
// the job is backfilling a past date, so resolution probes both the logical
// date partition and the physical landing-time partition before giving up.
package resolve

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ratesetl/internal/config"
	"ratesetl/internal/objstore"
)

// ErrNoData means no candidate path contained any object. Fatal for the run.
var ErrNoData = errors.New("resolve: no data found under any candidate path")

// Resolver probes candidate glob patterns against the source bucket.
type Resolver struct {
	bucket   objstore.Bucket
	base     string
	patterns config.Patterns
	logger   logrus.FieldLogger

	// now is a clock hook for tests.
	now func() time.Time
}

// New returns a Resolver over the given bucket. base is the bucket-relative
// bronze prefix (e.g. "rates").
func New(bucket objstore.Bucket, base string, patterns config.Patterns, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		bucket:   bucket,
		base:     base,
		patterns: patterns,
		logger:   logger,
		now:      time.Now,
	}
}

// candidate pairs a glob pattern with the literal prefix probed for existence.
type candidate struct {
	prefix  string
	pattern string
}

// candidates builds the ordered probe list for a mode and target date.
func (r *Resolver) candidates(mode config.Mode, target time.Time) []candidate {
	today := r.now()

	mk := func(tmpl string, date time.Time) candidate {
		pat := config.Expand(tmpl, r.base, date)
		return candidate{prefix: objstore.ListPrefix(pat), pattern: pat}
	}

	var cands []candidate
	switch mode {
	case config.ModeDaily:
		cands = append(cands, mk(r.patterns.ByDay, target))
	case config.ModeBackfill:
		cands = append(cands,
			mk(r.patterns.ByDay, today),
			mk(r.patterns.ByMonth, today),
			mk(r.patterns.ByMonth, target),
		)
	}
	// Recursive root fallback, both modes.
	cands = append(cands, mk(r.patterns.Root, target))
	return cands
}

// Resolve returns the first candidate pattern whose prefix holds at least one
// object. The probe lists at most one key per candidate, so resolution stays
// cheap even over large landings.
func (r *Resolver) Resolve(ctx context.Context, mode config.Mode, target time.Time) (string, error) {
	for _, c := range r.candidates(mode, target) {
		r.logger.WithFields(logrus.Fields{
			"prefix":  c.prefix,
			"pattern": c.pattern,
		}).Debug("probing candidate prefix")

		objs, err := r.bucket.List(ctx, c.prefix, 1)
		if err != nil {
			return "", errors.Wrapf(err, "probe prefix %q", c.prefix)
		}
		if len(objs) > 0 {
			r.logger.WithFields(logrus.Fields{
				"mode":    mode,
				"pattern": c.pattern,
			}).Info("resolved source pattern")
			return c.pattern, nil
		}
	}
	return "", errors.Wrapf(ErrNoData, "mode=%s target=%s", mode, target.Format("2006-01-02"))
}
