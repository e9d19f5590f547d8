// Package pipeline wires the five stages into one synchronous batch run:
// resolve → read → dedupe → merge → publish. A run either completes all
// stages or aborts; there is no partial-stage resumption. Recovery from an
// abort is an external re-run of the same (mode, date) unit of work, which is
// safe because the batch recomputation and the delete+append merge are
// idempotent given stable source data.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ratesetl/internal/config"
	"ratesetl/internal/dedupe"
	"ratesetl/internal/icetable"
	"ratesetl/internal/merge"
	"ratesetl/internal/metastore"
	"ratesetl/internal/metrics"
	"ratesetl/internal/objstore"
	"ratesetl/internal/reader"
	"ratesetl/internal/records"
	"ratesetl/internal/resolve"
)

// Deps are the external collaborators a run needs. Tests inject in-memory
// implementations; cmd/loader connects the real ones.
type Deps struct {
	// Source is the bucket bronze files land in.
	Source objstore.Bucket
	// Warehouse is the bucket the destination table lives in.
	Warehouse objstore.Bucket
	// Pointers is the external metadata pointer store.
	Pointers metastore.Store
}

// Pipeline is one configured compaction job.
type Pipeline struct {
	cfg       config.Config
	resolver  *resolve.Resolver
	reader    *reader.Reader
	deduper   *dedupe.Deduper
	engine    *merge.Engine
	publisher *metastore.Publisher
	logger    logrus.FieldLogger
}

// New wires the stages from config and dependencies.
func New(cfg config.Config, deps Deps, logger logrus.FieldLogger) (*Pipeline, error) {
	catalog, err := icetable.NewCatalog(icetable.CatalogConfig{
		Bucket:     deps.Warehouse,
		BucketName: cfg.WarehouseBucket,
		Prefix:     cfg.WarehousePrefix,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: catalog")
	}

	ident := icetable.Ident{Namespace: cfg.Namespace, Name: cfg.TableName}
	return &Pipeline{
		cfg:       cfg,
		resolver:  resolve.New(deps.Source, cfg.SourcePrefix, cfg.Patterns, logger),
		reader:    reader.New(deps.Source, logger),
		deduper:   dedupe.New(cfg.PrimaryKeys, cfg.LookbackDays, logger),
		engine:    merge.New(catalog, ident, cfg.PrimaryKeys, logger),
		publisher: metastore.NewPublisher(deps.Pointers, logger),
		logger:    logger,
	}, nil
}

// Run executes one (mode, date range) unit of work. A nil return means the
// run completed: either rows were merged or no matching records were found.
func (p *Pipeline) Run(ctx context.Context, mode config.Mode, start, end time.Time) error {
	log := p.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"mode":   mode,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	})
	log.Info("starting compaction run")

	pattern, err := timed("resolve", func() (string, error) {
		return p.resolver.Resolve(ctx, mode, start)
	})
	if err != nil {
		return err
	}

	batch, err := timed("read", func() ([]records.Record, error) {
		return p.reader.Read(ctx, pattern)
	})
	if err != nil {
		return errors.Wrap(err, "read batch")
	}
	metrics.RecordRows("read", int64(len(batch)))
	if len(batch) == 0 {
		log.Info("no records found, skipping merge")
		return nil
	}

	deduped := p.deduper.Dedupe(batch, mode, start, end)
	metrics.RecordRows("deduped", int64(len(deduped)))
	if len(deduped) == 0 {
		log.Info("no records in window after dedup, skipping merge")
		return nil
	}

	res, err := timed("merge", func() (merge.Result, error) {
		return p.engine.Merge(ctx, deduped)
	})
	if err != nil {
		return errors.Wrap(err, "merge")
	}
	metrics.RecordRows("deleted", res.RowsDeleted)
	metrics.RecordRows("appended", res.RowsAppended)

	location, err := p.engine.MetadataLocation(ctx)
	if err != nil {
		// Same best-effort posture as the publish itself: the merge already
		// committed, so the run still succeeds.
		log.WithError(err).Warn("could not determine metadata location, skipping publish")
		return nil
	}
	p.publisher.Publish(ctx, p.cfg.TableName, location)

	log.WithFields(logrus.Fields{
		"rows_deleted":  res.RowsDeleted,
		"rows_appended": res.RowsAppended,
		"fields_added":  res.FieldsAdded,
	}).Info("compaction run complete")
	return nil
}

// timed runs fn and records stage metrics.
func timed[T any](stage string, fn func() (T, error)) (T, error) {
	startAt := time.Now()
	v, err := fn()
	metrics.RecordStage(stage, err, time.Since(startAt))
	return v, err
}
