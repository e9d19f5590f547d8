package metastore

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Publisher records snapshot pointers best-effort: a failed put is logged and
// swallowed, never escalated, because the table itself is authoritative and
// the pointer is only a convenience index for consumers.
type Publisher struct {
	store  Store
	logger logrus.FieldLogger

	now func() time.Time
}

// NewPublisher wraps a Store.
func NewPublisher(store Store, logger logrus.FieldLogger) *Publisher {
	return &Publisher{store: store, logger: logger, now: time.Now}
}

// Publish overwrites the pointer for tableName unconditionally. Always
// returns; failures only surface as a warning log.
func (p *Publisher) Publish(ctx context.Context, tableName, metadataLocation string) {
	err := p.store.Put(ctx, Pointer{
		TableName:        tableName,
		MetadataLocation: metadataLocation,
		UpdatedAt:        p.now().UTC(),
	})
	if err != nil {
		p.logger.WithError(err).WithField("table", tableName).
			Warn("failed to publish snapshot pointer (continuing)")
		return
	}
	p.logger.WithFields(logrus.Fields{
		"table":             tableName,
		"metadata_location": metadataLocation,
	}).Info("published snapshot pointer")
}
