package alerts

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Zyldzkie/gas-guard/internal/model"
	"github.com/Zyldzkie/gas-guard/internal/storage"
)

// Appender is the durable side of the alert write path.
type Appender interface {
	AppendAlert(ctx context.Context, record model.AlertRecord) (string, error)
}

// Writer persists alert records. The record id is a uuid generated
// before the append so the write carries a stable idempotency key; the
// collaborator itself does not deduplicate retries, which is why the
// emit policy calls Append at most once per qualifying reading.
type Writer struct {
	store  Appender
	recent *Store
	logger *slog.Logger
}

func NewWriter(store Appender, recent *Store, logger *slog.Logger) *Writer {
	return &Writer{store: store, recent: recent, logger: logger}
}

func (w *Writer) Append(ctx context.Context, record model.AlertRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if w.store != nil {
		id, err := w.store.AppendAlert(ctx, record)
		if err != nil {
			return "", err
		}
		record.ID = id
	}
	if w.recent != nil {
		w.recent.Add(record)
	}
	if w.logger != nil {
		w.logger.Info("alert persisted",
			"id", record.ID,
			"user", record.UserEmail,
			"level", record.Level,
			"ppm", record.PPM,
		)
	}
	return record.ID, nil
}

var _ Appender = storage.Store(nil)
