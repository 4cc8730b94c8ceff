package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/model"
)

// ErrNotFound is returned when a profile document does not exist.
var ErrNotFound = errors.New("storage: not found")

// AlertQuery filters the alert feed. A zero query returns the full feed.
// Results are always ordered by datetime descending.
type AlertQuery struct {
	UserEmail string
	Since     time.Time
	Limit     int
}

type Store interface {
	Init(ctx context.Context) error
	Close() error

	// AppendAlert persists one record and returns its id. The alert
	// collection is append-only; there is no update or delete path.
	AppendAlert(ctx context.Context, record model.AlertRecord) (string, error)
	ListAlerts(ctx context.Context, q AlertQuery) ([]model.AlertRecord, error)

	GetProfile(ctx context.Context, identity string) (model.HardwareBinding, error)
	SaveProfile(ctx context.Context, binding model.HardwareBinding) error
	CountProfiles(ctx context.Context) (total int, active int, err error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
