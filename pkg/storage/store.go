// Package storage persists pipeline definitions and run records for the
// service layer. The engine itself never persists anything.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/domain"
)

// RunStore exposes persistence operations for definitions and run records.
type RunStore interface {
	SavePipeline(ctx context.Context, p domain.StoredPipeline) error
	GetPipeline(ctx context.Context, id string) (*domain.StoredPipeline, error)
	CreateRun(ctx context.Context, rec *domain.RunRecord) error
	UpdateRun(ctx context.Context, rec *domain.RunRecord) error
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error)
	Close() error
}

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 50

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (RunStore, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemoryRunStore(), nil
	case config.DriverSQLite:
		return OpenSQLite(ctx, SQLiteConfig{Path: cfg.DSN, WAL: true})
	case config.DriverPostgres:
		pgCfg := DefaultPostgresConfig(cfg.DSN)
		if cfg.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			pgCfg.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime > 0 {
			pgCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
		return OpenPostgres(ctx, pgCfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func listLimit(filter domain.RunFilter) int {
	if filter.Limit <= 0 {
		return DefaultListLimit
	}
	return filter.Limit
}

func copyRecord(rec *domain.RunRecord) domain.RunRecord {
	out := *rec
	out.Log = append([]string(nil), rec.Log...)
	if rec.EndedAt != nil {
		ended := *rec.EndedAt
		out.EndedAt = &ended
	}
	return out
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
