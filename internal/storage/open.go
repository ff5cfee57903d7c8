package storage

import (
	"context"
	"fmt"
	"strings"

	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// Store is the journal API used by the broadcaster and the debug server.
type Store interface {
	AppendBroadcast(ctx context.Context, rec BroadcastRecord) error
	// RecentBroadcasts returns up to limit records, newest first.
	RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		st  Store
		err error
	)
	switch driver {
	case "file":
		st, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", driver, err)
	}
	log.Info("journal opened", logx.String("driver", driver), logx.String("path", cfg.Path))
	return st, nil
}
