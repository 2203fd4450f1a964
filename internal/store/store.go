package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wearlab/motion-relay-service/internal/config"
	"github.com/wearlab/motion-relay-service/internal/packet"
)

// StoredPacket is a packet plus its server-assigned row id.
type StoredPacket struct {
	ID int64 `json:"id"`
	packet.Packet
}

// Filter narrows a Recent query. Empty string fields match everything;
// Limit caps the result count (defaulted by the backend when zero).
type Filter struct {
	UserID    string
	SessionID string
	Label     string
	Limit     int
}

// Store is the persistence contract used by the ingestion path. A
// successful Append means the packet survives a process restart.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append durably records one packet and returns its generated id.
	Append(ctx context.Context, p packet.Packet) (int64, error)

	// Recent returns stored packets matching the filter, newest first.
	Recent(ctx context.Context, f Filter) ([]StoredPacket, error)

	Close() error
}

// StorageError wraps a persistence-layer failure. The ingestion service
// surfaces it as a server error and skips the broadcast step.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// defaultRecentLimit bounds Recent queries that give no explicit limit.
const defaultRecentLimit = 100

// Open constructs the store selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path, cfg.PoolSize, logger)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, cfg.PoolSize, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
