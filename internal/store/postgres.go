package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wearlab/motion-relay-service/internal/packet"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS packets (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	label      TEXT NOT NULL,
	ts         BIGINT NOT NULL,
	ax DOUBLE PRECISION NOT NULL,
	ay DOUBLE PRECISION NOT NULL,
	az DOUBLE PRECISION NOT NULL,
	gx DOUBLE PRECISION NOT NULL,
	gy DOUBLE PRECISION NOT NULL,
	gz DOUBLE PRECISION NOT NULL,
	batt INTEGER,
	rssi INTEGER
);
CREATE INDEX IF NOT EXISTS idx_packets_user_id ON packets(user_id);
CREATE INDEX IF NOT EXISTS idx_packets_session_id ON packets(session_id);
CREATE INDEX IF NOT EXISTS idx_packets_label ON packets(label);
`

// PostgresStore persists packets in a PostgreSQL table via a pgx
// connection pool. The pool is safe for concurrent use.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to the database given by dsn and ensures the
// packets schema exists.
func OpenPostgres(ctx context.Context, dsn string, poolSize int, logger *slog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: dsn is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parsing dsn: %w", err)
	}
	if poolSize > 0 {
		poolCfg.MaxConns = int32(poolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connecting: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ensuring schema: %w", err)
	}

	logger.Info("postgres store opened",
		slog.Int("pool_size", int(poolCfg.MaxConns)),
	)

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Append inserts one packet and returns the generated id.
func (s *PostgresStore) Append(ctx context.Context, p packet.Packet) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO packets (user_id, session_id, label, ts, ax, ay, az, gx, gy, gz, batt, rssi)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		p.UserID, p.SessionID, p.Label, p.TS,
		p.AX, p.AY, p.AZ, p.GX, p.GY, p.GZ,
		p.Batt, p.RSSI,
	).Scan(&id)
	if err != nil {
		return 0, &StorageError{Op: "append", Err: err}
	}
	return id, nil
}

// Recent returns stored packets matching the filter, newest first.
func (s *PostgresStore) Recent(ctx context.Context, f Filter) ([]StoredPacket, error) {
	query, args := buildRecentQueryPostgres(f)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}
	defer rows.Close()

	var results []StoredPacket
	for rows.Next() {
		var sp StoredPacket
		err := rows.Scan(&sp.ID,
			&sp.UserID, &sp.SessionID, &sp.Label, &sp.TS,
			&sp.AX, &sp.AY, &sp.AZ, &sp.GX, &sp.GY, &sp.GZ,
			&sp.Batt, &sp.RSSI,
		)
		if err != nil {
			return nil, &StorageError{Op: "recent", Err: err}
		}
		results = append(results, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}

	return results, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	s.logger.Info("postgres store closed")
	return nil
}

// buildRecentQueryPostgres mirrors buildRecentQuery with numbered
// parameters.
func buildRecentQueryPostgres(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func() string {
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, "user_id = "+next())
	}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
		where = append(where, "session_id = "+next())
	}
	if f.Label != "" {
		args = append(args, f.Label)
		where = append(where, "label = "+next())
	}

	query := "SELECT id, user_id, session_id, label, ts, ax, ay, az, gx, gy, gz, batt, rssi FROM packets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	args = append(args, limit)
	query += " ORDER BY id DESC LIMIT " + next()

	return query, args
}
