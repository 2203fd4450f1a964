package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/wearlab/motion-relay-service/internal/packet"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS packets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	label      TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	ax REAL NOT NULL,
	ay REAL NOT NULL,
	az REAL NOT NULL,
	gx REAL NOT NULL,
	gy REAL NOT NULL,
	gz REAL NOT NULL,
	batt INTEGER,
	rssi INTEGER
);
CREATE INDEX IF NOT EXISTS idx_packets_user_id ON packets(user_id);
CREATE INDEX IF NOT EXISTS idx_packets_session_id ON packets(session_id);
CREATE INDEX IF NOT EXISTS idx_packets_label ON packets(label);
`

// SQLiteStore persists packets in a single SQLite database file. WAL mode
// lets reads proceed while the ingestion path writes; SQLite itself
// serializes the writes, which satisfies the concurrent-caller contract.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens (creating if necessary) the database at path and
// ensures the packets schema exists on every pooled connection.
func OpenSQLite(path string, poolSize int, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareSQLiteConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", path, err)
	}

	logger.Info("sqlite store opened",
		slog.String("path", path),
		slog.Int("pool_size", poolSize),
	)

	return &SQLiteStore{pool: pool, logger: logger, path: path}, nil
}

// prepareSQLiteConn applies pragmas and the schema to a pooled connection.
// Runs once per connection, on first use.
func prepareSQLiteConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Append inserts one packet and returns the generated rowid.
func (s *SQLiteStore) Append(ctx context.Context, p packet.Packet) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, &StorageError{Op: "append", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO packets (user_id, session_id, label, ts, ax, ay, az, gx, gy, gz, batt, rssi)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				p.UserID, p.SessionID, p.Label, p.TS,
				p.AX, p.AY, p.AZ, p.GX, p.GY, p.GZ,
				nullableInt(p.Batt), nullableInt(p.RSSI),
			},
		})
	if err != nil {
		return 0, &StorageError{Op: "append", Err: err}
	}

	return conn.LastInsertRowID(), nil
}

// Recent returns stored packets matching the filter, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, f Filter) ([]StoredPacket, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}
	defer s.pool.Put(conn)

	query, args := buildRecentQuery(f, "?")

	var results []StoredPacket
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			sp := StoredPacket{
				ID: stmt.ColumnInt64(0),
				Packet: packet.Packet{
					UserID:    stmt.ColumnText(1),
					SessionID: stmt.ColumnText(2),
					Label:     stmt.ColumnText(3),
					TS:        stmt.ColumnInt64(4),
					AX:        stmt.ColumnFloat(5),
					AY:        stmt.ColumnFloat(6),
					AZ:        stmt.ColumnFloat(7),
					GX:        stmt.ColumnFloat(8),
					GY:        stmt.ColumnFloat(9),
					GZ:        stmt.ColumnFloat(10),
				},
			}
			if !stmt.ColumnIsNull(11) {
				batt := int(stmt.ColumnInt64(11))
				sp.Batt = &batt
			}
			if !stmt.ColumnIsNull(12) {
				rssi := int(stmt.ColumnInt64(12))
				sp.RSSI = &rssi
			}
			results = append(results, sp)
			return nil
		},
	})
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}

	return results, nil
}

// Close closes the connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", slog.String("path", s.path))
	return nil
}

// nullableInt converts an optional telemetry field to a bindable value.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// buildRecentQuery assembles the filtered SELECT shared by both backends.
// placeholder is "?" for SQLite; Postgres numbers its parameters instead
// and has its own assembly.
func buildRecentQuery(f Filter, placeholder string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = "+placeholder)
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = "+placeholder)
		args = append(args, f.SessionID)
	}
	if f.Label != "" {
		where = append(where, "label = "+placeholder)
		args = append(args, f.Label)
	}

	query := "SELECT id, user_id, session_id, label, ts, ax, ay, az, gx, gy, gz, batt, rssi FROM packets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	query += " ORDER BY id DESC LIMIT " + placeholder
	args = append(args, limit)

	return query, args
}
