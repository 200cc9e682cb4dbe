package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
	room_id    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.SnapshotStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the snapshot schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function.
// Useful for tests that need a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the stored snapshot for a room.
func (s *SQLiteStore) Load(ctx context.Context, roomID string) (board.RoomState, error) {
	query := `
		SELECT state
		FROM room_snapshots
		WHERE room_id = ?
	`
	var raw string
	err := s.db.QueryRowContext(ctx, query, roomID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return board.RoomState{}, store.ErrNotFound
		}
		return board.RoomState{}, fmt.Errorf("query snapshot: %w", err)
	}

	return store.Unmarshal([]byte(raw))
}

// Save upserts the snapshot for a room.
func (s *SQLiteStore) Save(ctx context.Context, roomID string, state board.RoomState) error {
	data, err := store.Marshal(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO room_snapshots (room_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListRooms returns room ids ordered by most recent update.
func (s *SQLiteStore) ListRooms(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT room_id
		FROM room_snapshots
		ORDER BY updated_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return ids, nil
}

var _ store.SnapshotStore = (*SQLiteStore)(nil)
