package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devaloi/chatrelay/internal/codec"
)

// SQLiteStore implements Store using SQLite. Each Save rewrites every table
// inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			key TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS messages (
			conversation TEXT NOT NULL,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			body TEXT NOT NULL,
			type TEXT NOT NULL,
			audio TEXT NOT NULL,
			mime TEXT NOT NULL,
			is_group INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (conversation, seq)
		);
		CREATE TABLE IF NOT EXISTS groups (
			name TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS group_members (
			group_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			member TEXT NOT NULL,
			PRIMARY KEY (group_name, position)
		);
	`)
	return err
}

// Save replaces the stored state with snap.
func (s *SQLiteStore) Save(ctx context.Context, snap codec.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"conversations", "messages", "groups", "group_members"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for key, records := range snap.History {
		if _, err := tx.ExecContext(ctx, "INSERT INTO conversations (key) VALUES (?)", key); err != nil {
			return err
		}
		for seq, r := range records {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO messages (conversation, seq, id, sender, recipient, body, type, audio, mime, is_group, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				key, seq, r.ID, r.From, r.To, r.Message, r.Type, r.AudioData, r.Mime, r.IsGroup, r.Timestamp.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("insert message %s/%d: %w", key, seq, err)
			}
		}
	}

	for name, members := range snap.Groups {
		if _, err := tx.ExecContext(ctx, "INSERT INTO groups (name) VALUES (?)", name); err != nil {
			return err
		}
		for pos, member := range members {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO group_members (group_name, position, member) VALUES (?, ?, ?)",
				name, pos, member,
			)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Load reads the stored state. An empty database yields an empty snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (codec.Snapshot, error) {
	snap := codec.NewSnapshot()

	keys, err := s.db.QueryContext(ctx, "SELECT key FROM conversations")
	if err != nil {
		return codec.Snapshot{}, err
	}
	for keys.Next() {
		var key string
		if err := keys.Scan(&key); err != nil {
			keys.Close()
			return codec.Snapshot{}, err
		}
		snap.History[key] = []codec.Record{}
	}
	keys.Close()
	if err := keys.Err(); err != nil {
		return codec.Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation, id, sender, recipient, body, type, audio, mime, is_group, created_at
		FROM messages
		ORDER BY conversation, seq
	`)
	if err != nil {
		return codec.Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			r   codec.Record
			ns  int64
		)
		if err := rows.Scan(&key, &r.ID, &r.From, &r.To, &r.Message, &r.Type, &r.AudioData, &r.Mime, &r.IsGroup, &ns); err != nil {
			return codec.Snapshot{}, err
		}
		r.Timestamp = time.Unix(0, ns).UTC()
		snap.History[key] = append(snap.History[key], r)
	}
	if err := rows.Err(); err != nil {
		return codec.Snapshot{}, err
	}

	if err := s.loadGroups(ctx, snap); err != nil {
		return codec.Snapshot{}, err
	}
	return snap, nil
}

func (s *SQLiteStore) loadGroups(ctx context.Context, snap codec.Snapshot) error {
	names, err := s.db.QueryContext(ctx, "SELECT name FROM groups")
	if err != nil {
		return err
	}
	for names.Next() {
		var name string
		if err := names.Scan(&name); err != nil {
			names.Close()
			return err
		}
		snap.Groups[name] = []string{}
	}
	names.Close()
	if err := names.Err(); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT group_name, member FROM group_members ORDER BY group_name, position")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, member string
		if err := rows.Scan(&name, &member); err != nil {
			return err
		}
		snap.Groups[name] = append(snap.Groups[name], member)
	}
	return rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
