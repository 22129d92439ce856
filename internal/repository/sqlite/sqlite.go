// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the server builds
// without CGo and the tests run against a real engine (":memory:").
//
// CONNECTION SETTINGS:
// PRAGMAs in SQLite are per connection, and database/sql hands out pooled
// connections at will. Running "PRAGMA foreign_keys=ON" once after Open only
// configures whichever connection happened to run it. Instead the PRAGMAs go
// into the DSN (_pragma=...), which the driver applies to every connection it
// opens.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// DB wraps a sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/foodshare.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database, lost on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" gets its own private database, so the
	// pool must never grow past one connection.
	if dbPath == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the per-connection settings to dbPath.
//
//   - busy_timeout: wait up to 5s for a competing writer instead of failing
//     with SQLITE_BUSY.
//   - journal_mode(WAL): readers keep working while a write is in progress.
//   - _txlock=immediate: BEGIN takes the write lock up front, so two
//     transactions cannot both read then deadlock upgrading to write.
func dsn(dbPath string) string {
	if dbPath == memoryPath {
		return memoryPath + "?_pragma=foreign_keys(1)"
	}
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	return dbPath + "?" + strings.Join(params, "&")
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run on
// every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			role       TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// user_id is NULL for the copies attached to food posts. UNIQUE allows any
	// number of NULLs, so it only limits users to a single location.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS locations (
			id         TEXT PRIMARY KEY,
			user_id    TEXT UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			latitude   REAL NOT NULL,
			longitude  REAL NOT NULL,
			address    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating locations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS food_posts (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity    TEXT NOT NULL,
			expiry_date DATETIME NOT NULL,
			status      TEXT NOT NULL DEFAULT 'AVAILABLE',
			donor_id    TEXT NOT NULL REFERENCES users(id),
			location_id TEXT NOT NULL REFERENCES locations(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_food_posts_status ON food_posts(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_food_posts_donor_id ON food_posts(donor_id);
	`)
	if err != nil {
		return fmt.Errorf("creating food_posts table: %w", err)
	}

	// The UNIQUE triple is what makes find-or-create safe under concurrency:
	// the second of two racing inserts becomes a no-op instead of a duplicate.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS chats (
			id          TEXT PRIMARY KEY,
			post_id     TEXT NOT NULL REFERENCES food_posts(id) ON DELETE CASCADE,
			donor_id    TEXT NOT NULL REFERENCES users(id),
			receiver_id TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_chats_participants
			ON chats(post_id, donor_id, receiver_id);
	`)
	if err != nil {
		return fmt.Errorf("creating chats table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			sender_id  TEXT NOT NULL REFERENCES users(id),
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}

	// Requests are written by the reservation workflow; this service only
	// reads them for donor history.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS requests (
			id          TEXT PRIMARY KEY,
			post_id     TEXT NOT NULL REFERENCES food_posts(id) ON DELETE CASCADE,
			receiver_id TEXT NOT NULL REFERENCES users(id),
			status      TEXT NOT NULL DEFAULT 'PENDING',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_requests_post_id ON requests(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating requests table: %w", err)
	}

	return nil
}

// rollback is deferred after BeginTx. After a successful Commit it is a no-op
// (sql.ErrTxDone is ignored).
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
