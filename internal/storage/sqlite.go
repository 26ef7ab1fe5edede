package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for kanban cards and the chat
// transcript archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bigob.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw connection for tests and maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Cards ---

const cardColumns = `id, title, description, col, created_at, updated_at`

func (s *Store) CreateCard(title, description, column string) (Card, error) {
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO cards (title, description, col, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		title, description, column, ts, ts,
	)
	if err != nil {
		return Card{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Card{}, err
	}
	return Card{
		ID:          id,
		Title:       title,
		Description: description,
		Column:      column,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Store) GetCard(id int64) (Card, error) {
	row := s.db.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	return scanCard(row)
}

func (s *Store) ListCards() ([]Card, error) {
	return s.queryCards(`SELECT ` + cardColumns + ` FROM cards ORDER BY id ASC`)
}

func (s *Store) ListCardsByColumn(column string) ([]Card, error) {
	return s.queryCards(`SELECT `+cardColumns+` FROM cards WHERE col = ? ORDER BY id ASC`, column)
}

// SearchCards matches query case-insensitively against title and description.
func (s *Store) SearchCards(query string) ([]Card, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	return s.queryCards(`
		SELECT `+cardColumns+` FROM cards
		WHERE lower(title) LIKE ? OR lower(description) LIKE ?
		ORDER BY id ASC`, pattern, pattern)
}

func (s *Store) UpdateCard(id int64, upd CardUpdate) (Card, error) {
	card, err := s.GetCard(id)
	if err != nil {
		return Card{}, err
	}

	if upd.Title != nil {
		card.Title = *upd.Title
	}
	if upd.Description != nil {
		card.Description = *upd.Description
	}
	if upd.Column != nil {
		card.Column = *upd.Column
	}
	card.UpdatedAt = time.Now().UTC()

	res, err := s.db.Exec(`
		UPDATE cards SET title = ?, description = ?, col = ?, updated_at = ? WHERE id = ?`,
		card.Title, card.Description, card.Column, card.UpdatedAt.Format(time.RFC3339), id,
	)
	if err != nil {
		return Card{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Card{}, err
	}
	if n == 0 {
		return Card{}, ErrNotFound
	}
	return card, nil
}

// DeleteCard removes a card and returns it, so callers can echo what was
// deleted.
func (s *Store) DeleteCard(id int64) (Card, error) {
	card, err := s.GetCard(id)
	if err != nil {
		return Card{}, err
	}
	if _, err := s.db.Exec(`DELETE FROM cards WHERE id = ?`, id); err != nil {
		return Card{}, err
	}
	return card, nil
}

// BoardStats returns the per-column card counts plus a "total" entry.
func (s *Store) BoardStats() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT col, COUNT(*) FROM cards GROUP BY col`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int, len(ValidColumns)+1)
	for _, c := range ValidColumns {
		stats[c] = 0
	}
	total := 0
	for rows.Next() {
		var col string
		var n int
		if err := rows.Scan(&col, &n); err != nil {
			return nil, err
		}
		stats[col] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats["total"] = total
	return stats, nil
}

func (s *Store) queryCards(query string, args ...any) ([]Card, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, card)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (Card, error) {
	var c Card
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Column, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Card{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Card{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// --- Transcripts ---

func (s *Store) AppendTranscript(e TranscriptEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO transcripts (id, topic_id, user_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TopicID, e.UserID, e.Role, e.Text, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListTranscript returns the most recent entries for a topic in chronological
// order, capped at limit.
func (s *Store) ListTranscript(topicID int64, limit int) ([]TranscriptEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, topic_id, user_id, role, text, created_at FROM (
			SELECT id, topic_id, user_id, role, text, created_at, rowid AS rid
			FROM transcripts WHERE topic_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at ASC, rid ASC`, topicID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TranscriptEntry
	for rows.Next() {
		var e TranscriptEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TopicID, &e.UserID, &e.Role, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// PurgeTranscripts deletes the entire archive and returns the number of rows
// removed.
func (s *Store) PurgeTranscripts() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM transcripts`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
