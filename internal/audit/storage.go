// Package audit keeps a durable record of every authorization decision the
// dispatcher makes, in SQLite (optionally SQLCipher-encrypted).
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/logger"
	_ "github.com/mutecomm/go-sqlcipher/v4" // SQLCipher driver for encrypted SQLite
)

var log = logger.New("audit")

// MinEncryptionKeyLength is the minimum required length for encryption keys
const MinEncryptionKeyLength = 16

// MaxRecentMinutes is the maximum time window for recent entries (7 days)
const MaxRecentMinutes = 10080

// MaxRetentionDays is the maximum allowed retention period
const MaxRetentionDays = 36500 // 100 years

// Entry is one authorization decision. Paths and Detail are sandbox-relative
// and safe to show to API callers.
type Entry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	Operation  string    `json:"operation"`
	Verb       string    `json:"verb"`
	Paths      []string  `json:"paths"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
}

// Stats holds aggregate decision counts.
type Stats struct {
	Total    int64            `json:"total"`
	Allowed  int64            `json:"allowed"`
	Denied   int64            `json:"denied"`
	ByReason map[string]int64 `json:"by_reason"`
}

// Storage handles SQLite/SQLCipher database operations
type Storage struct {
	conn      *sql.DB
	encrypted bool
}

// NewStorage creates a new storage instance with optional encryption.
// The parent directory is created owner-only if missing.
func NewStorage(dbPath string, encryptionKey string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := fileutil.SecureMkdirAll(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")

	// Key goes in the DSN rather than a PRAGMA statement so it is never
	// spliced into SQL text.
	if encryptionKey != "" {
		if len(encryptionKey) < MinEncryptionKeyLength {
			return nil, fmt.Errorf("encryption key must be at least %d characters", MinEncryptionKeyLength)
		}
		params.Set("_pragma_key", encryptionKey)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer at a time. Limiting to 1 connection
	// serializes all DB access at the Go level, preventing SQLITE_BUSY errors.
	conn.SetMaxOpenConns(1)

	encrypted := false
	if encryptionKey != "" {
		var result int
		if err := conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&result); err != nil {
			conn.Close()
			return nil, fmt.Errorf("encryption key verification failed: %w", err)
		}
		encrypted = true
		log.Info("Database encryption enabled")
	}

	s := &Storage{conn: conn, encrypted: encrypted}
	if _, err := conn.ExecContext(context.Background(), schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	request_id TEXT NOT NULL,
	operation TEXT,
	verb TEXT,
	paths TEXT DEFAULT '[]',
	allowed BOOLEAN NOT NULL,
	reason TEXT,
	detail TEXT,
	status INTEGER DEFAULT 0,
	duration_ms INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_request_id ON decisions(request_id);
CREATE INDEX IF NOT EXISTS idx_decisions_reason ON decisions(reason);
`

// IsEncrypted returns whether the database is encrypted
func (s *Storage) IsEncrypted() bool {
	return s.encrypted
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.conn.Close()
}

// DB returns the underlying database connection
func (s *Storage) DB() *sql.DB {
	return s.conn
}

// Record inserts one decision.
func (s *Storage) Record(ctx context.Context, e Entry) error {
	paths := e.Paths
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("failed to encode paths: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO decisions (request_id, operation, verb, paths, allowed, reason, detail, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RequestID, e.Operation, e.Verb, string(pathsJSON), e.Allowed, e.Reason, e.Detail, e.Status, e.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Recent returns decisions from the last minutes, newest first.
func (s *Storage) Recent(ctx context.Context, minutes, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	if minutes <= 0 {
		minutes = 60
	} else if minutes > MaxRecentMinutes {
		minutes = MaxRecentMinutes
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, request_id, operation, verb, paths, allowed, reason, detail, status, duration_ms
		FROM decisions
		WHERE timestamp > datetime('now', ?)
		ORDER BY id DESC
		LIMIT ?
	`, fmt.Sprintf("-%d minutes", minutes), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var ts *time.Time
		var operation, verb, pathsStr, reason, detail *string
		if err := rows.Scan(&e.ID, &ts, &e.RequestID, &operation, &verb, &pathsStr,
			&e.Allowed, &reason, &detail, &e.Status, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		if ts != nil {
			e.Timestamp = ts.UTC()
		}
		e.Operation = derefStr(operation)
		e.Verb = derefStr(verb)
		e.Reason = derefStr(reason)
		e.Detail = derefStr(detail)
		if pathsStr != nil {
			if err := json.Unmarshal([]byte(*pathsStr), &e.Paths); err != nil {
				log.Debug("Bad paths column in row %d: %v", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns decision counts over the whole retained history.
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByReason: make(map[string]int64)}

	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN allowed THEN 1 ELSE 0 END), 0)
		FROM decisions
	`).Scan(&stats.Total, &stats.Allowed)
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	stats.Denied = stats.Total - stats.Allowed

	rows, err := s.conn.QueryContext(ctx, `
		SELECT reason, COUNT(*)
		FROM decisions
		WHERE NOT allowed AND reason IS NOT NULL AND reason != ''
		GROUP BY reason
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan reason row: %w", err)
		}
		stats.ByReason[reason] = n
	}
	return stats, rows.Err()
}

// CleanupOldData drops decisions older than days. days <= 0 keeps everything.
func (s *Storage) CleanupOldData(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	if days > MaxRetentionDays {
		days = MaxRetentionDays
	}

	ctx := context.Background()
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	result, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE timestamp < datetime('now', ?)`,
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old decisions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup transaction: %w", err)
	}
	if deleted > 0 {
		log.Info("Cleaned up %d decisions older than %d days", deleted, days)
	}
	return deleted, nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
