// Package sqlite provides SQLite-based persistent storage for Agora.
// Uses WAL mode for concurrent reads and crash-safe writes.
//
// The marketplace itself is memory-resident; what persists is the
// append-only record of it: the audit log of every state transition and
// the learning journal of every agent-model update.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/agora-network/agora/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Append-only audit log of marketplace actions
		`CREATE TABLE IF NOT EXISTS audit_log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			action    TEXT NOT NULL,
			task_id   TEXT NOT NULL DEFAULT '',
			agent_id  TEXT NOT NULL DEFAULT '',
			detail    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_task ON audit_log(task_id)`,

		// Learning journal: every reputation, weight, penalty, and
		// strategy update, per agent
		`CREATE TABLE IF NOT EXISTS learning_journal (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			agent_id  TEXT NOT NULL,
			task_id   TEXT NOT NULL DEFAULT '',
			tag       TEXT NOT NULL DEFAULT '',
			old_value INTEGER NOT NULL DEFAULT 0,
			new_value INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_agent ON learning_journal(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_ts ON learning_journal(timestamp)`,

		// Key-value store for node metadata
		`CREATE TABLE IF NOT EXISTS node_info (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Audit Log ──────────────────────────────────────────────────────────────

// AuditEntry is one persisted audit record.
type AuditEntry struct {
	ID      int64
	At      time.Time
	Action  string
	TaskID  string
	AgentID string
	Detail  string
}

// AppendAudit writes one audit record.
func (d *DB) AppendAudit(at time.Time, action, taskID, agentID, detail string) error {
	_, err := d.db.Exec(
		`INSERT INTO audit_log (timestamp, action, task_id, agent_id, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		at.Unix(), action, taskID, agentID, detail,
	)
	return err
}

// RecentAudit returns the newest audit records, most recent first.
func (d *DB) RecentAudit(limit int) ([]AuditEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, action, task_id, agent_id, detail
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

// AuditForTask returns every audit record for one task, oldest first.
func (d *DB) AuditForTask(taskID string) ([]AuditEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, action, task_id, agent_id, detail
		 FROM audit_log WHERE task_id = ? ORDER BY id ASC`, taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]AuditEntry, error) {
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.TaskID, &e.AgentID, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Learning Journal ───────────────────────────────────────────────────────

// AppendLearning writes one learning-journal record.
func (d *DB) AppendLearning(ev domain.LearningEvent) error {
	_, err := d.db.Exec(
		`INSERT INTO learning_journal (timestamp, kind, agent_id, task_id, tag, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.At.Unix(), ev.Kind, ev.AgentID, ev.TaskID, ev.Tag, ev.OldValue, ev.NewValue,
	)
	return err
}

// LearningForAgent returns the newest journal records for one agent, most
// recent first.
func (d *DB) LearningForAgent(agentID string, limit int) ([]domain.LearningEvent, error) {
	rows, err := d.db.Query(
		`SELECT timestamp, kind, agent_id, task_id, tag, old_value, new_value
		 FROM learning_journal WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LearningEvent
	for rows.Next() {
		var ev domain.LearningEvent
		var ts int64
		if err := rows.Scan(&ts, &ev.Kind, &ev.AgentID, &ev.TaskID, &ev.Tag, &ev.OldValue, &ev.NewValue); err != nil {
			return nil, err
		}
		ev.At = time.Unix(ts, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ─── Node Info ──────────────────────────────────────────────────────────────

// SetNodeInfo stores a key-value pair in node_info.
func (d *DB) SetNodeInfo(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO node_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetNodeInfo retrieves a value from node_info.
func (d *DB) GetNodeInfo(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM node_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
