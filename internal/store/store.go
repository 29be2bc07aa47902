package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	language TEXT NOT NULL,
	code TEXT NOT NULL,
	test_code TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	pattern_type TEXT NOT NULL DEFAULT '',
	complexity TEXT NOT NULL DEFAULT '',
	coherency_json TEXT NOT NULL DEFAULT '{}',
	test_passed INTEGER NOT NULL DEFAULT 0,
	author TEXT NOT NULL DEFAULT '',
	usage_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	last_used TEXT,
	created_at TEXT NOT NULL,
	parent_pattern_id TEXT,
	evolution_history TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'candidate'
);
CREATE INDEX IF NOT EXISTS idx_patterns_name_lang ON patterns(name, language);
CREATE INDEX IF NOT EXISTS idx_patterns_status ON patterns(status);

CREATE TABLE IF NOT EXISTS healed_variants (
	id TEXT PRIMARY KEY,
	parent_pattern_id TEXT NOT NULL,
	healed_code TEXT NOT NULL,
	original_coherency REAL NOT NULL,
	healed_coherency REAL NOT NULL,
	healing_loops INTEGER NOT NULL,
	healing_strategy TEXT NOT NULL DEFAULT '',
	whisper TEXT NOT NULL DEFAULT '',
	healed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_healed_parent ON healed_variants(parent_pattern_id);

CREATE TABLE IF NOT EXISTS healing_stats (
	pattern_id TEXT PRIMARY KEY,
	attempts INTEGER NOT NULL DEFAULT 0,
	successes INTEGER NOT NULL DEFAULT 0,
	peak_coherency REAL NOT NULL DEFAULT 0,
	last_delta_best REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS votes (
	pattern_id TEXT NOT NULL,
	voter TEXT NOT NULL,
	value INTEGER NOT NULL,
	cast_at TEXT NOT NULL,
	PRIMARY KEY (pattern_id, voter)
);

CREATE TABLE IF NOT EXISTS debug_patterns (
	fingerprint TEXT PRIMARY KEY,
	error_message TEXT NOT NULL,
	stack_trace TEXT NOT NULL DEFAULT '',
	fix_code TEXT NOT NULL,
	language TEXT NOT NULL,
	category TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	times_applied INTEGER NOT NULL DEFAULT 0,
	times_resolved INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	action TEXT NOT NULL,
	table_name TEXT NOT NULL,
	record_id TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_log(record_id);
`

// Store is the SQLite-backed pattern store: PRAGMA tuning, a
// single-writer connection pool, and schema-on-open.
type Store struct {
	db   *sql.DB
	path string

	// mu serializes writes; a single mutex is sufficient at this scale
	// since SetMaxOpenConns(1) already serializes every statement against
	// the one connection.
	mu sync.Mutex
}

// Open creates (if needed) the directory at dir, opens/initializes
// patterns.db inside it, and returns a ready Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "create store directory", err)
	}

	dbPath := filepath.Join(dir, "patterns.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "open patterns.db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, oracleerr.Wrap(oracleerr.IoFailure, "apply pragma "+p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "initialize schema", err)
	}

	logging.StoreDebug("opened store at %s", dbPath)
	return &Store{db: db, path: dbPath}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) emitAudit(action, table, recordID, actor string, detail map[string]any) {
	detailJSON := "{}"
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			detailJSON = string(b)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log (timestamp, action, table_name, record_id, actor, detail) VALUES (?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), action, table, recordID, actor, detailJSON,
	)
	if err != nil {
		logging.StoreError("failed to write audit log entry action=%s table=%s record=%s: %v", action, table, recordID, err)
	}
}

// AuditTrail returns every audit log entry for a given record, oldest first.
func (s *Store) AuditTrail(recordID string) ([]AuditLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, action, table_name, record_id, actor, detail FROM audit_log WHERE record_id = ? ORDER BY id ASC`,
		recordID,
	)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "query audit trail", err)
	}
	defer rows.Close()

	var entries []AuditLogEntry
	for rows.Next() {
		var e AuditLogEntry
		var ts string
		if err := rows.Scan(&ts, &e.Action, &e.Table, &e.RecordID, &e.Actor, &e.Detail); err != nil {
			return nil, oracleerr.Wrap(oracleerr.IoFailure, "scan audit row", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, nil
}

// Backup writes a JSON snapshot of every pattern into
// <storeDir>/backups/<timestamp>-<reason>/patterns.json. Callers take one
// before any bulk mutation.
func (s *Store) Backup(reason string) (string, error) {
	storeDir := filepath.Dir(s.path)
	stamp := time.Now().UTC().Format("20060102T150405Z")
	backupDir := filepath.Join(storeDir, "backups", fmt.Sprintf("%s-%s", stamp, reason))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", oracleerr.Wrap(oracleerr.IoFailure, "create backup directory", err)
	}

	patterns, err := s.List(Filter{})
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return "", oracleerr.Wrap(oracleerr.Internal, "marshal backup snapshot", err)
	}
	outPath := filepath.Join(backupDir, "patterns.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", oracleerr.Wrap(oracleerr.IoFailure, "write backup snapshot", err)
	}
	return outPath, nil
}
