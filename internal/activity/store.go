package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_name TEXT NOT NULL,
	causer_id INTEGER NOT NULL DEFAULT 0,
	causer_name TEXT NOT NULL DEFAULT '',
	event TEXT NOT NULL,
	subject_type TEXT NOT NULL DEFAULT '',
	subject_id INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_log_name ON activity_log(log_name);
CREATE INDEX IF NOT EXISTS idx_activity_log_causer ON activity_log(causer_id);
`

// SQLiteStore is an append-only audit log kept in its own sqlite file.
type SQLiteStore struct {
	conn *sql.DB
	now  func() time.Time
}

// Filter narrows List results.
type Filter struct {
	Channel  string
	CauserID uint
	Page     int
	PerPage  int
}

// ListResult is a page of audit entries, newest first.
type ListResult struct {
	Entries    []Entry `json:"entries"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
}

// OpenSQLite opens (creating if needed) the audit database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create activity db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open activity database: %w", err)
	}
	// 单连接：保证 :memory: 库在整个生命周期内可见，并串行化写入
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create activity schema: %w", err)
	}

	return &SQLiteStore{conn: conn, now: time.Now}, nil
}

// Record implements Recorder.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	props := entry.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO activity_log (log_name, causer_id, causer_name, event, subject_type, subject_id, description, properties, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Channel, entry.CauserID, entry.CauserName, entry.Event,
		entry.SubjectType, entry.SubjectID, entry.Description, string(encoded),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) (ListResult, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	var (
		conds []string
		args  []interface{}
	)
	if channel := strings.TrimSpace(f.Channel); channel != "" {
		conds = append(conds, "log_name = ?")
		args = append(args, channel)
	}
	if f.CauserID > 0 {
		conds = append(conds, "causer_id = ?")
		args = append(args, f.CauserID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	result := ListResult{Page: page, PerPage: perPage, Entries: []Entry{}}
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_log"+where, args...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count activity: %w", err)
	}
	result.TotalPages = int((result.Total + int64(perPage) - 1) / int64(perPage))
	if result.TotalPages == 0 {
		result.TotalPages = 1
	}

	query := `SELECT id, log_name, causer_id, causer_name, event, subject_type, subject_id, description, properties, created_at
		FROM activity_log` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := s.conn.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return result, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry     Entry
			props     string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Channel, &entry.CauserID, &entry.CauserName, &entry.Event,
			&entry.SubjectType, &entry.SubjectID, &entry.Description, &props, &createdAt); err != nil {
			return result, fmt.Errorf("scan activity: %w", err)
		}
		if props != "" && props != "{}" {
			if err := json.Unmarshal([]byte(props), &entry.Properties); err != nil {
				return result, fmt.Errorf("decode properties: %w", err)
			}
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result.Entries = append(result.Entries, entry)
	}
	return result, rows.Err()
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
