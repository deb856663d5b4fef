// Package sqlite is the single-user local store: same schema as the
// postgres adapter, kept in a file under the user's data directory.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"taskboard-service/core"
)

//go:embed schema.sql
var schema string

type DB struct {
	log  *slog.Logger
	conn *sql.DB
}

// New opens (and creates if needed) the database at path. An empty path
// falls back to the XDG data directory.
func New(log *slog.Logger, path string) (*DB, error) {
	if path == "" {
		var err error
		path, err = defaultPath()
		if err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_loc=UTC")
	if err != nil {
		log.Error("cannot open sqlite database", "path", path, "error", err)
		return nil, err
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{log: log, conn: conn}, nil
}

func defaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	appDir := filepath.Join(dataDir, "taskboard")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(appDir, "taskboard.db"), nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// Projects

func (db *DB) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, name, slug, description, status, color, created_at, task_counter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Slug, p.Description, string(p.Status), p.Color, p.CreatedAt, p.TaskCounter)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Project{}, core.ErrInvalidArgs
		}
		return core.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func scanProject(row interface{ Scan(...any) error }) (core.Project, error) {
	var p core.Project
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &status, &p.Color, &p.CreatedAt, &p.TaskCounter)
	if err != nil {
		return core.Project{}, err
	}
	p.Status = core.ProjectStatus(status)
	return p, nil
}

func (db *DB) GetProject(ctx context.Context, id string) (core.Project, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, slug, description, status, color, created_at, task_counter
		FROM projects WHERE id = ?
	`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Project{}, core.ErrProjectNotFound
		}
		return core.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (db *DB) ListProjects(ctx context.Context, status core.ProjectStatus) ([]core.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, slug, description, status, color, created_at, task_counter
		FROM projects WHERE status = ? ORDER BY created_at ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, slug = ?, description = ?, status = ?, color = ?
		WHERE id = ?
	`, p.Name, p.Slug, p.Description, string(p.Status), p.Color, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Project{}, core.ErrInvalidArgs
		}
		return core.Project{}, fmt.Errorf("update project: %w", err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

// AllocateCardNumber runs the increment and the read inside one
// transaction; sqlite serializes writers, so concurrent allocations
// cannot observe the same counter value.
func (db *DB) AllocateCardNumber(ctx context.Context, projectID string) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin allocate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET task_counter = task_counter + 1 WHERE id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return 0, core.ErrProjectNotFound
	}

	var number int64
	if err := tx.QueryRowContext(ctx,
		`SELECT task_counter FROM projects WHERE id = ?`, projectID).Scan(&number); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit allocate: %w", err)
	}
	return number, nil
}

// Tasks

const taskColumns = `id, project_id, parent_task_id, card_id, title, description, status, assignee, priority, tags, blocked_by, model_used, position, last_touched_at, created_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (core.Task, error) {
	var (
		t           core.Task
		parent      sql.NullString
		status      string
		assignee    string
		priority    string
		tags        string
		blockedBy   string
		completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.ProjectID, &parent, &t.CardID, &t.Title, &t.Description,
		&status, &assignee, &priority, &tags, &blockedBy, &t.ModelUsed,
		&t.Position, &t.LastTouched, &t.CreatedAt, &completedAt)
	if err != nil {
		return core.Task{}, err
	}
	t.Status = core.TaskStatus(status)
	t.Assignee = core.Assignee(assignee)
	t.Priority = core.Priority(priority)
	t.Tags = unmarshalList(tags)
	t.BlockedBy = unmarshalList(blockedBy)
	if parent.Valid {
		v := parent.String
		t.ParentTaskID = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return t, nil
}

func insertAuditLog(ctx context.Context, e interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, entry core.AuditLogEntry) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO audit_logs (id, task_id, actor, action, before, after, comment, model_used, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TaskID, string(entry.Actor), entry.Action,
		entry.Before, entry.After, entry.Comment, entry.ModelUsed, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (db *DB) CreateTask(ctx context.Context, t core.Task, entry core.AuditLogEntry) (core.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.ParentTaskID, t.CardID, t.Title, t.Description,
		string(t.Status), string(t.Assignee), string(t.Priority),
		marshalList(t.Tags), marshalList(t.BlockedBy), t.ModelUsed,
		t.Position, t.LastTouched, t.CreatedAt, t.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Task{}, core.ErrAllocationConflict
		}
		if isForeignKeyViolation(err) {
			return core.Task{}, core.ErrProjectNotFound
		}
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}

	if err := insertAuditLog(ctx, tx, entry); err != nil {
		return core.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Task{}, fmt.Errorf("commit create task: %w", err)
	}
	return t, nil
}

func (db *DB) GetTask(ctx context.Context, id string) (core.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (db *DB) GetTaskByCardID(ctx context.Context, cardID string) (core.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE card_id = ?`, cardID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task by card id: %w", err)
	}
	return t, nil
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]core.Task, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	out := make([]core.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) ListTasksByProject(ctx context.Context, projectID string) ([]core.Task, error) {
	return db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ?`, projectID)
}

func (db *DB) ListSubtasks(ctx context.Context, parentTaskID string) ([]core.Task, error) {
	return db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = ?`, parentTaskID)
}

func (db *DB) ListTasks(ctx context.Context, f core.ListTasksFilter) ([]core.Task, error) {
	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`)

	if f.ProjectID != nil {
		sb.WriteString(" AND project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.Status != nil {
		sb.WriteString(" AND status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Assignee != nil {
		sb.WriteString(" AND assignee = ?")
		args = append(args, string(*f.Assignee))
	}

	sb.WriteString(" ORDER BY position ASC")

	return db.queryTasks(ctx, sb.String(), args...)
}

func (db *DB) UpdateTask(ctx context.Context, t core.Task, entries []core.AuditLogEntry) (core.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin update task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET parent_task_id = ?, title = ?, description = ?, status = ?, assignee = ?,
		    priority = ?, tags = ?, blocked_by = ?, model_used = ?, position = ?,
		    last_touched_at = ?, completed_at = ?
		WHERE id = ?
	`, t.ParentTaskID, t.Title, t.Description, string(t.Status), string(t.Assignee),
		string(t.Priority), marshalList(t.Tags), marshalList(t.BlockedBy), t.ModelUsed,
		t.Position, t.LastTouched, t.CompletedAt, t.ID)
	if err != nil {
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return core.Task{}, core.ErrTaskNotFound
	}

	for _, entry := range entries {
		if err := insertAuditLog(ctx, tx, entry); err != nil {
			return core.Task{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Task{}, fmt.Errorf("commit update task: %w", err)
	}
	return t, nil
}

func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return core.ErrTaskNotFound
	}
	return nil
}

func (db *DB) ListAllTags(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT tags FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan tags: %w", err)
		}
		out = append(out, unmarshalList(raw)...)
	}
	return out, rows.Err()
}

// Audit log

func (db *DB) AppendAuditLog(ctx context.Context, e core.AuditLogEntry) (core.AuditLogEntry, error) {
	if err := insertAuditLog(ctx, db.conn, e); err != nil {
		return core.AuditLogEntry{}, err
	}
	return e, nil
}

func (db *DB) ListAuditLogsByTask(ctx context.Context, taskID string) ([]core.AuditLogEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, task_id, actor, action, before, after, comment, model_used, timestamp
		FROM audit_logs
		WHERE task_id = ?
		ORDER BY timestamp DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := make([]core.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e     core.AuditLogEntry
			actor string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &actor, &e.Action,
			&e.Before, &e.After, &e.Comment, &e.ModelUsed, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Actor = core.Actor(actor)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ core.DB = (*DB)(nil)
