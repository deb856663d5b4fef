package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"taskboard-service/core"
)

type DB struct {
	log  *slog.Logger
	conn *sqlx.DB
}

func New(log *slog.Logger, address string) (*DB, error) {
	conn, err := sqlx.Connect("pgx", address)
	if err != nil {
		log.Error("connection problem", "address", address, "error", err)
		return nil, err
	}
	return &DB{log: log, conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Projects

func (db *DB) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	const q = `
		INSERT INTO projects(id, name, slug, description, status, color, created_at, task_counter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	_, err := db.conn.ExecContext(ctx, q,
		p.ID, p.Name, p.Slug, p.Description, p.Status, p.Color, p.CreatedAt, p.TaskCounter)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Project{}, core.ErrInvalidArgs
		}
		return core.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (db *DB) GetProject(ctx context.Context, id string) (core.Project, error) {
	const q = `
		SELECT id, name, slug, description, status, color, created_at, task_counter
		FROM projects
		WHERE id = $1;
	`

	var p core.Project
	if err := db.conn.GetContext(ctx, &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Project{}, core.ErrProjectNotFound
		}
		return core.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (db *DB) ListProjects(ctx context.Context, status core.ProjectStatus) ([]core.Project, error) {
	const q = `
		SELECT id, name, slug, description, status, color, created_at, task_counter
		FROM projects
		WHERE status = $1
		ORDER BY created_at ASC;
	`

	var out []core.Project
	if err := db.conn.SelectContext(ctx, &out, q, string(status)); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

func (db *DB) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	const q = `
		UPDATE projects
		SET name = $2,
		    slug = $3,
		    description = $4,
		    status = $5,
		    color = $6
		WHERE id = $1;
	`

	res, err := db.conn.ExecContext(ctx, q, p.ID, p.Name, p.Slug, p.Description, p.Status, p.Color)
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

// AllocateCardNumber relies on the single-statement atomicity of
// UPDATE ... RETURNING: concurrent calls serialize on the row lock, so no
// two callers ever observe the same counter value.
func (db *DB) AllocateCardNumber(ctx context.Context, projectID string) (int64, error) {
	const q = `
		UPDATE projects
		SET task_counter = task_counter + 1
		WHERE id = $1
		RETURNING task_counter;
	`

	var number int64
	if err := db.conn.QueryRowxContext(ctx, q, projectID).Scan(&number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, core.ErrProjectNotFound
		}
		return 0, fmt.Errorf("allocate card number: %w", err)
	}
	return number, nil
}

// Tasks

type taskRow struct {
	ID           string          `db:"id"`
	ProjectID    string          `db:"project_id"`
	ParentTaskID sql.NullString  `db:"parent_task_id"`
	CardID       string          `db:"card_id"`
	Title        string          `db:"title"`
	Description  string          `db:"description"`
	Status       string          `db:"status"`
	Assignee     string          `db:"assignee"`
	Priority     string          `db:"priority"`
	Tags         jsonList        `db:"tags"`
	BlockedBy    jsonList        `db:"blocked_by"`
	ModelUsed    string          `db:"model_used"`
	Position     int64           `db:"position"`
	LastTouched  time.Time       `db:"last_touched_at"`
	CreatedAt    time.Time       `db:"created_at"`
	CompletedAt  sql.NullTime    `db:"completed_at"`
}

func (r taskRow) toCore() core.Task {
	t := core.Task{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		CardID:      r.CardID,
		Title:       r.Title,
		Description: r.Description,
		Status:      core.TaskStatus(r.Status),
		Assignee:    core.Assignee(r.Assignee),
		Priority:    core.Priority(r.Priority),
		Tags:        []string(r.Tags),
		BlockedBy:   []string(r.BlockedBy),
		ModelUsed:   r.ModelUsed,
		Position:    r.Position,
		LastTouched: r.LastTouched,
		CreatedAt:   r.CreatedAt,
	}
	if r.ParentTaskID.Valid {
		parent := r.ParentTaskID.String
		t.ParentTaskID = &parent
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time
		t.CompletedAt = &completed
	}
	return t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const taskColumns = `id, project_id, parent_task_id, card_id, title, description, status, assignee, priority, tags, blocked_by, model_used, "position", last_touched_at, created_at, completed_at`

func (db *DB) CreateTask(ctx context.Context, t core.Task, entry core.AuditLogEntry) (core.Task, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO tasks(` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`

	_, err = tx.ExecContext(ctx, q,
		t.ID, t.ProjectID, nullString(t.ParentTaskID), t.CardID, t.Title, t.Description,
		string(t.Status), string(t.Assignee), string(t.Priority),
		jsonList(t.Tags), jsonList(t.BlockedBy), t.ModelUsed,
		t.Position, t.LastTouched, t.CreatedAt, nullTime(t.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			// duplicate card id: a concurrent create won the same number
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
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1;`

	var r taskRow
	if err := db.conn.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	return r.toCore(), nil
}

// GetTaskByCardID is a point lookup against the unique card_id index.
func (db *DB) GetTaskByCardID(ctx context.Context, cardID string) (core.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE card_id = $1;`

	var r taskRow
	if err := db.conn.GetContext(ctx, &r, q, cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, core.ErrTaskNotFound
		}
		return core.Task{}, fmt.Errorf("get task by card id: %w", err)
	}
	return r.toCore(), nil
}

func (db *DB) ListTasksByProject(ctx context.Context, projectID string) ([]core.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1;`
	return db.selectTasks(ctx, q, projectID)
}

func (db *DB) ListSubtasks(ctx context.Context, parentTaskID string) ([]core.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE parent_task_id = $1;`
	return db.selectTasks(ctx, q, parentTaskID)
}

func (db *DB) ListTasks(ctx context.Context, f core.ListTasksFilter) ([]core.Task, error) {
	var (
		sb   strings.Builder
		args []any
		n    = 1
	)

	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`)

	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		sb.WriteString(fmt.Sprintf(" AND project_id = $%d", n))
		n++
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		sb.WriteString(fmt.Sprintf(" AND status = $%d", n))
		n++
	}
	if f.Assignee != nil {
		args = append(args, string(*f.Assignee))
		sb.WriteString(fmt.Sprintf(" AND assignee = $%d", n))
		n++
	}

	sb.WriteString(` ORDER BY "position" ASC`)

	return db.selectTasks(ctx, sb.String(), args...)
}

func (db *DB) selectTasks(ctx context.Context, query string, args ...any) ([]core.Task, error) {
	var rows []taskRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	out := make([]core.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (db *DB) UpdateTask(ctx context.Context, t core.Task, entries []core.AuditLogEntry) (core.Task, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return core.Task{}, fmt.Errorf("begin update task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		UPDATE tasks
		SET parent_task_id = $2,
		    title = $3,
		    description = $4,
		    status = $5,
		    assignee = $6,
		    priority = $7,
		    tags = $8,
		    blocked_by = $9,
		    model_used = $10,
		    "position" = $11,
		    last_touched_at = $12,
		    completed_at = $13
		WHERE id = $1;
	`

	res, err := tx.ExecContext(ctx, q,
		t.ID, nullString(t.ParentTaskID), t.Title, t.Description,
		string(t.Status), string(t.Assignee), string(t.Priority),
		jsonList(t.Tags), jsonList(t.BlockedBy), t.ModelUsed,
		t.Position, t.LastTouched, nullTime(t.CompletedAt))
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

// DeleteTask removes the row only. Audit entries stay (append-only) and
// the project counter is not touched.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	const q = `DELETE FROM tasks WHERE id = $1;`

	res, err := db.conn.ExecContext(ctx, q, id)
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
	const q = `SELECT DISTINCT jsonb_array_elements_text(tags) AS tag FROM tasks ORDER BY tag ASC;`

	var out []string
	if err := db.conn.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}

// Audit log

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAuditLog(ctx context.Context, e execer, entry core.AuditLogEntry) error {
	const q = `
		INSERT INTO audit_logs(id, task_id, actor, action, "before", "after", comment, model_used, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	_, err := e.ExecContext(ctx, q,
		entry.ID, entry.TaskID, string(entry.Actor), entry.Action,
		nullString(entry.Before), nullString(entry.After),
		nullString(entry.Comment), nullString(entry.ModelUsed), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (db *DB) AppendAuditLog(ctx context.Context, e core.AuditLogEntry) (core.AuditLogEntry, error) {
	if err := insertAuditLog(ctx, db.conn, e); err != nil {
		return core.AuditLogEntry{}, err
	}
	return e, nil
}

type auditRow struct {
	ID        string         `db:"id"`
	TaskID    string         `db:"task_id"`
	Actor     string         `db:"actor"`
	Action    string         `db:"action"`
	Before    sql.NullString `db:"before"`
	After     sql.NullString `db:"after"`
	Comment   sql.NullString `db:"comment"`
	ModelUsed sql.NullString `db:"model_used"`
	Timestamp time.Time      `db:"timestamp"`
}

func (r auditRow) toCore() core.AuditLogEntry {
	e := core.AuditLogEntry{
		ID:        r.ID,
		TaskID:    r.TaskID,
		Actor:     core.Actor(r.Actor),
		Action:    r.Action,
		Timestamp: r.Timestamp,
	}
	if r.Before.Valid {
		v := r.Before.String
		e.Before = &v
	}
	if r.After.Valid {
		v := r.After.String
		e.After = &v
	}
	if r.Comment.Valid {
		v := r.Comment.String
		e.Comment = &v
	}
	if r.ModelUsed.Valid {
		v := r.ModelUsed.String
		e.ModelUsed = &v
	}
	return e
}

func (db *DB) ListAuditLogsByTask(ctx context.Context, taskID string) ([]core.AuditLogEntry, error) {
	const q = `
		SELECT id, task_id, actor, action, "before", "after", comment, model_used, "timestamp"
		FROM audit_logs
		WHERE task_id = $1
		ORDER BY "timestamp" DESC;
	`

	var rows []auditRow
	if err := db.conn.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	out := make([]core.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// pg helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var _ core.DB = (*DB)(nil)
