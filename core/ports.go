package core

import "context"

// DB is the storage port. Implementations must make AllocateCardNumber
// atomic per project: two concurrent calls must never observe the same
// counter value. SQL adapters do this with a single
// UPDATE ... RETURNING; the test fake serializes with a mutex.
//
// Writes that carry audit entries (CreateTask, UpdateTask) must persist
// the record and its entries atomically where the substrate allows it,
// so a failed audit write never leaves an unexplained mutation behind.
type DB interface {
	Ping(ctx context.Context) error

	// projects
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, status ProjectStatus) ([]Project, error)
	UpdateProject(ctx context.Context, p Project) (Project, error)

	// AllocateCardNumber increments the project's task counter by exactly
	// one, persists it, and returns the new value. The counter never
	// decreases; task deletion does not affect it.
	AllocateCardNumber(ctx context.Context, projectID string) (int64, error)

	// tasks
	CreateTask(ctx context.Context, t Task, entry AuditLogEntry) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	GetTaskByCardID(ctx context.Context, cardID string) (Task, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]Task, error)
	ListSubtasks(ctx context.Context, parentTaskID string) ([]Task, error)
	ListTasks(ctx context.Context, f ListTasksFilter) ([]Task, error)
	UpdateTask(ctx context.Context, t Task, entries []AuditLogEntry) (Task, error)
	// DeleteTask exists at the storage layer only; the service never
	// exposes it. It must leave the project counter untouched.
	DeleteTask(ctx context.Context, id string) error
	ListAllTags(ctx context.Context) ([]string, error)

	// audit log
	AppendAuditLog(ctx context.Context, e AuditLogEntry) (AuditLogEntry, error)
	ListAuditLogsByTask(ctx context.Context, taskID string) ([]AuditLogEntry, error)
}
