package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskboard-service/core"
)

// Board is what the HTTP boundary needs from the core service.
type Board interface {
	Ping(ctx context.Context) error

	// projects
	CreateProject(ctx context.Context, name, color, description string) (core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	UpdateProject(ctx context.Context, id string, p core.ProjectPatch) (core.Project, error)
	ArchiveProject(ctx context.Context, id string) error

	// tasks
	CreateTask(ctx context.Context, args core.CreateTaskArgs) (core.Task, error)
	UpdateTask(ctx context.Context, id string, actor core.Actor, p core.TaskPatch) (core.Task, error)
	MoveToColumn(ctx context.Context, id string, actor core.Actor, status core.TaskStatus, position int64) (core.Task, error)
	Reorder(ctx context.Context, id string, position int64) (core.Task, error)
	GetTask(ctx context.Context, id string) (core.TaskWithSubtasks, error)
	GetTaskByCardID(ctx context.Context, cardID string) (core.Task, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]core.Task, error)
	ListAllTasks(ctx context.Context) ([]core.Task, error)
	ListTasksByStatus(ctx context.Context, status core.TaskStatus) ([]core.Task, error)
	ListTasksByAssignee(ctx context.Context, assignee *core.Assignee) ([]core.Task, error)
	AllTags(ctx context.Context) ([]string, error)

	// audit log
	RecordAuditLog(ctx context.Context, taskID string, actor core.Actor, action string, before, after, comment, modelUsed *string) (core.AuditLogEntry, error)
	AuditLogsByTask(ctx context.Context, taskID string) ([]core.AuditLogEntry, error)
}

func Register(mux *http.ServeMux, log *slog.Logger, svc Board, timeout time.Duration, agentSecret string) {
	guard := RequireAgentSecret(agentSecret)

	// ping
	mux.Handle("GET /api/ping", NewPingHandler(log, svc, timeout))

	// projects
	mux.Handle("POST /api/projects", guard(NewCreateProjectHandler(log, svc, timeout)))
	mux.Handle("GET /api/projects", NewListProjectsHandler(log, svc, timeout))
	mux.Handle("GET /api/projects/{id}", NewGetProjectHandler(log, svc, timeout))
	mux.Handle("PATCH /api/projects/{id}", guard(NewPatchProjectHandler(log, svc, timeout)))
	mux.Handle("POST /api/projects/{id}/archive", guard(NewArchiveProjectHandler(log, svc, timeout)))

	// tasks
	mux.Handle("POST /api/tasks", guard(NewCreateTaskHandler(log, svc, timeout)))
	mux.Handle("GET /api/tasks", NewListTasksHandler(log, svc, timeout))
	mux.Handle("GET /api/tasks/{id}", NewGetTaskHandler(log, svc, timeout))
	mux.Handle("PATCH /api/tasks/{id}", guard(NewPatchTaskHandler(log, svc, timeout)))
	mux.Handle("POST /api/tasks/{id}/move", guard(NewMoveTaskHandler(log, svc, timeout)))
	mux.Handle("POST /api/tasks/{id}/reorder", guard(NewReorderTaskHandler(log, svc, timeout)))
	mux.Handle("GET /api/cards/{cardId}", NewGetTaskByCardHandler(log, svc, timeout))
	mux.Handle("GET /api/tags", NewListTagsHandler(log, svc, timeout))

	// audit log
	mux.Handle("GET /api/tasks/{id}/audit", NewListAuditLogsHandler(log, svc, timeout))
	mux.Handle("POST /api/audit", guard(NewAppendAuditLogHandler(log, svc, timeout)))
}
