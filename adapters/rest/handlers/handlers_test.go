package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard-service/adapters/rest/handlers"
	"taskboard-service/core"
)

// stubBoard satisfies the handler interface with overridable hooks. Hooks
// left nil return zero values, which is enough for routing checks.
type stubBoard struct {
	createTask          func(args core.CreateTaskArgs) (core.Task, error)
	updateTask          func(id string, actor core.Actor, p core.TaskPatch) (core.Task, error)
	moveToColumn        func(id string, actor core.Actor, status core.TaskStatus, position int64) (core.Task, error)
	reorder             func(id string, position int64) (core.Task, error)
	getTaskByCardID     func(cardID string) (core.Task, error)
	listTasksByAssignee func(assignee *core.Assignee) ([]core.Task, error)
	auditLogsByTask     func(taskID string) ([]core.AuditLogEntry, error)
}

func (s *stubBoard) Ping(context.Context) error { return nil }

func (s *stubBoard) CreateProject(_ context.Context, name, color, description string) (core.Project, error) {
	return core.Project{Name: name, Color: color, Description: description}, nil
}

func (s *stubBoard) GetProject(_ context.Context, id string) (core.Project, error) {
	return core.Project{ID: id}, nil
}

func (s *stubBoard) ListProjects(context.Context) ([]core.Project, error) {
	return []core.Project{}, nil
}

func (s *stubBoard) UpdateProject(_ context.Context, id string, _ core.ProjectPatch) (core.Project, error) {
	return core.Project{ID: id}, nil
}

func (s *stubBoard) ArchiveProject(context.Context, string) error { return nil }

func (s *stubBoard) CreateTask(_ context.Context, args core.CreateTaskArgs) (core.Task, error) {
	if s.createTask != nil {
		return s.createTask(args)
	}
	return core.Task{}, nil
}

func (s *stubBoard) UpdateTask(_ context.Context, id string, actor core.Actor, p core.TaskPatch) (core.Task, error) {
	if s.updateTask != nil {
		return s.updateTask(id, actor, p)
	}
	return core.Task{ID: id}, nil
}

func (s *stubBoard) MoveToColumn(_ context.Context, id string, actor core.Actor, status core.TaskStatus, position int64) (core.Task, error) {
	if s.moveToColumn != nil {
		return s.moveToColumn(id, actor, status, position)
	}
	return core.Task{ID: id}, nil
}

func (s *stubBoard) Reorder(_ context.Context, id string, position int64) (core.Task, error) {
	if s.reorder != nil {
		return s.reorder(id, position)
	}
	return core.Task{ID: id}, nil
}

func (s *stubBoard) GetTask(_ context.Context, id string) (core.TaskWithSubtasks, error) {
	return core.TaskWithSubtasks{Task: core.Task{ID: id}, Subtasks: []core.Task{}}, nil
}

func (s *stubBoard) GetTaskByCardID(_ context.Context, cardID string) (core.Task, error) {
	if s.getTaskByCardID != nil {
		return s.getTaskByCardID(cardID)
	}
	return core.Task{CardID: cardID}, nil
}

func (s *stubBoard) ListTasksByProject(context.Context, string) ([]core.Task, error) {
	return []core.Task{}, nil
}

func (s *stubBoard) ListAllTasks(context.Context) ([]core.Task, error) {
	return []core.Task{}, nil
}

func (s *stubBoard) ListTasksByStatus(context.Context, core.TaskStatus) ([]core.Task, error) {
	return []core.Task{}, nil
}

func (s *stubBoard) ListTasksByAssignee(_ context.Context, assignee *core.Assignee) ([]core.Task, error) {
	if s.listTasksByAssignee != nil {
		return s.listTasksByAssignee(assignee)
	}
	return []core.Task{}, nil
}

func (s *stubBoard) AllTags(context.Context) ([]string, error) {
	return []string{}, nil
}

func (s *stubBoard) RecordAuditLog(_ context.Context, taskID string, actor core.Actor, action string, before, after, comment, modelUsed *string) (core.AuditLogEntry, error) {
	return core.AuditLogEntry{TaskID: taskID, Actor: actor, Action: action, Before: before, After: after, Comment: comment, ModelUsed: modelUsed}, nil
}

func (s *stubBoard) AuditLogsByTask(_ context.Context, taskID string) ([]core.AuditLogEntry, error) {
	if s.auditLogsByTask != nil {
		return s.auditLogsByTask(taskID)
	}
	return []core.AuditLogEntry{}, nil
}

var _ handlers.Board = (*stubBoard)(nil)

func newMux(svc handlers.Board, secret string) *http.ServeMux {
	mux := http.NewServeMux()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers.Register(mux, log, svc, time.Second, secret)
	return mux
}

func doJSON(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "")
	rec := doJSON(mux, http.MethodGet, "/api/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateTask_Created(t *testing.T) {
	t.Parallel()

	board := &stubBoard{
		createTask: func(args core.CreateTaskArgs) (core.Task, error) {
			return core.Task{CardID: "TEST-1", Title: args.Title, Assignee: args.Assignee, Priority: args.Priority}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPost, "/api/tasks",
		`{"project_id":"p1","title":"New task","assignee":"dan","priority":"high"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got core.Task
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.CardID != "TEST-1" || got.Priority != core.PriorityHigh {
		t.Fatalf("unexpected task in response: %+v", got)
	}
}

func TestCreateTask_InvalidPriority(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "")
	rec := doJSON(mux, http.MethodPost, "/api/tasks",
		`{"project_id":"p1","title":"task","assignee":"dan","priority":"asap"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateTask_UnknownProject(t *testing.T) {
	t.Parallel()

	board := &stubBoard{
		createTask: func(core.CreateTaskArgs) (core.Task, error) {
			return core.Task{}, core.ErrProjectNotFound
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPost, "/api/tasks",
		`{"project_id":"missing","title":"task","assignee":"dan","priority":"low"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateTask_AllocationConflict(t *testing.T) {
	t.Parallel()

	board := &stubBoard{
		createTask: func(core.CreateTaskArgs) (core.Task, error) {
			return core.Task{}, core.ErrAllocationConflict
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPost, "/api/tasks",
		`{"project_id":"p1","title":"task","assignee":"dan","priority":"low"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPatchTask_ActorDefaults(t *testing.T) {
	t.Parallel()

	var gotActor core.Actor
	board := &stubBoard{
		updateTask: func(id string, actor core.Actor, p core.TaskPatch) (core.Task, error) {
			gotActor = actor
			return core.Task{ID: id}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPatch, "/api/tasks/t1", `{"title":"renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotActor != core.ActorDan {
		t.Fatalf("expected default actor dan, got %q", gotActor)
	}
}

func TestPatchTask_NoFields(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "")
	rec := doJSON(mux, http.MethodPatch, "/api/tasks/t1", `{"actor":"dali"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMoveTask_InvalidStatus(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "")
	rec := doJSON(mux, http.MethodPost, "/api/tasks/t1/move", `{"status":"shipped","position":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMoveTask_PassesThrough(t *testing.T) {
	t.Parallel()

	var gotStatus core.TaskStatus
	var gotPosition int64
	board := &stubBoard{
		moveToColumn: func(id string, actor core.Actor, status core.TaskStatus, position int64) (core.Task, error) {
			gotStatus = status
			gotPosition = position
			return core.Task{ID: id, Status: status, Position: position}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPost, "/api/tasks/t1/move", `{"actor":"dali","status":"in-progress","position":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotStatus != core.StatusInProgress || gotPosition != 3 {
		t.Fatalf("unexpected move args: status=%q position=%d", gotStatus, gotPosition)
	}
}

func TestReorderTask_PassesPosition(t *testing.T) {
	t.Parallel()

	var gotPosition int64
	board := &stubBoard{
		reorder: func(id string, position int64) (core.Task, error) {
			gotPosition = position
			return core.Task{ID: id, Position: position}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodPost, "/api/tasks/t1/reorder", `{"position":9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotPosition != 9 {
		t.Fatalf("expected position 9, got %d", gotPosition)
	}
}

func TestGetTaskByCard_RoutesCardID(t *testing.T) {
	t.Parallel()

	var gotCardID string
	board := &stubBoard{
		getTaskByCardID: func(cardID string) (core.Task, error) {
			gotCardID = cardID
			return core.Task{CardID: cardID}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodGet, "/api/cards/TEST-7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotCardID != "TEST-7" {
		t.Fatalf("expected card id TEST-7, got %q", gotCardID)
	}
}

func TestListTasks_AssigneeDispatch(t *testing.T) {
	t.Parallel()

	var called bool
	var gotAssignee *core.Assignee
	board := &stubBoard{
		listTasksByAssignee: func(assignee *core.Assignee) ([]core.Task, error) {
			called = true
			gotAssignee = assignee
			return []core.Task{}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodGet, "/api/tasks?assignee=dali", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called || gotAssignee == nil || *gotAssignee != core.AssigneeDali {
		t.Fatalf("expected assignee dali, got %v", gotAssignee)
	}

	// a present-but-empty assignee param means "any assignee"
	called = false
	rec = doJSON(mux, http.MethodGet, "/api/tasks?assignee=", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called || gotAssignee != nil {
		t.Fatalf("expected nil assignee filter, got %v", gotAssignee)
	}
}

func TestListAuditLogs_WrapsEntries(t *testing.T) {
	t.Parallel()

	board := &stubBoard{
		auditLogsByTask: func(taskID string) ([]core.AuditLogEntry, error) {
			return []core.AuditLogEntry{{TaskID: taskID, Action: "created"}}, nil
		},
	}
	mux := newMux(board, "")

	rec := doJSON(mux, http.MethodGet, "/api/tasks/t1/audit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		AuditLogs []core.AuditLogEntry `json:"audit_logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out.AuditLogs) != 1 || out.AuditLogs[0].Action != "created" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestAgentSecret_GuardsMutations(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "s3cret")

	// mutating route without the header
	rec := doJSON(mux, http.MethodPost, "/api/tasks/t1/reorder", `{"position":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// with the right header
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/t1/reorder", strings.NewReader(`{"position":1}`))
	req.Header.Set("X-Agent-Secret", "s3cret")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", rec.Code)
	}

	// reads stay open
	rec = doJSON(mux, http.MethodGet, "/api/tasks/t1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on read, got %d", rec.Code)
	}
}

func TestAgentSecret_EmptyDisablesGuard(t *testing.T) {
	t.Parallel()

	mux := newMux(&stubBoard{}, "")
	rec := doJSON(mux, http.MethodPost, "/api/tasks/t1/reorder", `{"position":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
