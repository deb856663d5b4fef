package core_test

import (
	"context"
	"slices"
	"sync"

	"taskboard-service/core"
)

// fakeDB is an in-memory implementation of the storage port. The mutex
// serializes AllocateCardNumber the way the SQL adapters' atomic UPDATE
// does. allocateConflicts lets tests inject transient counter races.
type fakeDB struct {
	mu sync.RWMutex

	projects map[string]core.Project
	tasks    map[string]core.Task
	logs     []core.AuditLogEntry

	allocateConflicts int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		projects: make(map[string]core.Project),
		tasks:    make(map[string]core.Task),
	}
}

func cloneTask(t core.Task) core.Task {
	out := t
	out.Tags = slices.Clone(t.Tags)
	out.BlockedBy = slices.Clone(t.BlockedBy)
	if t.ParentTaskID != nil {
		parent := *t.ParentTaskID
		out.ParentTaskID = &parent
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

func (db *fakeDB) Ping(context.Context) error {
	return nil
}

func (db *fakeDB) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.projects[p.ID] = p
	return p, nil
}

func (db *fakeDB) GetProject(_ context.Context, id string) (core.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.projects[id]
	if !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

func (db *fakeDB) ListProjects(_ context.Context, status core.ProjectStatus) ([]core.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []core.Project
	for _, p := range db.projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (db *fakeDB) UpdateProject(_ context.Context, p core.Project) (core.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[p.ID]; !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	db.projects[p.ID] = p
	return p, nil
}

func (db *fakeDB) AllocateCardNumber(_ context.Context, projectID string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.allocateConflicts > 0 {
		db.allocateConflicts--
		return 0, core.ErrAllocationConflict
	}

	p, ok := db.projects[projectID]
	if !ok {
		return 0, core.ErrProjectNotFound
	}
	p.TaskCounter++
	db.projects[projectID] = p
	return p.TaskCounter, nil
}

func (db *fakeDB) CreateTask(_ context.Context, t core.Task, entry core.AuditLogEntry) (core.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[t.ProjectID]; !ok {
		return core.Task{}, core.ErrProjectNotFound
	}
	for _, existing := range db.tasks {
		if existing.CardID == t.CardID {
			return core.Task{}, core.ErrAllocationConflict
		}
	}
	db.tasks[t.ID] = cloneTask(t)
	db.logs = append(db.logs, entry)
	return t, nil
}

func (db *fakeDB) GetTask(_ context.Context, id string) (core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tasks[id]
	if !ok {
		return core.Task{}, core.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (db *fakeDB) GetTaskByCardID(_ context.Context, cardID string) (core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, t := range db.tasks {
		if t.CardID == cardID {
			return cloneTask(t), nil
		}
	}
	return core.Task{}, core.ErrTaskNotFound
}

func (db *fakeDB) ListTasksByProject(_ context.Context, projectID string) ([]core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]core.Task, 0)
	for _, t := range db.tasks {
		if t.ProjectID == projectID {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (db *fakeDB) ListSubtasks(_ context.Context, parentTaskID string) ([]core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]core.Task, 0)
	for _, t := range db.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentTaskID {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (db *fakeDB) ListTasks(_ context.Context, f core.ListTasksFilter) ([]core.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]core.Task, 0)
	for _, t := range db.tasks {
		if f.ProjectID != nil && t.ProjectID != *f.ProjectID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Assignee != nil && t.Assignee != *f.Assignee {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func (db *fakeDB) UpdateTask(_ context.Context, t core.Task, entries []core.AuditLogEntry) (core.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tasks[t.ID]; !ok {
		return core.Task{}, core.ErrTaskNotFound
	}
	db.tasks[t.ID] = cloneTask(t)
	db.logs = append(db.logs, entries...)
	return t, nil
}

func (db *fakeDB) DeleteTask(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tasks[id]; !ok {
		return core.ErrTaskNotFound
	}
	delete(db.tasks, id)
	return nil
}

func (db *fakeDB) ListAllTags(_ context.Context) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []string
	for _, t := range db.tasks {
		out = append(out, t.Tags...)
	}
	return out, nil
}

func (db *fakeDB) AppendAuditLog(_ context.Context, e core.AuditLogEntry) (core.AuditLogEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.logs = append(db.logs, e)
	return e, nil
}

func (db *fakeDB) ListAuditLogsByTask(_ context.Context, taskID string) ([]core.AuditLogEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]core.AuditLogEntry, 0)
	for _, e := range db.logs {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ core.DB = (*fakeDB)(nil)
