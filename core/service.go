package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// allocateAttempts bounds the create retry loop when the storage substrate
// reports a counter race instead of serializing it.
const allocateAttempts = 3

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{
		db: db,
	}
}

func isValidStatus(st TaskStatus) bool {
	switch st {
	case StatusBacklog, StatusTODO, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

func isValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func isValidAssignee(a Assignee) bool {
	return a == AssigneeDan || a == AssigneeDali
}

func isValidActor(a Actor) bool {
	return a == ActorDan || a == ActorDali || a == ActorSystem
}

// jsonValue renders a field value the way audit before/after snapshots are
// stored: as its JSON serialization.
func jsonValue(v any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf("%v", v)
		return &s
	}
	s := string(b)
	return &s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Projects

func (s *Service) CreateProject(ctx context.Context, name, color, description string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(color) == "" {
		return Project{}, ErrInvalidArgs
	}
	slug := Slugify(name)
	if slug == "" {
		return Project{}, ErrInvalidArgs
	}

	return s.db.CreateProject(ctx, Project{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: description,
		Status:      ProjectActive,
		Color:       color,
		CreatedAt:   time.Now().UTC(),
		TaskCounter: 0,
	})
}

func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	if id == "" {
		return Project{}, ErrInvalidArgs
	}
	return s.db.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.db.ListProjects(ctx, ProjectActive)
}

func (s *Service) UpdateProject(ctx context.Context, id string, p ProjectPatch) (Project, error) {
	if id == "" {
		return Project{}, ErrInvalidArgs
	}
	cur, err := s.db.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Project{}, ErrInvalidArgs
		}
		cur.Name = name
		// keep the slug in sync with the name unless one was given explicitly
		if p.Slug == nil {
			cur.Slug = Slugify(name)
		}
	}
	if p.Slug != nil {
		slug := strings.TrimSpace(*p.Slug)
		if slug == "" {
			return Project{}, ErrInvalidArgs
		}
		cur.Slug = slug
	}
	if p.Color != nil {
		cur.Color = *p.Color
	}
	if p.Description != nil {
		cur.Description = *p.Description
	}

	return s.db.UpdateProject(ctx, cur)
}

// ArchiveProject soft-deletes: projects are never hard-deleted.
func (s *Service) ArchiveProject(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgs
	}
	cur, err := s.db.GetProject(ctx, id)
	if err != nil {
		return err
	}
	cur.Status = ProjectArchived
	_, err = s.db.UpdateProject(ctx, cur)
	return err
}

// Tasks

// CreateTask allocates the next card number for the project, places the
// task at the bottom of its column and records a "created" audit entry.
func (s *Service) CreateTask(ctx context.Context, args CreateTaskArgs) (Task, error) {
	if args.ProjectID == "" || strings.TrimSpace(args.Title) == "" {
		return Task{}, ErrInvalidArgs
	}
	if !isValidAssignee(args.Assignee) || !isValidPriority(args.Priority) {
		return Task{}, ErrInvalidArgs
	}
	status := StatusBacklog
	if args.Status != nil {
		if !isValidStatus(*args.Status) {
			return Task{}, ErrInvalidArgs
		}
		status = *args.Status
	}

	project, err := s.db.GetProject(ctx, args.ProjectID)
	if err != nil {
		return Task{}, err
	}

	if args.ParentTaskID != nil {
		if _, err := s.db.GetTask(ctx, *args.ParentTaskID); err != nil {
			return Task{}, err
		}
	}

	var number int64
	for attempt := 1; ; attempt++ {
		number, err = s.db.AllocateCardNumber(ctx, args.ProjectID)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAllocationConflict) || attempt >= allocateAttempts {
			return Task{}, err
		}
	}
	cardID := fmt.Sprintf("%s-%d", strings.ToUpper(project.Slug), number)

	// bottom of the target column: max position among the project's tasks
	// in that status, plus one (only a by-project index is assumed)
	existing, err := s.db.ListTasksByProject(ctx, args.ProjectID)
	if err != nil {
		return Task{}, err
	}
	var maxPosition int64
	for _, t := range existing {
		if t.Status == status && t.Position > maxPosition {
			maxPosition = t.Position
		}
	}

	now := time.Now().UTC()
	tags := args.Tags
	if tags == nil {
		tags = []string{}
	}

	task := Task{
		ID:           uuid.NewString(),
		ProjectID:    args.ProjectID,
		ParentTaskID: args.ParentTaskID,
		CardID:       cardID,
		Title:        args.Title,
		Description:  args.Description,
		Status:       status,
		Assignee:     args.Assignee,
		Priority:     args.Priority,
		Tags:         tags,
		BlockedBy:    []string{},
		Position:     maxPosition + 1,
		LastTouched:  now,
		CreatedAt:    now,
	}

	entry := AuditLogEntry{
		ID:     uuid.NewString(),
		TaskID: task.ID,
		Actor:  ActorSystem,
		Action: "created",
		After: jsonValue(map[string]any{
			"title":    task.Title,
			"status":   task.Status,
			"assignee": task.Assignee,
		}),
		Timestamp: now,
	}

	return s.db.CreateTask(ctx, task, entry)
}

type fieldChange struct {
	name   string
	before any
	after  any
}

// UpdateTask applies the provided fields, comparing each against the
// current value with a typed comparison, and records one audit entry per
// field that actually changed. An update where nothing differs writes
// nothing and leaves lastTouchedAt alone.
func (s *Service) UpdateTask(ctx context.Context, id string, actor Actor, p TaskPatch) (Task, error) {
	if id == "" || !isValidActor(actor) {
		return Task{}, ErrInvalidArgs
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Task{}, ErrInvalidArgs
	}
	if p.Assignee != nil && !isValidAssignee(*p.Assignee) {
		return Task{}, ErrInvalidArgs
	}
	if p.Priority != nil && !isValidPriority(*p.Priority) {
		return Task{}, ErrInvalidArgs
	}

	cur, err := s.db.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}

	if p.BlockedBy != nil {
		for _, dep := range *p.BlockedBy {
			if dep == id {
				return Task{}, ErrInvalidArgs
			}
			if _, err := s.db.GetTask(ctx, dep); err != nil {
				return Task{}, err
			}
		}
	}

	var changes []fieldChange
	if p.Title != nil && *p.Title != cur.Title {
		changes = append(changes, fieldChange{"title", cur.Title, *p.Title})
		cur.Title = *p.Title
	}
	if p.Description != nil && *p.Description != cur.Description {
		changes = append(changes, fieldChange{"description", cur.Description, *p.Description})
		cur.Description = *p.Description
	}
	if p.Assignee != nil && *p.Assignee != cur.Assignee {
		changes = append(changes, fieldChange{"assignee", cur.Assignee, *p.Assignee})
		cur.Assignee = *p.Assignee
	}
	if p.Priority != nil && *p.Priority != cur.Priority {
		changes = append(changes, fieldChange{"priority", cur.Priority, *p.Priority})
		cur.Priority = *p.Priority
	}
	if p.Tags != nil && !slices.Equal(*p.Tags, cur.Tags) {
		changes = append(changes, fieldChange{"tags", cur.Tags, *p.Tags})
		cur.Tags = *p.Tags
	}
	if p.BlockedBy != nil && !slices.Equal(*p.BlockedBy, cur.BlockedBy) {
		changes = append(changes, fieldChange{"blockedBy", cur.BlockedBy, *p.BlockedBy})
		cur.BlockedBy = *p.BlockedBy
	}
	if p.ModelUsed != nil && *p.ModelUsed != cur.ModelUsed {
		changes = append(changes, fieldChange{"modelUsed", cur.ModelUsed, *p.ModelUsed})
		cur.ModelUsed = *p.ModelUsed
	}

	if len(changes) == 0 {
		return cur, nil
	}

	now := time.Now().UTC()
	cur.LastTouched = now

	entries := make([]AuditLogEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, AuditLogEntry{
			ID:        uuid.NewString(),
			TaskID:    id,
			Actor:     actor,
			Action:    "updated " + c.name,
			Before:    jsonValue(c.before),
			After:     jsonValue(c.after),
			Timestamp: now,
		})
	}

	return s.db.UpdateTask(ctx, cur, entries)
}

// MoveToColumn sets status and position unconditionally. Entering "done"
// from any other status stamps completedAt once; the stamp is never
// recomputed on later moves while already done.
func (s *Service) MoveToColumn(ctx context.Context, id string, actor Actor, status TaskStatus, position int64) (Task, error) {
	if id == "" || !isValidActor(actor) || !isValidStatus(status) {
		return Task{}, ErrInvalidArgs
	}

	cur, err := s.db.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	oldStatus := cur.Status

	cur.Status = status
	cur.Position = position
	cur.LastTouched = now
	if status == StatusDone && oldStatus != StatusDone {
		cur.CompletedAt = &now
	}

	before := string(oldStatus)
	after := string(status)
	entry := AuditLogEntry{
		ID:        uuid.NewString(),
		TaskID:    id,
		Actor:     actor,
		Action:    "moved",
		Before:    &before,
		After:     &after,
		Timestamp: now,
	}

	return s.db.UpdateTask(ctx, cur, []AuditLogEntry{entry})
}

// Reorder is cosmetic: position and lastTouchedAt only, no audit entry.
func (s *Service) Reorder(ctx context.Context, id string, position int64) (Task, error) {
	if id == "" {
		return Task{}, ErrInvalidArgs
	}

	cur, err := s.db.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}

	cur.Position = position
	cur.LastTouched = time.Now().UTC()

	return s.db.UpdateTask(ctx, cur, nil)
}

// Queries

func (s *Service) GetTask(ctx context.Context, id string) (TaskWithSubtasks, error) {
	if id == "" {
		return TaskWithSubtasks{}, ErrInvalidArgs
	}
	t, err := s.db.GetTask(ctx, id)
	if err != nil {
		return TaskWithSubtasks{}, err
	}
	subtasks, err := s.db.ListSubtasks(ctx, id)
	if err != nil {
		return TaskWithSubtasks{}, err
	}
	if subtasks == nil {
		subtasks = []Task{}
	}
	return TaskWithSubtasks{Task: t, Subtasks: subtasks}, nil
}

func (s *Service) GetTaskByCardID(ctx context.Context, cardID string) (Task, error) {
	if cardID == "" {
		return Task{}, ErrInvalidArgs
	}
	return s.db.GetTaskByCardID(ctx, cardID)
}

// ListTasksByProject returns the project's board, ordered by status then
// position within the column.
func (s *Service) ListTasksByProject(ctx context.Context, projectID string) ([]Task, error) {
	if projectID == "" {
		return nil, ErrInvalidArgs
	}
	if _, err := s.db.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.db.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return tasks[i].Status < tasks[j].Status
		}
		return tasks[i].Position < tasks[j].Position
	})
	return tasks, nil
}

// ListAllTasks returns every task across projects, position-sorted.
func (s *Service) ListAllTasks(ctx context.Context) ([]Task, error) {
	tasks, err := s.db.ListTasks(ctx, ListTasksFilter{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Position < tasks[j].Position
	})
	return tasks, nil
}

func (s *Service) ListTasksByStatus(ctx context.Context, status TaskStatus) ([]Task, error) {
	if !isValidStatus(status) {
		return nil, ErrInvalidArgs
	}
	return s.db.ListTasks(ctx, ListTasksFilter{Status: &status})
}

// ListTasksByAssignee is the "my queue" view: open top-level tasks, with
// done tasks and subtasks filtered out.
func (s *Service) ListTasksByAssignee(ctx context.Context, assignee *Assignee) ([]Task, error) {
	if assignee != nil && !isValidAssignee(*assignee) {
		return nil, ErrInvalidArgs
	}
	tasks, err := s.db.ListTasks(ctx, ListTasksFilter{Assignee: assignee})
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == StatusDone || t.ParentTaskID != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// AllTags returns every tag used across tasks, deduplicated and sorted.
func (s *Service) AllTags(ctx context.Context) ([]string, error) {
	tags, err := s.db.ListAllTags(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tags)
	tags = slices.Compact(tags)
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// Audit log

// RecordAuditLog appends a free-form entry. Entries are immutable and
// never deleted.
func (s *Service) RecordAuditLog(ctx context.Context, taskID string, actor Actor, action string, before, after, comment, modelUsed *string) (AuditLogEntry, error) {
	if taskID == "" || !isValidActor(actor) || strings.TrimSpace(action) == "" {
		return AuditLogEntry{}, ErrInvalidArgs
	}
	if _, err := s.db.GetTask(ctx, taskID); err != nil {
		return AuditLogEntry{}, err
	}

	return s.db.AppendAuditLog(ctx, AuditLogEntry{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Actor:     actor,
		Action:    action,
		Before:    before,
		After:     after,
		Comment:   comment,
		ModelUsed: modelUsed,
		Timestamp: time.Now().UTC(),
	})
}

// AuditLogsByTask returns a task's history, newest first.
func (s *Service) AuditLogsByTask(ctx context.Context, taskID string) ([]AuditLogEntry, error) {
	if taskID == "" {
		return nil, ErrInvalidArgs
	}
	logs, err := s.db.ListAuditLogsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}
