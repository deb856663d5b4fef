package core

import "time"

type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTODO       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Assignee is one of the two board members.
type Assignee string

const (
	AssigneeDan  Assignee = "dan"
	AssigneeDali Assignee = "dali"
)

// Actor is who performed a mutation: a board member or the automation.
type Actor string

const (
	ActorDan    Actor = "dan"
	ActorDali   Actor = "dali"
	ActorSystem Actor = "system"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

type Project struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Slug        string        `db:"slug" json:"slug"`
	Description string        `db:"description" json:"description,omitempty"`
	Status      ProjectStatus `db:"status" json:"status"`
	Color       string        `db:"color" json:"color"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	// TaskCounter only ever grows. It is read and written exclusively by
	// the card number allocator; deleting tasks does not touch it.
	TaskCounter int64 `db:"task_counter" json:"task_counter"`
}

type Task struct {
	ID           string     `db:"id" json:"id"`
	ProjectID    string     `db:"project_id" json:"project_id"`
	ParentTaskID *string    `db:"parent_task_id" json:"parent_task_id,omitempty"`
	CardID       string     `db:"card_id" json:"card_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description,omitempty"`
	Status       TaskStatus `db:"status" json:"status"`
	Assignee     Assignee   `db:"assignee" json:"assignee"`
	Priority     Priority   `db:"priority" json:"priority"`
	Tags         []string   `db:"tags" json:"tags"`
	BlockedBy    []string   `db:"blocked_by" json:"blocked_by"`
	ModelUsed    string     `db:"model_used" json:"model_used,omitempty"`
	Position     int64      `db:"position" json:"position"`
	LastTouched  time.Time  `db:"last_touched_at" json:"last_touched_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// TaskWithSubtasks is the by-id query shape: the task plus its direct
// children (tasks whose ParentTaskID is this task's id).
type TaskWithSubtasks struct {
	Task
	Subtasks []Task `json:"subtasks"`
}

type AuditLogEntry struct {
	ID        string    `db:"id" json:"id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	Actor     Actor     `db:"actor" json:"actor"`
	Action    string    `db:"action" json:"action"`
	Before    *string   `db:"before" json:"before,omitempty"`
	After     *string   `db:"after" json:"after,omitempty"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	ModelUsed *string   `db:"model_used" json:"model_used,omitempty"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

type CreateTaskArgs struct {
	ProjectID    string
	Title        string
	Description  string
	Assignee     Assignee
	Priority     Priority
	Tags         []string
	Status       *TaskStatus
	ParentTaskID *string
}

// TaskPatch carries the optional fields of an update. Nil means "not
// provided"; a provided value equal to the current one is a no-op.
type TaskPatch struct {
	Title       *string
	Description *string
	Assignee    *Assignee
	Priority    *Priority
	Tags        *[]string
	BlockedBy   *[]string
	ModelUsed   *string
}

type ProjectPatch struct {
	Name        *string
	Slug        *string
	Color       *string
	Description *string
}
