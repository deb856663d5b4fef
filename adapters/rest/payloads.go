package rest

type CreateProjectIn struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type PatchProjectIn struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Color       *string `json:"color,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateTaskIn struct {
	ProjectID    string   `json:"project_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Assignee     string   `json:"assignee"`
	Priority     string   `json:"priority"`
	Tags         []string `json:"tags,omitempty"`
	Status       *string  `json:"status,omitempty"`
	ParentTaskID *string  `json:"parent_task_id,omitempty"`
}

type PatchTaskIn struct {
	Actor       *string   `json:"actor,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	BlockedBy   *[]string `json:"blocked_by,omitempty"`
	ModelUsed   *string   `json:"model_used,omitempty"`
}

type MoveTaskIn struct {
	Actor    *string `json:"actor,omitempty"`
	Status   string  `json:"status"`
	Position int64   `json:"position"`
}

type ReorderTaskIn struct {
	Position int64 `json:"position"`
}

type AppendAuditLogIn struct {
	TaskID    string  `json:"task_id"`
	Actor     string  `json:"actor"`
	Action    string  `json:"action"`
	Before    *string `json:"before,omitempty"`
	After     *string `json:"after,omitempty"`
	Comment   *string `json:"comment,omitempty"`
	ModelUsed *string `json:"model_used,omitempty"`
}
