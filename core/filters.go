package core

type ListTasksFilter struct {
	ProjectID *string
	Status    *TaskStatus
	Assignee  *Assignee
}
