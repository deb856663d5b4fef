package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskboard-service/adapters/rest"
	"taskboard-service/core"
	"taskboard-service/pkg/res"
)

func parseStatus(s string) (core.TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backlog":
		return core.StatusBacklog, true
	case "todo":
		return core.StatusTODO, true
	case "in-progress":
		return core.StatusInProgress, true
	case "review":
		return core.StatusReview, true
	case "done":
		return core.StatusDone, true
	default:
		return "", false
	}
}

func parsePriority(s string) (core.Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return core.PriorityLow, true
	case "medium":
		return core.PriorityMedium, true
	case "high":
		return core.PriorityHigh, true
	case "urgent":
		return core.PriorityUrgent, true
	default:
		return "", false
	}
}

func parseAssignee(s string) (core.Assignee, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dan":
		return core.AssigneeDan, true
	case "dali":
		return core.AssigneeDali, true
	default:
		return "", false
	}
}

// parseActor resolves the caller identity; omitted defaults to the
// primary human user, matching the upstream UI behavior.
func parseActor(s *string) (core.Actor, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return core.ActorDan, true
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "dan":
		return core.ActorDan, true
	case "dali":
		return core.ActorDali, true
	case "system":
		return core.ActorSystem, true
	default:
		return "", false
	}
}

func NewCreateTaskHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.CreateTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		assignee, ok := parseAssignee(in.Assignee)
		if !ok {
			res.Error(w, "invalid assignee", http.StatusBadRequest)
			return
		}
		priority, ok := parsePriority(in.Priority)
		if !ok {
			res.Error(w, "invalid priority", http.StatusBadRequest)
			return
		}

		args := core.CreateTaskArgs{
			ProjectID:    in.ProjectID,
			Title:        in.Title,
			Description:  in.Description,
			Assignee:     assignee,
			Priority:     priority,
			Tags:         in.Tags,
			ParentTaskID: in.ParentTaskID,
		}
		if in.Status != nil {
			st, ok := parseStatus(*in.Status)
			if !ok {
				res.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			args.Status = &st
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.CreateTask(ctx, args)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusCreated)
	}
}

func NewListTasksHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			items []core.Task
			err   error
		)
		switch {
		case q.Get("project_id") != "":
			items, err = svc.ListTasksByProject(ctx, q.Get("project_id"))
		case q.Get("status") != "":
			st, ok := parseStatus(q.Get("status"))
			if !ok {
				res.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			items, err = svc.ListTasksByStatus(ctx, st)
		case q.Has("assignee"):
			var assignee *core.Assignee
			if v := q.Get("assignee"); v != "" {
				a, ok := parseAssignee(v)
				if !ok {
					res.Error(w, "invalid assignee", http.StatusBadRequest)
					return
				}
				assignee = &a
			}
			items, err = svc.ListTasksByAssignee(ctx, assignee)
		default:
			items, err = svc.ListAllTasks(ctx)
		}
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"tasks": items}, http.StatusOK)
	}
}

func NewGetTaskHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.GetTask(ctx, id)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewGetTaskByCardHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID := r.PathValue("cardId")
		if cardID == "" {
			res.Error(w, "invalid card id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.GetTaskByCardID(ctx, cardID)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewPatchTaskHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in rest.PatchTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		actor, ok := parseActor(in.Actor)
		if !ok {
			res.Error(w, "invalid actor", http.StatusBadRequest)
			return
		}

		var p core.TaskPatch
		p.Title = in.Title
		p.Description = in.Description
		p.Tags = in.Tags
		p.BlockedBy = in.BlockedBy
		p.ModelUsed = in.ModelUsed
		if in.Assignee != nil {
			a, ok := parseAssignee(*in.Assignee)
			if !ok {
				res.Error(w, "invalid assignee", http.StatusBadRequest)
				return
			}
			p.Assignee = &a
		}
		if in.Priority != nil {
			pr, ok := parsePriority(*in.Priority)
			if !ok {
				res.Error(w, "invalid priority", http.StatusBadRequest)
				return
			}
			p.Priority = &pr
		}

		if p.Title == nil && p.Description == nil && p.Assignee == nil &&
			p.Priority == nil && p.Tags == nil && p.BlockedBy == nil && p.ModelUsed == nil {
			res.Error(w, "no fields to update", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.UpdateTask(ctx, id, actor, p)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewMoveTaskHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in rest.MoveTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		actor, ok := parseActor(in.Actor)
		if !ok {
			res.Error(w, "invalid actor", http.StatusBadRequest)
			return
		}
		status, ok := parseStatus(in.Status)
		if !ok {
			res.Error(w, "invalid status", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.MoveToColumn(ctx, id, actor, status, in.Position)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewReorderTaskHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in rest.ReorderTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.Reorder(ctx, id, in.Position)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewListTagsHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		tags, err := svc.AllTags(ctx)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"tags": tags}, http.StatusOK)
	}
}
