package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"taskboard-service/adapters/rest"
	"taskboard-service/core"
	"taskboard-service/pkg/res"
)

func NewCreateProjectHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.CreateProjectIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		p, err := svc.CreateProject(ctx, in.Name, in.Color, in.Description)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, p, http.StatusCreated)
	}
}

func NewListProjectsHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := svc.ListProjects(ctx)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"projects": items}, http.StatusOK)
	}
}

func NewGetProjectHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		p, err := svc.GetProject(ctx, id)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, p, http.StatusOK)
	}
}

func NewPatchProjectHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in rest.PatchProjectIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if in.Name == nil && in.Slug == nil && in.Color == nil && in.Description == nil {
			res.Error(w, "no fields to update", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		p, err := svc.UpdateProject(ctx, id, core.ProjectPatch{
			Name:        in.Name,
			Slug:        in.Slug,
			Color:       in.Color,
			Description: in.Description,
		})
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, p, http.StatusOK)
	}
}

func NewArchiveProjectHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := svc.ArchiveProject(ctx, id); err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"ok": true}, http.StatusOK)
	}
}
