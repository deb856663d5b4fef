package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"taskboard-service/adapters/rest"
	"taskboard-service/pkg/res"
)

func NewListAuditLogsHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		logs, err := svc.AuditLogsByTask(ctx, id)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"audit_logs": logs}, http.StatusOK)
	}
}

func NewAppendAuditLogHandler(_ *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.AppendAuditLogIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		actor, ok := parseActor(&in.Actor)
		if !ok {
			res.Error(w, "invalid actor", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		entry, err := svc.RecordAuditLog(ctx, in.TaskID, actor, in.Action,
			in.Before, in.After, in.Comment, in.ModelUsed)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, entry, http.StatusCreated)
	}
}
