package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskboard-service/pkg/res"
)

func NewPingHandler(log *slog.Logger, svc Board, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			log.Error("ping failed", "error", err)
			res.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		res.Json(w, map[string]any{"ok": true}, http.StatusOK)
	}
}
