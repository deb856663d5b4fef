package rest

import (
	"errors"
	"net/http"

	"taskboard-service/core"
	"taskboard-service/pkg/res"
)

func WriteErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidArgs):
		res.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrProjectNotFound), errors.Is(err, core.ErrTaskNotFound):
		res.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrAllocationConflict):
		res.Error(w, err.Error(), http.StatusConflict)
	default:
		res.Error(w, "internal error", http.StatusInternalServerError)
	}
}
