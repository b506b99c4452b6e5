package search

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/search/specialists", h.searchSpecialists)
}

func (h *Handler) searchSpecialists(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := respond.DecodeLenient(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	resp, err := h.service.Search(r.Context(), req)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrMissingSpecialty):
		respond.Error(w, http.StatusBadRequest, "missing_specialty", err.Error())
	case errors.Is(err, ErrInvalidRequest):
		respond.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, directory.ErrUnavailable):
		h.logger.Warn("search: directory unavailable", "error", err)
		w.Header().Set("Retry-After", "1")
		respond.Error(w, http.StatusServiceUnavailable, "directory_unavailable", "provider directory temporarily unavailable")
	default:
		h.logger.Error("search: failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
