package waitlist

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/directory"
	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

type Handler struct {
	service *Service
	matcher *Matcher
	logger  *logging.Logger
}

func NewHandler(service *Service, matcher *Matcher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, matcher: matcher, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/waitlist", h.create)
	r.Get("/waitlist/{entryID}", h.get)
	r.Delete("/waitlist/{entryID}", h.fulfill)
	r.Post("/waitlist/{entryID}/reactivate", h.reactivate)
}

// RegisterInternalRoutes mounts the scheduler trigger.
func (h *Handler) RegisterInternalRoutes(r chi.Router) {
	r.Post("/waitlist/match", h.match)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	e, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"success": true, "entry": e})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "entry": e})
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.service.Fulfill(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Reactivate(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "entry": e})
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	var trig Trigger
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &trig); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}
	if trig.Reason == "" {
		trig.Reason = "manual"
	}
	res, err := h.matcher.Run(r.Context(), trig)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func entryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "entry id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidEntry):
		respond.Error(w, http.StatusBadRequest, "invalid_entry", err.Error())
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrNotMatched):
		respond.Error(w, http.StatusConflict, "not_matched", err.Error())
	case errors.Is(err, directory.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		respond.Error(w, http.StatusServiceUnavailable, "directory_unavailable", "provider directory temporarily unavailable")
	default:
		h.logger.Error("waitlist handler", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
