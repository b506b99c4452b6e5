package availability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// Handler exposes the manual ledger write path and availability reads.
type Handler struct {
	ledger *Ledger
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(ledger *Ledger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ledger: ledger, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/availability/windows", h.createWindow)
	r.Delete("/availability/windows/{windowID}", h.deleteWindow)
	r.Get("/providers/{providerID}/availability", h.providerAvailability)
}

type windowRequest struct {
	ProviderID       string `json:"provider_id"`
	Kind             string `json:"kind"`
	DayOfWeek        *int   `json:"day_of_week,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	TimeZone         string `json:"time_zone"`
	Active           *bool  `json:"active,omitempty"`
	LocationOverride string `json:"location_override,omitempty"`
}

func (req windowRequest) toWindow() (Window, error) {
	w := Window{
		ProviderID:       req.ProviderID,
		Kind:             Kind(req.Kind),
		DayOfWeek:        req.DayOfWeek,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		TimeZone:         req.TimeZone,
		Active:           true,
		LocationOverride: req.LocationOverride,
	}
	if w.Kind == "" {
		w.Kind = KindAvailable
	}
	if req.Active != nil {
		w.Active = *req.Active
	}
	if req.StartDate != "" {
		d, err := ParseDate(req.StartDate)
		if err != nil {
			return Window{}, err
		}
		w.StartDate = &d
	}
	if req.EndDate != "" {
		d, err := ParseDate(req.EndDate)
		if err != nil {
			return Window{}, err
		}
		w.EndDate = &d
	}
	return w, nil
}

func (h *Handler) createWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	win, err := req.toWindow()
	if err == nil {
		win, err = h.ledger.AddWindow(r.Context(), win)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"success": true, "window": win})
}

func (h *Handler) deleteWindow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "window id must be a UUID")
		return
	}
	if err := h.ledger.RemoveWindow(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) providerAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	from := h.now().UTC()
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		from = t
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 31 {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "days must be 1-31")
			return
		}
		days = n
	}
	slotMinutes := 30
	if v := r.URL.Query().Get("slot_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "slot_minutes must be positive")
			return
		}
		slotMinutes = n
	}

	ctx := r.Context()
	windows, err := h.ledger.Windows(ctx, providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	to := from.AddDate(0, 0, days)
	respond.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"provider_id": providerID,
		"windows":     windows,
		"open":        Expand(windows, from, to),
		"slots":       Slots(providerID, windows, from, to, time.Duration(slotMinutes)*time.Minute),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidWindow):
		respond.Error(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, ErrOverlap):
		respond.Error(w, http.StatusConflict, "window_overlap", err.Error())
	case errors.Is(err, ErrShiftOwned):
		respond.Error(w, http.StatusConflict, "shift_owned", err.Error())
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("availability handler", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
