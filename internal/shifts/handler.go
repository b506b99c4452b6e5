package shifts

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

type Handler struct {
	sync   *Synchronizer
	logger *logging.Logger
}

func NewHandler(sync *Synchronizer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sync: sync, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/shifts/actions", h.performAction)
	r.Post("/shifts/listings", h.createListing)
	r.Post("/shifts/{listingID}/applications", h.apply)
	r.Get("/shifts/{listingID}/applications", h.listApplications)
	r.Post("/shifts/assignments/{assignmentID}/complete", h.complete)
}

type actionRequest struct {
	ShiftListingID string `json:"shiftListingId"`
	SpecialistID   string `json:"specialistId"`
	Action         string `json:"action"`
}

func (h *Handler) performAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	listingID, err := uuid.Parse(req.ShiftListingID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "shiftListingId must be a UUID")
		return
	}
	res, err := h.sync.Perform(r.Context(), listingID, req.SpecialistID, Action(req.Action))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

type listingRequest struct {
	ClinicID            string `json:"clinic_id"`
	Specialty           string `json:"specialty"`
	Date                string `json:"date"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	TimeZone            string `json:"time_zone"`
	Location            string `json:"location,omitempty"`
	AutoAccept          bool   `json:"auto_accept"`
	Urgent              bool   `json:"urgent"`
	RequiredLanguage    string `json:"required_language,omitempty"`
	BookableDuringShift bool   `json:"bookable_during_shift"`
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_listing", "date must be YYYY-MM-DD")
		return
	}
	listing, err := h.sync.CreateListing(r.Context(), Listing{
		ClinicID:            req.ClinicID,
		Specialty:           req.Specialty,
		Date:                date,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		TimeZone:            req.TimeZone,
		Location:            req.Location,
		AutoAccept:          req.AutoAccept,
		Urgent:              req.Urgent,
		RequiredLanguage:    req.RequiredLanguage,
		BookableDuringShift: req.BookableDuringShift,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"success": true, "listing": listing})
}

type applyRequest struct {
	SpecialistID string `json:"specialistId"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	res, err := h.sync.Apply(r.Context(), listingID, req.SpecialistID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, res)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	apps, err := h.sync.Applications(r.Context(), listingID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "applications": apps})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "assignment id must be a UUID")
		return
	}
	a, err := h.sync.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "assignment": a})
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "listing id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrListingUnavailable):
		respond.Error(w, http.StatusConflict, CodeListingUnavailable, "This shift has already been filled.")
	case errors.Is(err, ErrDoubleBooked):
		respond.Error(w, http.StatusConflict, "double_booked", err.Error())
	case errors.Is(err, ErrAssignmentNotActive):
		respond.Error(w, http.StatusConflict, "assignment_not_active", err.Error())
	case errors.Is(err, ErrAlreadyApplied):
		respond.Error(w, http.StatusConflict, "already_applied", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, ErrInvalidAction):
		respond.Error(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, ErrInvalidListing):
		respond.Error(w, http.StatusBadRequest, "invalid_listing", err.Error())
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("shifts handler", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
