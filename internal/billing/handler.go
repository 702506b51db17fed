package billing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clubward/clubward/internal/platform/httpx"
)

// RespondError maps billing error kinds to HTTP problem responses. The kind
// survives the mapping so the consuming surface can react correctly;
// anything unrecognised collapses to 500 without leaking internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConfiguration):
		httpx.Problem(w, http.StatusInternalServerError, "Configuration Error", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Handler exposes the billing engine over JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers billing routes on the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/enrollments", h.createEnrollment)
	r.Delete("/enrollments/{id}", h.deleteEnrollment)
	r.Post("/dues/{id}/payments", h.recordPayment)
	r.Get("/members/{id}/finances", h.memberFinances)
	r.Post("/members/{id}/reconcile", h.reconcileMember)
	r.Post("/members/{id}/status", h.setMemberStatus)
}

type createEnrollmentRequest struct {
	MemberID       int64   `json:"member_id" validate:"required,gt=0"`
	StartDate      string  `json:"start_date" validate:"required"`
	MonthlyAmount  float64 `json:"monthly_amount" validate:"omitempty,gt=0"`
	Plan           string  `json:"plan"`
	Notes          string  `json:"notes"`
	ScheduleMonths int     `json:"schedule_months" validate:"omitempty,gte=1,lte=360"`
}

func (h *Handler) createEnrollment(w http.ResponseWriter, r *http.Request) {
	var req createEnrollmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	startDate, err := ParseDate(req.StartDate)
	if err != nil {
		RespondError(w, err)
		return
	}

	enrollment, err := h.service.CreateEnrollment(r.Context(), CreateEnrollmentInput{
		MemberID:       req.MemberID,
		StartDate:      startDate,
		MonthlyAmount:  req.MonthlyAmount,
		Plan:           req.Plan,
		Notes:          req.Notes,
		ScheduleMonths: req.ScheduleMonths,
	})
	if err != nil {
		h.logger.Error("create enrollment", slog.Int64("member_id", req.MemberID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, enrollment)
}

func (h *Handler) deleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	snapshot, err := h.service.DeleteEnrollment(r.Context(), id)
	if err != nil {
		h.logger.Error("delete enrollment", slog.Int64("enrollment_id", id), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

type recordPaymentRequest struct {
	PaidAt     *time.Time `json:"paid_at"`
	Amount     *float64   `json:"amount" validate:"omitempty,gt=0"`
	Method     string     `json:"method"`
	Reference  string     `json:"reference"`
	Notes      string     `json:"notes"`
	SyncStatus *bool      `json:"sync_status"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	dueID, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	receipt, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		DueID:      dueID,
		PaidAt:     req.PaidAt,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  req.Reference,
		Notes:      req.Notes,
		SyncStatus: req.SyncStatus,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Int64("due_id", dueID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) memberFinances(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	snapshot, err := h.service.Snapshot(r.Context(), memberID)
	if err != nil {
		h.logger.Error("member finances", slog.Int64("member_id", memberID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) reconcileMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	snapshot, err := h.service.ReconcileMember(r.Context(), memberID)
	if err != nil {
		h.logger.Error("reconcile member", slog.Int64("member_id", memberID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING ACTIVE INACTIVE"`
}

func (h *Handler) setMemberStatus(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetMemberStatus(r.Context(), memberID, MemberStatus(req.Status)); err != nil {
		h.logger.Error("set member status", slog.Int64("member_id", memberID), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrValidation, raw)
	}
	return id, nil
}
