package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	_ "github.com/clubward/clubward/testing"
)

func newTestHandler(t *testing.T, repo *memoryBillingRepo, now time.Time) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, defaultEconomics(), logger, &memoryRunSink{}, nil, nil)
	svc.now = func() time.Time { return now }

	r := chi.NewRouter()
	NewHandler(logger, svc).MountRoutes(r)
	return r
}

func TestHandlerCreateEnrollment(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.addMember(1, MemberPending)
	h := newTestHandler(t, repo, date(2025, time.February, 15))

	t.Run("creates and returns 201", func(t *testing.T) {
		body := `{"member_id":1,"start_date":"2025-02-15"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var enrollment Enrollment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollment))
		require.Equal(t, int64(1), enrollment.MemberID)
		require.Equal(t, EnrollmentActive, enrollment.Status)
	})

	t.Run("double enrollment returns 409", func(t *testing.T) {
		repo.members[1].Status = MemberPending
		body := `{"member_id":1,"start_date":"2025-03-01"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body)))
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unparseable date returns 400", func(t *testing.T) {
		body := `{"member_id":1,"start_date":"next tuesday"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown member returns 404", func(t *testing.T) {
		body := `{"member_id":55,"start_date":"2025-02-15"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body)))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandlerRecordPayment(t *testing.T) {
	now := date(2025, time.February, 15)
	repo := newMemoryBillingRepo()
	repo.addMember(1, MemberPending)
	h := newTestHandler(t, repo, now)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"member_id":1,"start_date":"2025-02-15"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("records and returns the receipt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dues/1/payments",
			strings.NewReader(`{"method":"transfer"}`)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var receipt PaymentReceipt
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
		require.Equal(t, DuePaid, receipt.Due.Status)
		require.Equal(t, "transfer", receipt.Payment.Method)
	})

	t.Run("frozen due returns 409", func(t *testing.T) {
		repo.dues[1].Status = DueFrozen
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dues/1/payments", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusConflict, rec.Code)
		repo.dues[1].Status = DuePaid
	})

	t.Run("unknown due returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dues/999/payments", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dues/abc/payments", strings.NewReader(`{}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerMemberFinances(t *testing.T) {
	now := date(2025, time.February, 15)
	repo := newMemoryBillingRepo()
	repo.addMember(1, MemberPending)
	h := newTestHandler(t, repo, now)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"member_id":1,"start_date":"2025-02-15"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/1/finances", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot FinancialSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Equal(t, int64(1), snapshot.MemberID)
	require.Equal(t, MemberPending, snapshot.Status)
	require.Equal(t, DueTotals{Pending: 1}, snapshot.Totals)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/42/finances", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSetMemberStatus(t *testing.T) {
	now := date(2025, time.February, 15)
	repo := newMemoryBillingRepo()
	repo.addMember(1, MemberActive)
	h := newTestHandler(t, repo, now)

	t.Run("sets and returns 204", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/members/1/status",
			strings.NewReader(`{"status":"INACTIVE"}`)))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, MemberInactive, repo.members[1].Status)
	})

	t.Run("rejects statuses outside the enum", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/members/1/status",
			strings.NewReader(`{"status":"BANNED"}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerDeleteEnrollment(t *testing.T) {
	now := date(2025, time.February, 15)
	repo := newMemoryBillingRepo()
	repo.addMember(1, MemberPending)
	h := newTestHandler(t, repo, now)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"member_id":1,"start_date":"2025-02-15"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("paid history returns 409", func(t *testing.T) {
		repo.dues[1].Status = DuePaid
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/enrollments/1", nil))
		require.Equal(t, http.StatusConflict, rec.Code)
		repo.dues[1].Status = DuePending
	})

	t.Run("deletes and returns the snapshot", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/enrollments/1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snapshot Enrollment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
		require.Equal(t, int64(1), snapshot.ID)
		require.Equal(t, MemberPending, repo.members[1].Status)
	})
}
