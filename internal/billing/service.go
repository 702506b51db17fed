package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clubward/clubward/internal/observability"
)

// TxRepository defines the data access methods available inside and outside
// a transaction.
type TxRepository interface {
	GetMember(ctx context.Context, id int64) (*Member, error)
	UpdateMemberStatus(ctx context.Context, id int64, status MemberStatus) error

	GetEnrollment(ctx context.Context, id int64) (*Enrollment, error)
	GetEnrollmentByMember(ctx context.Context, memberID int64) (*Enrollment, error)
	InsertEnrollment(ctx context.Context, input EnrollmentInput) (*Enrollment, error)
	DeleteEnrollment(ctx context.Context, id int64) error
	ListBillableEnrollments(ctx context.Context) ([]Enrollment, error)

	InsertDues(ctx context.Context, drafts []DueDraft) (int, error)
	InsertDueIfAbsent(ctx context.Context, draft DueDraft) (bool, error)
	GetDue(ctx context.Context, id int64) (*Due, error)
	LatestDueDate(ctx context.Context, enrollmentID int64) (*time.Time, error)
	CountPaidByEnrollment(ctx context.Context, enrollmentID int64) (int, error)
	DeleteDuesByEnrollment(ctx context.Context, enrollmentID int64) (int, error)
	MarkDuePaid(ctx context.Context, dueID int64, paidAt time.Time) error
	PromoteOverdue(ctx context.Context, memberID int64, threshold time.Time) (int, error)
	RestatusDues(ctx context.Context, memberID int64, from []DueStatus, to DueStatus) (int, error)
	CountDuesByStatus(ctx context.Context, memberID int64) (DueTotals, error)
	CountPendingPastDue(ctx context.Context, memberID int64, threshold time.Time) (int, error)
	NextPendingDueDate(ctx context.Context, memberID int64) (*time.Time, error)
	PaidCount(ctx context.Context, memberID int64) (int, error)
	MonthCovered(ctx context.Context, memberID int64, ref time.Time) (bool, error)

	UpsertPayment(ctx context.Context, input PaymentInput) (*Payment, error)
}

// Repository adds transaction orchestration on top of TxRepository.
type Repository interface {
	TxRepository
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Economics supplies the economic configuration collaborators.
type Economics interface {
	DefaultMonthlyAmount() float64
	GracePeriodDays() int
	LifetimePaidDues() int
	ScheduleHorizonMonths() int
}

// RunSink records due generation runs for auditing.
type RunSink interface {
	RecordRun(ctx context.Context, run GenerationResult) error
}

// EnrollmentInput for inserting enrollments.
type EnrollmentInput struct {
	MemberID      int64
	StartDate     time.Time
	MonthlyAmount float64
	Status        EnrollmentStatus
	Plan          string
	Notes         string
}

// PaymentInput for upserting a payment keyed by due id.
type PaymentInput struct {
	DueID     int64
	Amount    float64
	Method    string
	Reference string
	Notes     string
	PaidAt    time.Time
}

// CreateEnrollmentInput for Service.CreateEnrollment.
type CreateEnrollmentInput struct {
	MemberID      int64
	StartDate     time.Time
	MonthlyAmount float64 // zero falls back to the configured default
	Plan          string
	Notes         string
	// ScheduleMonths overrides the configured initial schedule horizon.
	ScheduleMonths int
}

// RecordPaymentInput for Service.RecordPayment.
type RecordPaymentInput struct {
	DueID     int64
	PaidAt    *time.Time
	Amount    *float64
	Method    string
	Reference string
	Notes     string
	// SyncStatus controls whether the member is reconciled after the
	// payment commits. Nil means true; callers batching many payments
	// opt out and reconcile once at the end.
	SyncStatus *bool
}

// Service implements the billing lifecycle engine.
type Service struct {
	repo      Repository
	econ      Economics
	logger    *slog.Logger
	runs      RunSink
	snapshots *SnapshotCache
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewService builds the billing service. runs, snapshots and metrics may be
// nil.
func NewService(repo Repository, econ Economics, logger *slog.Logger, runs RunSink, snapshots *SnapshotCache, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		econ:      econ,
		logger:    logger,
		runs:      runs,
		snapshots: snapshots,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateEnrollment enrolls a pending member: inserts the ACTIVE enrollment,
// activates the member and builds the initial due schedule, all in one
// transaction.
func (s *Service) CreateEnrollment(ctx context.Context, input CreateEnrollmentInput) (*Enrollment, error) {
	if input.MemberID == 0 {
		return nil, fmt.Errorf("%w: member id required", ErrValidation)
	}
	if input.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrValidation)
	}
	amount := input.MonthlyAmount
	if amount < 0 {
		return nil, fmt.Errorf("%w: monthly amount must be positive", ErrValidation)
	}
	if amount == 0 {
		amount = s.econ.DefaultMonthlyAmount()
		if amount <= 0 {
			return nil, fmt.Errorf("%w: default monthly amount is not configured", ErrConfiguration)
		}
	}
	months := input.ScheduleMonths
	if months <= 0 {
		months = s.econ.ScheduleHorizonMonths()
	}

	var enrollment *Enrollment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		member, err := tx.GetMember(ctx, input.MemberID)
		if err != nil {
			return err
		}
		if member.Status != MemberPending {
			return fmt.Errorf("%w: member %d is %s, only pending members can enroll", ErrConflict, member.ID, member.Status)
		}
		if _, err := tx.GetEnrollmentByMember(ctx, member.ID); err == nil {
			return fmt.Errorf("%w: member %d already has an enrollment", ErrConflict, member.ID)
		} else if !IsNotFound(err) {
			return err
		}

		enrollment, err = tx.InsertEnrollment(ctx, EnrollmentInput{
			MemberID:      member.ID,
			StartDate:     DateOf(input.StartDate),
			MonthlyAmount: amount,
			Status:        EnrollmentActive,
			Plan:          input.Plan,
			Notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateMemberStatus(ctx, member.ID, MemberActive); err != nil {
			return err
		}

		drafts, err := BuildSchedule(enrollment.ID, member.ID, enrollment.StartDate, months, amount)
		if err != nil {
			return err
		}
		if _, err := tx.InsertDues(ctx, drafts); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Invalidate(ctx, input.MemberID)
	s.logger.Info("enrollment created",
		slog.Int64("enrollment_id", enrollment.ID),
		slog.Int64("member_id", enrollment.MemberID),
		slog.String("start_date", enrollment.StartDate.Format("2006-01-02")))
	return enrollment, nil
}

// DeleteEnrollment cancels an enrollment that has no paid history: removes
// its dues, deletes the enrollment and resets the member to PENDING. The
// returned enrollment is the pre-delete snapshot.
func (s *Service) DeleteEnrollment(ctx context.Context, enrollmentID int64) (*Enrollment, error) {
	var snapshot *Enrollment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		enrollment, err := tx.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		paid, err := tx.CountPaidByEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return fmt.Errorf("%w: enrollment %d has %d paid dues, paid history cannot be erased", ErrConflict, enrollmentID, paid)
		}
		if _, err := tx.DeleteDuesByEnrollment(ctx, enrollmentID); err != nil {
			return err
		}
		if err := tx.DeleteEnrollment(ctx, enrollmentID); err != nil {
			return err
		}
		if err := tx.UpdateMemberStatus(ctx, enrollment.MemberID, MemberPending); err != nil {
			return err
		}
		snapshot = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Invalidate(ctx, snapshot.MemberID)
	s.logger.Info("enrollment deleted",
		slog.Int64("enrollment_id", snapshot.ID),
		slog.Int64("member_id", snapshot.MemberID))
	return snapshot, nil
}

// RecordPayment marks a due paid and upserts its payment row in one
// transaction, then reconciles the owning member unless the caller opted
// out.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentReceipt, error) {
	if input.DueID == 0 {
		return nil, fmt.Errorf("%w: due id required", ErrValidation)
	}
	paidAt := s.now()
	if input.PaidAt != nil {
		if input.PaidAt.IsZero() {
			return nil, fmt.Errorf("%w: paid-at timestamp invalid", ErrValidation)
		}
		paidAt = *input.PaidAt
	}

	var receipt PaymentReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		due, err := tx.GetDue(ctx, input.DueID)
		if err != nil {
			return err
		}
		if due.Status == DueFrozen {
			return fmt.Errorf("%w: due %d is frozen, reactivate the member before collecting", ErrConflict, due.ID)
		}

		amount := due.Amount
		if input.Amount != nil {
			if *input.Amount <= 0 {
				return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
			}
			amount = *input.Amount
		}
		reference := input.Reference
		if reference == "" {
			reference = uuid.NewString()
		}

		if due.Status != DuePaid {
			if err := tx.MarkDuePaid(ctx, due.ID, paidAt); err != nil {
				return err
			}
		}
		payment, err := tx.UpsertPayment(ctx, PaymentInput{
			DueID:     due.ID,
			Amount:    amount,
			Method:    input.Method,
			Reference: reference,
			Notes:     input.Notes,
			PaidAt:    paidAt,
		})
		if err != nil {
			return err
		}

		due.Status = DuePaid
		due.PaidAt = &paidAt
		receipt = PaymentReceipt{Due: *due, Payment: *payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentRecorded()
	s.snapshots.Invalidate(ctx, receipt.Due.MemberID)

	if input.SyncStatus == nil || *input.SyncStatus {
		if _, err := s.ReconcileMember(ctx, receipt.Due.MemberID); err != nil {
			return nil, fmt.Errorf("reconcile after payment: %w", err)
		}
	}
	return &receipt, nil
}

// ReconcileMember promotes stale pending dues to overdue, re-derives the
// member's status and applies the frozen-dues policy when the status
// changed. It returns the post-reconciliation snapshot.
func (s *Service) ReconcileMember(ctx context.Context, memberID int64) (*FinancialSnapshot, error) {
	grace := s.econ.GracePeriodDays()
	if grace < 0 {
		return nil, fmt.Errorf("%w: grace period must not be negative", ErrConfiguration)
	}
	threshold := DateOf(s.now()).AddDate(0, 0, -grace)

	var snapshot FinancialSnapshot
	var transition *MemberStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if _, err := tx.PromoteOverdue(ctx, memberID, threshold); err != nil {
			return err
		}
		totals, err := tx.CountDuesByStatus(ctx, memberID)
		if err != nil {
			return err
		}
		derived := DeriveMemberStatus(totals)
		if derived != member.Status {
			if err := tx.UpdateMemberStatus(ctx, memberID, derived); err != nil {
				return err
			}
			if err := enforceFrozenDues(ctx, tx, memberID, derived); err != nil {
				return err
			}
			// freezing or unfreezing reshuffles the totals
			if totals, err = tx.CountDuesByStatus(ctx, memberID); err != nil {
				return err
			}
			transition = &derived
		}
		next, err := tx.NextPendingDueDate(ctx, memberID)
		if err != nil {
			return err
		}
		snapshot = FinancialSnapshot{
			MemberID:        memberID,
			Status:          derived,
			Totals:          totals,
			NextDueDate:     next,
			GracePeriodDays: grace,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MemberReconciled()
	s.snapshots.Invalidate(ctx, memberID)
	if transition != nil {
		s.metrics.MemberStatusChanged(string(*transition))
		s.logger.Info("member status reconciled",
			slog.Int64("member_id", memberID),
			slog.String("status", string(*transition)))
	}
	return &snapshot, nil
}

// Snapshot is the read-only financial snapshot query. It derives the same
// status as ReconcileMember would for the same underlying data, without
// mutating anything, and is served through the snapshot cache.
func (s *Service) Snapshot(ctx context.Context, memberID int64) (*FinancialSnapshot, error) {
	return s.snapshots.Fetch(ctx, memberID, func(ctx context.Context) (*FinancialSnapshot, error) {
		return s.computeSnapshot(ctx, memberID)
	})
}

func (s *Service) computeSnapshot(ctx context.Context, memberID int64) (*FinancialSnapshot, error) {
	grace := s.econ.GracePeriodDays()
	if grace < 0 {
		return nil, fmt.Errorf("%w: grace period must not be negative", ErrConfiguration)
	}
	threshold := DateOf(s.now()).AddDate(0, 0, -grace)

	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	totals, err := s.repo.CountDuesByStatus(ctx, memberID)
	if err != nil {
		return nil, err
	}
	stale, err := s.repo.CountPendingPastDue(ctx, memberID, threshold)
	if err != nil {
		return nil, err
	}
	// count grace-expired pending dues as overdue, exactly as the mutating
	// path would promote them
	totals.Pending -= stale
	totals.Overdue += stale

	next, err := s.repo.NextPendingDueDate(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return &FinancialSnapshot{
		MemberID:        memberID,
		Status:          DeriveMemberStatus(totals),
		Totals:          totals,
		NextDueDate:     next,
		GracePeriodDays: grace,
	}, nil
}

// EnforceFrozenDues applies the frozen-dues policy for a member who moved to
// newStatus: freezes collectible dues when the member went inactive,
// unfreezes them otherwise.
func (s *Service) EnforceFrozenDues(ctx context.Context, memberID int64, newStatus MemberStatus) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return enforceFrozenDues(ctx, tx, memberID, newStatus)
	})
	if err != nil {
		return err
	}
	s.snapshots.Invalidate(ctx, memberID)
	return nil
}

// SetMemberStatus is the administrative status override. The new status is
// persisted directly and the frozen-dues policy is enforced in the same
// transaction; the next financial event re-derives it.
func (s *Service) SetMemberStatus(ctx context.Context, memberID int64, status MemberStatus) error {
	switch status {
	case MemberPending, MemberActive, MemberInactive:
	default:
		return fmt.Errorf("%w: unknown member status %q", ErrValidation, status)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetMember(ctx, memberID); err != nil {
			return err
		}
		if err := tx.UpdateMemberStatus(ctx, memberID, status); err != nil {
			return err
		}
		return enforceFrozenDues(ctx, tx, memberID, status)
	})
	if err != nil {
		return err
	}
	s.metrics.MemberStatusChanged(string(status))
	s.snapshots.Invalidate(ctx, memberID)
	s.logger.Info("member status set",
		slog.Int64("member_id", memberID),
		slog.String("status", string(status)))
	return nil
}

func enforceFrozenDues(ctx context.Context, tx TxRepository, memberID int64, newStatus MemberStatus) error {
	if newStatus == MemberInactive {
		_, err := tx.RestatusDues(ctx, memberID, []DueStatus{DuePending, DueOverdue}, DueFrozen)
		return err
	}
	_, err := tx.RestatusDues(ctx, memberID, []DueStatus{DueFrozen}, DuePending)
	return err
}

// CompositeStatus labels a member through the shared classifier decision
// table.
func (s *Service) CompositeStatus(ctx context.Context, memberID int64) (string, error) {
	member, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return "", err
	}
	today := DateOf(s.now())

	var lifetimePlan, firstCovered bool
	enrollment, err := s.repo.GetEnrollmentByMember(ctx, memberID)
	switch {
	case err == nil:
		lifetimePlan = enrollment.IsLifetimePlan()
		firstCovered = SameCalendarMonth(enrollment.StartDate, today)
	case IsNotFound(err):
		// unenrolled members classify from status and paid history alone
	default:
		return "", err
	}

	paid, err := s.repo.PaidCount(ctx, memberID)
	if err != nil {
		return "", err
	}
	currentPaid, err := s.repo.MonthCovered(ctx, memberID, today)
	if err != nil {
		return "", err
	}
	return Classify(ClassifierInput{
		Status:            member.Status,
		LifetimePlan:      lifetimePlan,
		PaidCount:         paid,
		LifetimeThreshold: s.econ.LifetimePaidDues(),
		FirstCoveredMonth: firstCovered,
		CurrentMonthPaid:  currentPaid,
	}), nil
}
