package billing

import (
	"context"
	"fmt"
	"log/slog"
)

// GenerateMonthlyDues extends every billable enrollment's schedule by one
// period. A due is only inserted when no due with the same date exists for
// the enrollment; the store's uniqueness constraint makes concurrent or
// repeated runs converge on the same result. Members at the lifetime
// threshold are exempt from further generation.
func (s *Service) GenerateMonthlyDues(ctx context.Context, operator, notes string) (*GenerationResult, error) {
	if operator == "" {
		return nil, fmt.Errorf("%w: operator required", ErrValidation)
	}
	started := s.now()

	enrollments, err := s.repo.ListBillableEnrollments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list billable enrollments: %w", err)
	}

	threshold := s.econ.LifetimePaidDues()
	created := 0
	for _, enrollment := range enrollments {
		if enrollment.IsLifetimePlan() {
			continue
		}
		paid, err := s.repo.PaidCount(ctx, enrollment.MemberID)
		if err != nil {
			return nil, fmt.Errorf("paid count for member %d: %w", enrollment.MemberID, err)
		}
		if threshold > 0 && paid >= threshold {
			continue
		}

		draft, err := s.nextDue(ctx, enrollment)
		if err != nil {
			return nil, err
		}
		inserted, err := s.repo.InsertDueIfAbsent(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("insert due for enrollment %d: %w", enrollment.ID, err)
		}
		if inserted {
			created++
			s.snapshots.Invalidate(ctx, enrollment.MemberID)
		}
	}

	result := &GenerationResult{
		ProcessedEnrollments: len(enrollments),
		CreatedDues:          created,
		Operator:             operator,
		Notes:                notes,
		StartedAt:            started,
		FinishedAt:           s.now(),
	}
	if s.runs != nil {
		if err := s.runs.RecordRun(ctx, *result); err != nil {
			return nil, fmt.Errorf("record generation run: %w", err)
		}
	}
	s.metrics.DuesGenerated(created)
	s.logger.Info("monthly dues generated",
		slog.Int("processed", result.ProcessedEnrollments),
		slog.Int("created", result.CreatedDues),
		slog.String("operator", operator))
	return result, nil
}

// nextDue computes the next draft for an enrollment: one month past the
// latest existing due, or the enrollment start itself when no dues exist
// yet (the enrollment month is itself covered).
func (s *Service) nextDue(ctx context.Context, enrollment Enrollment) (DueDraft, error) {
	latest, err := s.repo.LatestDueDate(ctx, enrollment.ID)
	if err != nil {
		return DueDraft{}, fmt.Errorf("latest due date for enrollment %d: %w", enrollment.ID, err)
	}
	if latest == nil {
		drafts, err := BuildSchedule(enrollment.ID, enrollment.MemberID, enrollment.StartDate, 1, enrollment.MonthlyAmount)
		if err != nil {
			return DueDraft{}, err
		}
		return drafts[0], nil
	}
	drafts, err := BuildSchedule(enrollment.ID, enrollment.MemberID, *latest, 2, enrollment.MonthlyAmount)
	if err != nil {
		return DueDraft{}, err
	}
	return drafts[1], nil
}
