package billing

import (
	"fmt"
	"time"
)

// dateLayouts are the accepted input representations for calendar dates.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// ParseDate normalises an input date string to a UTC calendar date.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrValidation, value)
}

// DateOf strips the time component, keeping a UTC midnight calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped adds months to a date, clamping to the last day of the
// target month when the source day does not exist there. time.AddDate is
// unsuitable: it normalises overflow (Jan 31 + 1 month = Mar 2/3) instead
// of clamping to Feb 28/29.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// BuildSchedule produces an ordered list of due drafts for an enrollment.
// The first due falls on the start date itself; each subsequent due is one
// calendar month later, clamped to month end. A monthCount of zero or less
// yields an empty schedule. The function is pure and deterministic.
func BuildSchedule(enrollmentID, memberID int64, start time.Time, monthCount int, monthlyAmount float64) ([]DueDraft, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrValidation)
	}
	if monthlyAmount <= 0 {
		return nil, fmt.Errorf("%w: monthly amount must be positive", ErrValidation)
	}
	if monthCount <= 0 {
		return []DueDraft{}, nil
	}
	start = DateOf(start)
	drafts := make([]DueDraft, 0, monthCount)
	for k := 0; k < monthCount; k++ {
		drafts = append(drafts, DueDraft{
			EnrollmentID: enrollmentID,
			MemberID:     memberID,
			DueDate:      AddMonthsClamped(start, k),
			Amount:       monthlyAmount,
		})
	}
	return drafts, nil
}
