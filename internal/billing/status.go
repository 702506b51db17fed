package billing

import "time"

// DeriveMemberStatus computes a member's status from their due totals. The
// same derivation backs both the mutating reconciliation path and the
// read-only financial snapshot; keeping it in one place is what guarantees
// the two never disagree.
func DeriveMemberStatus(totals DueTotals) MemberStatus {
	switch {
	case totals.Frozen > 0:
		return MemberInactive
	case totals.Overdue > 0:
		return MemberInactive
	case totals.Pending > 0:
		return MemberPending
	default:
		return MemberActive
	}
}

// Composite labels for display and filtering.
const (
	LabelPending          = "Pending"
	LabelRegularActive    = "Regular Active"
	LabelRegularInactive  = "Regular Inactive"
	LabelLifetimeActive   = "Lifetime Active"
	LabelLifetimeInactive = "Lifetime Inactive"
)

// ClassifierInput feeds the composite member status decision table.
type ClassifierInput struct {
	Status            MemberStatus
	LifetimePlan      bool
	PaidCount         int
	LifetimeThreshold int
	// FirstCoveredMonth is true when the enrollment started in the same
	// calendar month as the reference date: the member is inside the
	// first-month grace window even before any due is paid.
	FirstCoveredMonth bool
	// CurrentMonthPaid is true when the due covering the reference month
	// has been paid.
	CurrentMonthPaid bool
}

// Classify labels a member for display. This decision table is the single
// implementation consumed everywhere a composite status is shown or
// filtered on.
func Classify(in ClassifierInput) string {
	lifetime := in.LifetimePlan || (in.LifetimeThreshold > 0 && in.PaidCount >= in.LifetimeThreshold)
	switch in.Status {
	case MemberInactive:
		if lifetime {
			return LabelLifetimeInactive
		}
		return LabelRegularInactive
	case MemberPending:
		return LabelPending
	case MemberActive:
		if lifetime {
			return LabelLifetimeActive
		}
		if in.FirstCoveredMonth || in.CurrentMonthPaid {
			return LabelRegularActive
		}
		return LabelRegularInactive
	default:
		return LabelPending
	}
}

// SameCalendarMonth reports whether two dates fall in the same year and month.
func SameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
