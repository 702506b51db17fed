package billing

import (
	"time"
)

// MemberStatus enumerates member statuses.
type MemberStatus string

const (
	MemberPending  MemberStatus = "PENDING"
	MemberActive   MemberStatus = "ACTIVE"
	MemberInactive MemberStatus = "INACTIVE"
)

// EnrollmentStatus enumerates enrollment statuses.
type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "PENDING"
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// DueStatus enumerates due statuses.
type DueStatus string

const (
	DuePending DueStatus = "PENDING"
	DuePaid    DueStatus = "PAID"
	DueOverdue DueStatus = "OVERDUE"
	DueFrozen  DueStatus = "FROZEN"
)

// PlanLifetime marks an enrollment whose plan grants lifetime membership.
const PlanLifetime = "lifetime"

// Member is the billing view of a member record.
type Member struct {
	ID        int64
	Name      string
	Status    MemberStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrollment model. A member holds at most one enrollment at a time.
type Enrollment struct {
	ID            int64
	MemberID      int64
	StartDate     time.Time
	MonthlyAmount float64
	Status        EnrollmentStatus
	Plan          string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLifetimePlan reports whether the enrollment plan grants lifetime status.
func (e *Enrollment) IsLifetimePlan() bool {
	return e != nil && e.Plan == PlanLifetime
}

// Due is one scheduled payment obligation for a billing period.
// MemberID duplicates the owning enrollment's member for query convenience
// and is written only by this package; it must always match.
type Due struct {
	ID           int64
	EnrollmentID int64
	MemberID     int64
	DueDate      time.Time
	Amount       float64
	Status       DueStatus
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Payment model. At most one payment exists per due; re-paying updates it.
type Payment struct {
	ID        int64
	DueID     int64
	Amount    float64
	Method    string
	Reference string
	Notes     string
	PaidAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueDraft is a schedule entry produced by BuildSchedule before insertion.
type DueDraft struct {
	EnrollmentID int64
	MemberID     int64
	DueDate      time.Time
	Amount       float64
}

// DueTotals counts a member's dues by status.
type DueTotals struct {
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
	Paid    int `json:"paid"`
	Frozen  int `json:"frozen"`
}

// FinancialSnapshot summarises a member's financial standing.
type FinancialSnapshot struct {
	MemberID        int64        `json:"member_id"`
	Status          MemberStatus `json:"status"`
	Totals          DueTotals    `json:"totals"`
	NextDueDate     *time.Time   `json:"next_due_date,omitempty"`
	GracePeriodDays int          `json:"grace_period_days"`
}

// PaymentReceipt pairs the updated due with its payment row.
type PaymentReceipt struct {
	Due     Due     `json:"due"`
	Payment Payment `json:"payment"`
}

// GenerationResult reports one monthly due generation run.
type GenerationResult struct {
	ProcessedEnrollments int       `json:"processed_enrollments"`
	CreatedDues          int       `json:"created_dues"`
	Operator             string    `json:"operator"`
	Notes                string    `json:"notes"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
}
