package members

import (
	"time"
)

// Member represents a club member record.
type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberView decorates a member with its composite billing label.
type MemberView struct {
	Member
	CompositeStatus string `json:"composite_status"`
}

// MemberInput carries the caller-editable fields.
type MemberInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}
