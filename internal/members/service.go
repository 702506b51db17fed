package members

import (
	"context"
	"fmt"
	"strings"

	"github.com/clubward/clubward/internal/billing"
)

// StatusLabeler produces composite status labels; the billing service
// implements it through the shared classifier.
type StatusLabeler interface {
	CompositeStatus(ctx context.Context, memberID int64) (string, error)
}

// Service handles member directory business logic.
type Service struct {
	repo    Repository
	labeler StatusLabeler
}

// NewService builds a Service instance.
func NewService(repo Repository, labeler StatusLabeler) *Service {
	return &Service{repo: repo, labeler: labeler}
}

// Create registers a new member in PENDING status.
func (s *Service) Create(ctx context.Context, input MemberInput) (*Member, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: member name is required", billing.ErrValidation)
	}
	return s.repo.Create(ctx, input)
}

// Get returns one member with its composite label.
func (s *Service) Get(ctx context.Context, id int64) (*MemberView, error) {
	member, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, *member)
}

// List returns members with composite labels.
func (s *Service) List(ctx context.Context, limit, offset int) ([]MemberView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]MemberView, 0, len(rows))
	for _, m := range rows {
		view, err := s.decorate(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// Update edits the identity fields. Status is owned by the billing engine
// and never set here.
func (s *Service) Update(ctx context.Context, id int64, input MemberInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: member name is required", billing.ErrValidation)
	}
	return s.repo.Update(ctx, id, input)
}

// Delete removes a member record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) decorate(ctx context.Context, m Member) (*MemberView, error) {
	view := MemberView{Member: m}
	if s.labeler != nil {
		label, err := s.labeler.CompositeStatus(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		view.CompositeStatus = label
	}
	return &view, nil
}
