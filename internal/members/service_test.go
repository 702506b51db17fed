package members

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubward/clubward/internal/billing"
)

type memoryMemberRepo struct {
	members map[int64]*Member
	nextID  int64
}

func newMemoryMemberRepo() *memoryMemberRepo {
	return &memoryMemberRepo{members: make(map[int64]*Member)}
}

func (r *memoryMemberRepo) Create(ctx context.Context, input MemberInput) (*Member, error) {
	r.nextID++
	m := &Member{
		ID:     r.nextID,
		Name:   input.Name,
		Email:  input.Email,
		Notes:  input.Notes,
		Status: string(billing.MemberPending),
	}
	r.members[m.ID] = m
	copied := *m
	return &copied, nil
}

func (r *memoryMemberRepo) Get(ctx context.Context, id int64) (*Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	copied := *m
	return &copied, nil
}

func (r *memoryMemberRepo) List(ctx context.Context, limit, offset int) ([]Member, error) {
	var out []Member
	for id := int64(1); id <= r.nextID && len(out) < limit; id++ {
		if m, ok := r.members[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryMemberRepo) Update(ctx context.Context, id int64, input MemberInput) error {
	m, ok := r.members[id]
	if !ok {
		return fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	m.Name = input.Name
	m.Email = input.Email
	m.Notes = input.Notes
	return nil
}

func (r *memoryMemberRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.members[id]; !ok {
		return fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	delete(r.members, id)
	return nil
}

var _ Repository = (*memoryMemberRepo)(nil)

type stubLabeler struct {
	labels map[int64]string
}

func (s stubLabeler) CompositeStatus(ctx context.Context, memberID int64) (string, error) {
	return s.labels[memberID], nil
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryMemberRepo(), nil)

	m, err := svc.Create(ctx, MemberInput{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, string(billing.MemberPending), m.Status)

	_, err = svc.Create(ctx, MemberInput{Name: "   "})
	require.ErrorIs(t, err, billing.ErrValidation)
}

func TestServiceGetDecoratesLabel(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryMemberRepo()
	created, err := repo.Create(ctx, MemberInput{Name: "Ada"})
	require.NoError(t, err)

	svc := NewService(repo, stubLabeler{labels: map[int64]string{created.ID: billing.LabelRegularActive}})

	view, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, billing.LabelRegularActive, view.CompositeStatus)

	_, err = svc.Get(ctx, 99)
	require.ErrorIs(t, err, billing.ErrNotFound)
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryMemberRepo()
	labels := make(map[int64]string)
	for i := 0; i < 3; i++ {
		m, err := repo.Create(ctx, MemberInput{Name: fmt.Sprintf("member %d", i)})
		require.NoError(t, err)
		labels[m.ID] = billing.LabelPending
	}
	svc := NewService(repo, stubLabeler{labels: labels})

	views, err := svc.List(ctx, 0, -1) // out-of-range paging falls back to defaults
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		require.Equal(t, billing.LabelPending, v.CompositeStatus)
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryMemberRepo()
	created, err := repo.Create(ctx, MemberInput{Name: "Ada"})
	require.NoError(t, err)
	svc := NewService(repo, nil)

	require.NoError(t, svc.Update(ctx, created.ID, MemberInput{Name: "Ada L.", Email: "ada@example.com"}))
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada L.", got.Name)

	err = svc.Update(ctx, created.ID, MemberInput{Name: ""})
	require.ErrorIs(t, err, billing.ErrValidation)
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryMemberRepo()
	created, err := repo.Create(ctx, MemberInput{Name: "Ada"})
	require.NoError(t, err)
	svc := NewService(repo, nil)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, created.ID), billing.ErrNotFound)
}
