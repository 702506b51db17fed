package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubward/clubward/internal/billing"
)

// Repository defines data access for the member directory.
type Repository interface {
	Create(ctx context.Context, input MemberInput) (*Member, error)
	Get(ctx context.Context, id int64) (*Member, error)
	List(ctx context.Context, limit, offset int) ([]Member, error)
	Update(ctx context.Context, id int64, input MemberInput) error
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed member directory.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const memberColumns = `id, name, email, status, notes, created_at, updated_at`

func (r *pgRepository) Create(ctx context.Context, input MemberInput) (*Member, error) {
	const query = `
		INSERT INTO members (name, email, status, notes, created_at, updated_at)
		VALUES ($1, $2, 'PENDING', $3, NOW(), NOW())
		RETURNING ` + memberColumns

	return r.scanOne(r.pool.QueryRow(ctx, query, input.Name, input.Email, input.Notes))
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*Member, error) {
	m, err := r.scanOne(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	return m, err
}

func (r *pgRepository) List(ctx context.Context, limit, offset int) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Status, &m.Notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, id int64, input MemberInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE members SET name = $2, email = $3, notes = $4, updated_at = NOW() WHERE id = $1`,
		id, input.Name, input.Email, input.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: member %d still has an enrollment or dues", billing.ErrConflict, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
	}
	return nil
}

func (r *pgRepository) scanOne(row pgx.Row) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Status, &m.Notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
