package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubward/clubward/internal/platform/db"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// query methods run inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type queries struct {
	db DBTX
}

type pgRepository struct {
	queries
	pool *pgxpool.Pool
}

// Ensure implementation.
var _ Repository = (*pgRepository)(nil)

// NewRepository constructs a PostgreSQL backed billing repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{queries: queries{db: pool}, pool: pool}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, queries{db: tx})
	})
}

// --- Members ---

func (q queries) GetMember(ctx context.Context, id int64) (*Member, error) {
	const query = `
		SELECT id, name, status, notes, created_at, updated_at
		FROM members
		WHERE id = $1`

	var m Member
	err := q.db.QueryRow(ctx, query, id).Scan(&m.ID, &m.Name, &m.Status, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (q queries) UpdateMemberStatus(ctx context.Context, id int64, status MemberStatus) error {
	tag, err := q.db.Exec(ctx, `UPDATE members SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: member %d", ErrNotFound, id)
	}
	return nil
}

// --- Enrollments ---

const enrollmentColumns = `id, member_id, start_date, monthly_amount, status, plan, notes, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.MemberID, &e.StartDate, &e.MonthlyAmount, &e.Status, &e.Plan, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.StartDate = DateOf(e.StartDate)
	return &e, nil
}

func (q queries) GetEnrollment(ctx context.Context, id int64) (*Enrollment, error) {
	e, err := scanEnrollment(q.db.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: enrollment %d", ErrNotFound, id)
	}
	return e, err
}

func (q queries) GetEnrollmentByMember(ctx context.Context, memberID int64) (*Enrollment, error) {
	e, err := scanEnrollment(q.db.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE member_id = $1`, memberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: enrollment for member %d", ErrNotFound, memberID)
	}
	return e, err
}

func (q queries) InsertEnrollment(ctx context.Context, input EnrollmentInput) (*Enrollment, error) {
	const query = `
		INSERT INTO enrollments (member_id, start_date, monthly_amount, status, plan, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	e := Enrollment{
		MemberID:      input.MemberID,
		StartDate:     DateOf(input.StartDate),
		MonthlyAmount: input.MonthlyAmount,
		Status:        input.Status,
		Plan:          input.Plan,
		Notes:         input.Notes,
	}
	err := q.db.QueryRow(ctx, query,
		input.MemberID, e.StartDate, input.MonthlyAmount, input.Status, input.Plan, input.Notes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: member %d already has an enrollment", ErrConflict, input.MemberID)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q queries) DeleteEnrollment(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: enrollment %d", ErrNotFound, id)
	}
	return nil
}

func (q queries) ListBillableEnrollments(ctx context.Context) ([]Enrollment, error) {
	const query = `
		SELECT e.id, e.member_id, e.start_date, e.monthly_amount, e.status, e.plan, e.notes, e.created_at, e.updated_at
		FROM enrollments e
		JOIN members m ON m.id = e.member_id
		WHERE e.status = 'ACTIVE' AND m.status = 'ACTIVE'
		ORDER BY e.id`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.MemberID, &e.StartDate, &e.MonthlyAmount, &e.Status, &e.Plan, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.StartDate = DateOf(e.StartDate)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Dues ---

func (q queries) InsertDues(ctx context.Context, drafts []DueDraft) (int, error) {
	const query = `
		INSERT INTO dues (enrollment_id, member_id, due_date, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'PENDING', NOW(), NOW())`

	for _, d := range drafts {
		if _, err := q.db.Exec(ctx, query, d.EnrollmentID, d.MemberID, d.DueDate, d.Amount); err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("%w: due on %s already exists for enrollment %d",
					ErrConflict, d.DueDate.Format("2006-01-02"), d.EnrollmentID)
			}
			return 0, err
		}
	}
	return len(drafts), nil
}

func (q queries) InsertDueIfAbsent(ctx context.Context, draft DueDraft) (bool, error) {
	const query = `
		INSERT INTO dues (enrollment_id, member_id, due_date, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'PENDING', NOW(), NOW())
		ON CONFLICT (enrollment_id, due_date) DO NOTHING`

	tag, err := q.db.Exec(ctx, query, draft.EnrollmentID, draft.MemberID, draft.DueDate, draft.Amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q queries) GetDue(ctx context.Context, id int64) (*Due, error) {
	const query = `
		SELECT id, enrollment_id, member_id, due_date, amount, status, paid_at, created_at, updated_at
		FROM dues
		WHERE id = $1`

	var d Due
	var paidAt pgtype.Timestamptz
	err := q.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.EnrollmentID, &d.MemberID, &d.DueDate, &d.Amount, &d.Status, &paidAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: due %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	d.DueDate = DateOf(d.DueDate)
	if paidAt.Valid {
		d.PaidAt = &paidAt.Time
	}
	return &d, nil
}

func (q queries) LatestDueDate(ctx context.Context, enrollmentID int64) (*time.Time, error) {
	var latest pgtype.Date
	err := q.db.QueryRow(ctx, `SELECT MAX(due_date) FROM dues WHERE enrollment_id = $1`, enrollmentID).Scan(&latest)
	if err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	t := DateOf(latest.Time)
	return &t, nil
}

func (q queries) CountPaidByEnrollment(ctx context.Context, enrollmentID int64) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM dues WHERE enrollment_id = $1 AND status = 'PAID'`, enrollmentID).Scan(&count)
	return count, err
}

func (q queries) DeleteDuesByEnrollment(ctx context.Context, enrollmentID int64) (int, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM dues WHERE enrollment_id = $1`, enrollmentID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q queries) MarkDuePaid(ctx context.Context, dueID int64, paidAt time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE dues SET status = 'PAID', paid_at = $2, updated_at = NOW() WHERE id = $1`, dueID, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: due %d", ErrNotFound, dueID)
	}
	return nil
}

func (q queries) PromoteOverdue(ctx context.Context, memberID int64, threshold time.Time) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE dues SET status = 'OVERDUE', updated_at = NOW()
		WHERE member_id = $1 AND status = 'PENDING' AND due_date <= $2`,
		memberID, DateOf(threshold))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q queries) RestatusDues(ctx context.Context, memberID int64, from []DueStatus, to DueStatus) (int, error) {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE dues SET status = $3, updated_at = NOW()
		WHERE member_id = $1 AND status = ANY($2)`,
		memberID, states, to)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q queries) CountDuesByStatus(ctx context.Context, memberID int64) (DueTotals, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'OVERDUE'),
			COUNT(*) FILTER (WHERE status = 'PAID'),
			COUNT(*) FILTER (WHERE status = 'FROZEN')
		FROM dues
		WHERE member_id = $1`

	var totals DueTotals
	err := q.db.QueryRow(ctx, query, memberID).Scan(&totals.Pending, &totals.Overdue, &totals.Paid, &totals.Frozen)
	return totals, err
}

func (q queries) CountPendingPastDue(ctx context.Context, memberID int64, threshold time.Time) (int, error) {
	var count int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM dues WHERE member_id = $1 AND status = 'PENDING' AND due_date <= $2`,
		memberID, DateOf(threshold)).Scan(&count)
	return count, err
}

func (q queries) NextPendingDueDate(ctx context.Context, memberID int64) (*time.Time, error) {
	var next pgtype.Date
	err := q.db.QueryRow(ctx,
		`SELECT MIN(due_date) FROM dues WHERE member_id = $1 AND status = 'PENDING'`, memberID).Scan(&next)
	if err != nil {
		return nil, err
	}
	if !next.Valid {
		return nil, nil
	}
	t := DateOf(next.Time)
	return &t, nil
}

func (q queries) PaidCount(ctx context.Context, memberID int64) (int, error) {
	var count int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM dues WHERE member_id = $1 AND status = 'PAID'`, memberID).Scan(&count)
	return count, err
}

func (q queries) MonthCovered(ctx context.Context, memberID int64, ref time.Time) (bool, error) {
	var covered bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM dues
			WHERE member_id = $1 AND status = 'PAID'
			  AND date_trunc('month', due_date) = date_trunc('month', $2::date)
		)`, memberID, DateOf(ref)).Scan(&covered)
	return covered, err
}

// --- Payments ---

func (q queries) UpsertPayment(ctx context.Context, input PaymentInput) (*Payment, error) {
	const query = `
		INSERT INTO payments (due_id, amount, method, reference, notes, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (due_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			method = EXCLUDED.method,
			reference = EXCLUDED.reference,
			notes = EXCLUDED.notes,
			paid_at = EXCLUDED.paid_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	p := Payment{
		DueID:     input.DueID,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		Notes:     input.Notes,
		PaidAt:    input.PaidAt,
	}
	err := q.db.QueryRow(ctx, query,
		input.DueID, input.Amount, input.Method, input.Reference, input.Notes, input.PaidAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
