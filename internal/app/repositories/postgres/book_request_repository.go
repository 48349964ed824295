package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/dberrors"
)

// pendingRequestConstraint allows one unapproved request per student and book
const pendingRequestConstraint = "uq_book_requests_pending"

// BookRequestRepository handles lending request persistence
type BookRequestRepository struct {
	db DBTX
}

func (r *BookRequestRepository) selectRequests() squirrel.SelectBuilder {
	return psql.Select(
		"r.id", "r.student_id", "r.book_id", "r.is_approved", "r.requested_at",
		"r.approved_at", "r.return_due_date", "r.is_returned", "r.returned_at", "b.title",
	).
		From("book_requests r").
		Join("books b ON b.id = r.book_id")
}

func scanRequest(row pgx.Row) (*models.BookRequest, error) {
	req := &models.BookRequest{}
	err := row.Scan(
		&req.ID, &req.StudentID, &req.BookID, &req.IsApproved, &req.RequestedAt,
		&req.ApprovedAt, &req.ReturnDueDate, &req.IsReturned, &req.ReturnedAt, &req.BookTitle,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Create inserts a pending request; a second pending request for the same book is ErrAlreadyExists
func (r *BookRequestRepository) Create(ctx context.Context, req *models.BookRequest) error {
	sql, args, err := psql.Insert("book_requests").
		Columns("student_id", "book_id", "is_approved", "requested_at", "is_returned").
		Values(req.StudentID, req.BookID, req.IsApproved, req.RequestedAt, req.IsReturned).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create request query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&req.ID); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return repositories.ErrNotFound
		}
		if dberrors.IsDuplicateConstraintError(err, pendingRequestConstraint) {
			return repositories.ErrAlreadyExists
		}
		return fmt.Errorf("error creating book request: %w", err)
	}
	return nil
}

func (r *BookRequestRepository) getOne(ctx context.Context, id int64, lock bool) (*models.BookRequest, error) {
	q := r.selectRequests().Where(squirrel.Eq{"r.id": id})
	if lock {
		q = q.Suffix("FOR UPDATE OF r")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get request query: %w", err)
	}

	req, err := scanRequest(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if notFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("error getting book request: %w", err)
	}
	return req, nil
}

// GetByID retrieves a request by ID
func (r *BookRequestRepository) GetByID(ctx context.Context, id int64) (*models.BookRequest, error) {
	return r.getOne(ctx, id, false)
}

// GetByIDForUpdate retrieves and locks a request
func (r *BookRequestRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.BookRequest, error) {
	return r.getOne(ctx, id, true)
}

func (r *BookRequestRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.BookRequest, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list requests query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying book requests: %w", err)
	}
	defer rows.Close()

	requests := []*models.BookRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning book request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book request rows: %w", err)
	}
	return requests, nil
}

// List returns requests, newest first
func (r *BookRequestRepository) List(ctx context.Context, filter models.BookRequestFilter) ([]*models.BookRequest, error) {
	q := r.selectRequests()
	if filter.StudentID != "" {
		q = q.Where(squirrel.Eq{"r.student_id": filter.StudentID})
	}
	return r.query(ctx, q.OrderBy("r.requested_at DESC", "r.id DESC"))
}

// FindPending returns the student's unapproved requests for bookIDs
func (r *BookRequestRepository) FindPending(ctx context.Context, studentID string, bookIDs []int64) ([]*models.BookRequest, error) {
	if len(bookIDs) == 0 {
		return []*models.BookRequest{}, nil
	}
	return r.query(ctx, r.selectRequests().
		Where(squirrel.Eq{"r.student_id": studentID, "r.book_id": bookIDs, "r.is_approved": false}).
		OrderBy("r.book_id ASC"))
}

// CountOutstanding counts approved, unreturned loans
func (r *BookRequestRepository) CountOutstanding(ctx context.Context, studentID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM book_requests WHERE student_id = $1 AND is_approved AND NOT is_returned`,
		studentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting outstanding loans: %w", err)
	}
	return n, nil
}

// Update writes the lifecycle fields of req
func (r *BookRequestRepository) Update(ctx context.Context, req *models.BookRequest) error {
	sql, args, err := psql.Update("book_requests").
		SetMap(map[string]interface{}{
			"is_approved":     req.IsApproved,
			"approved_at":     req.ApprovedAt,
			"return_due_date": req.ReturnDueDate,
			"is_returned":     req.IsReturned,
			"returned_at":     req.ReturnedAt,
		}).
		Where(squirrel.Eq{"id": req.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update request query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating book request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// DeleteByStudent removes every request of a student
func (r *BookRequestRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM book_requests WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("error deleting book requests: %w", err)
	}
	return nil
}
