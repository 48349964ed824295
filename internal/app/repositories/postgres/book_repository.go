package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/dberrors"
	"github.com/yigit/libris/internal/pkg/logger"
)

// BookRepository handles catalog persistence
type BookRepository struct {
	db DBTX
}

func (r *BookRepository) selectBooks() squirrel.SelectBuilder {
	return psql.Select(
		"b.id", "b.title", "b.author_id", "b.stream_id", "b.publication_date", "b.quantity",
		"b.created_by", "b.updated_by", "b.created_at", "b.updated_at", "a.name", "s.name",
	).
		From("books b").
		Join("authors a ON a.id = b.author_id").
		LeftJoin("streams s ON s.id = b.stream_id")
}

func scanBook(row pgx.Row) (*models.Book, error) {
	b := &models.Book{}
	err := row.Scan(
		&b.ID, &b.Title, &b.AuthorID, &b.StreamID, &b.PublicationDate, &b.Quantity,
		&b.CreatedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt, &b.AuthorName, &b.StreamName,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BookRepository) translateWriteError(err error, op string) error {
	switch {
	case dberrors.IsUniqueViolation(err):
		return repositories.ErrAlreadyExists
	case dberrors.IsForeignKeyViolation(err):
		return repositories.ErrNotFound
	case dberrors.IsCheckViolation(err):
		return repositories.ErrOutOfStock
	default:
		logger.Error().Err(err).Str("op", op).Msg("Book write failed")
		return fmt.Errorf("error %s book: %w", op, err)
	}
}

// Create inserts a book
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	sql, args, err := psql.Insert("books").
		Columns("title", "author_id", "stream_id", "publication_date", "quantity", "created_by", "updated_by").
		Values(book.Title, book.AuthorID, book.StreamID, book.PublicationDate, book.Quantity, book.CreatedBy, book.UpdatedBy).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create book query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt); err != nil {
		return r.translateWriteError(err, "creating")
	}
	return nil
}

func (r *BookRepository) getOne(ctx context.Context, id int64, lock bool) (*models.Book, error) {
	q := r.selectBooks().Where(squirrel.Eq{"b.id": id})
	if lock {
		q = q.Suffix("FOR UPDATE OF b")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get book query: %w", err)
	}

	b, err := scanBook(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if notFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("error getting book: %w", err)
	}
	return b, nil
}

// GetByID retrieves a book by ID
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	return r.getOne(ctx, id, false)
}

// GetByIDForUpdate retrieves and locks a book
func (r *BookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error) {
	return r.getOne(ctx, id, true)
}

func (r *BookRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Book, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list books query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying books: %w", err)
	}
	defer rows.Close()

	books := []*models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book rows: %w", err)
	}
	return books, nil
}

// GetByIDs returns the existing books among ids
func (r *BookRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Book, error) {
	if len(ids) == 0 {
		return []*models.Book{}, nil
	}
	return r.query(ctx, r.selectBooks().Where(squirrel.Eq{"b.id": ids}).OrderBy("b.id ASC"))
}

// List returns books matching filter, newest first
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	q := r.selectBooks()
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"b.title": pattern},
			squirrel.ILike{"a.name": pattern},
		})
	}
	if filter.StreamID != nil {
		q = q.Where(squirrel.Eq{"b.stream_id": *filter.StreamID})
	}
	return r.query(ctx, q.OrderBy("b.created_at DESC", "b.id DESC"))
}

// Update writes every catalog field of book
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	sql, args, err := psql.Update("books").
		SetMap(map[string]interface{}{
			"title":            book.Title,
			"author_id":        book.AuthorID,
			"stream_id":        book.StreamID,
			"publication_date": book.PublicationDate,
			"quantity":         book.Quantity,
			"updated_by":       book.UpdatedBy,
			"updated_at":       squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": book.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update book query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&book.UpdatedAt); err != nil {
		if notFound(err) {
			return repositories.ErrNotFound
		}
		return r.translateWriteError(err, "updating")
	}
	return nil
}

// AdjustQuantity changes the on-hand count in a single guarded statement
func (r *BookRepository) AdjustQuantity(ctx context.Context, id int64, delta int) error {
	sql, args, err := psql.Update("books").
		Set("quantity", squirrel.Expr("quantity + ?", delta)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Expr("quantity + ? >= 0", delta)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build adjust quantity query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return r.translateWriteError(err, "adjusting")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking book: %w", err)
	}
	if !exists {
		return repositories.ErrNotFound
	}
	return repositories.ErrOutOfStock
}

// Delete removes a book; its requests go with it
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
