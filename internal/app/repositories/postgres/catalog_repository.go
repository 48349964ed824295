package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/dberrors"
)

// StreamRepository handles stream persistence
type StreamRepository struct {
	db DBTX
}

// Create inserts a stream; names are unique
func (r *StreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	sql, args, err := psql.Insert("streams").
		Columns("name").
		Values(stream.Name).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create stream query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&stream.ID); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return repositories.ErrAlreadyExists
		}
		return fmt.Errorf("error creating stream: %w", err)
	}
	return nil
}

// GetByID retrieves a stream by ID
func (r *StreamRepository) GetByID(ctx context.Context, id int64) (*models.Stream, error) {
	sql, args, err := psql.Select("id", "name").From("streams").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get stream query: %w", err)
	}

	s := &models.Stream{}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.Name); err != nil {
		if notFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("error getting stream: %w", err)
	}
	return s, nil
}

// List returns all streams by name
func (r *StreamRepository) List(ctx context.Context) ([]*models.Stream, error) {
	sql, args, err := psql.Select("id", "name").From("streams").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list streams query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying streams: %w", err)
	}
	defer rows.Close()

	streams := []*models.Stream{}
	for rows.Next() {
		s := &models.Stream{}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("error scanning stream row: %w", err)
		}
		streams = append(streams, s)
	}
	return streams, rows.Err()
}

// AuthorRepository handles author persistence
type AuthorRepository struct {
	db DBTX
}

// Create inserts an author
func (r *AuthorRepository) Create(ctx context.Context, author *models.Author) error {
	sql, args, err := psql.Insert("authors").
		Columns("name", "bio").
		Values(author.Name, author.Bio).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create author query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&author.ID); err != nil {
		return fmt.Errorf("error creating author: %w", err)
	}
	return nil
}

// GetByID retrieves an author by ID
func (r *AuthorRepository) GetByID(ctx context.Context, id int64) (*models.Author, error) {
	sql, args, err := psql.Select("id", "name", "bio").From("authors").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get author query: %w", err)
	}

	a := &models.Author{}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.Name, &a.Bio); err != nil {
		if notFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("error getting author: %w", err)
	}
	return a, nil
}

// List returns all authors by name
func (r *AuthorRepository) List(ctx context.Context) ([]*models.Author, error) {
	sql, args, err := psql.Select("id", "name", "bio").From("authors").OrderBy("name ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list authors query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying authors: %w", err)
	}
	defer rows.Close()

	authors := []*models.Author{}
	for rows.Next() {
		a := &models.Author{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Bio); err != nil {
			return nil, fmt.Errorf("error scanning author row: %w", err)
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}
