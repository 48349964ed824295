// Package postgres implements the repositories on PostgreSQL via pgx and squirrel.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/db"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// psql is the statement builder shared by every repository
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store implements repositories.Store on a connection pool
type Store struct {
	db    *db.PostgresDB
	repos *repositories.Repositories
}

// NewStore creates a Store backed by database
func NewStore(database *db.PostgresDB) *Store {
	return &Store{
		db:    database,
		repos: NewRepositories(database.Pool),
	}
}

// NewRepositories binds every repository to q
func NewRepositories(q DBTX) *repositories.Repositories {
	return &repositories.Repositories{
		Users:        &UserRepository{db: q},
		Profiles:     &ProfileRepository{db: q},
		Streams:      &StreamRepository{db: q},
		Authors:      &AuthorRepository{db: q},
		Books:        &BookRepository{db: q},
		BookRequests: &BookRequestRepository{db: q},
	}
}

// Repos returns repositories that run each statement on its own pooled connection
func (s *Store) Repos() *repositories.Repositories {
	return s.repos
}

// WithinTransaction runs fn with repositories bound to one transaction
func (s *Store) WithinTransaction(ctx context.Context, fn repositories.TxFn) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// likePattern escapes LIKE metacharacters and wraps s for a substring match
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
