package repositories

import (
	"context"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// Shared repository errors; services decorate them with entity-specific messages
var (
	ErrNotFound      = apperrors.ErrResourceNotFound
	ErrAlreadyExists = apperrors.ErrResourceAlreadyExists
	// ErrOutOfStock is returned by BookRepository.AdjustQuantity when a decrement would go below zero
	ErrOutOfStock = apperrors.ErrBookUnavailable
)

// UserRepository stores accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	// Update writes names, email, flags and password hash
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}

// ProfileRepository stores student profiles keyed by roll number
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	// GetByIDForUpdate locks the profile row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*models.Profile, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*models.Profile, error)
	// Update writes stream and approval flag
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id string) error
}

// StreamRepository stores streams
type StreamRepository interface {
	Create(ctx context.Context, stream *models.Stream) error
	GetByID(ctx context.Context, id int64) (*models.Stream, error)
	List(ctx context.Context) ([]*models.Stream, error)
}

// AuthorRepository stores authors
type AuthorRepository interface {
	Create(ctx context.Context, author *models.Author) error
	GetByID(ctx context.Context, id int64) (*models.Author, error)
	List(ctx context.Context) ([]*models.Author, error)
}

// BookRepository stores the catalog and on-hand quantities
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	// GetByIDForUpdate locks the book row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error)
	// GetByIDs returns the books that exist among ids, in ascending id order
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Book, error)
	List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	// AdjustQuantity adds delta to the on-hand quantity, never going below zero
	AdjustQuantity(ctx context.Context, id int64, delta int) error
	Delete(ctx context.Context, id int64) error
}

// BookRequestRepository stores lending requests
type BookRequestRepository interface {
	Create(ctx context.Context, req *models.BookRequest) error
	GetByID(ctx context.Context, id int64) (*models.BookRequest, error)
	// GetByIDForUpdate locks the request row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.BookRequest, error)
	List(ctx context.Context, filter models.BookRequestFilter) ([]*models.BookRequest, error)
	// FindPending returns the student's unapproved requests for any of bookIDs
	FindPending(ctx context.Context, studentID string, bookIDs []int64) ([]*models.BookRequest, error)
	// CountOutstanding counts approved, unreturned loans of a student
	CountOutstanding(ctx context.Context, studentID string) (int, error)
	// Update writes the approval and return fields
	Update(ctx context.Context, req *models.BookRequest) error
	DeleteByStudent(ctx context.Context, studentID string) error
}

// Repositories holds all the repository instances bound to one connection or transaction
type Repositories struct {
	Users        UserRepository
	Profiles     ProfileRepository
	Streams      StreamRepository
	Authors      AuthorRepository
	Books        BookRepository
	BookRequests BookRequestRepository
}

// TxFn runs against repositories bound to a single transaction
type TxFn func(ctx context.Context, repos *Repositories) error

// Store hands out repositories and runs units of work atomically
type Store interface {
	Repos() *Repositories
	// WithinTransaction commits if fn returns nil and rolls back otherwise
	WithinTransaction(ctx context.Context, fn TxFn) error
}
