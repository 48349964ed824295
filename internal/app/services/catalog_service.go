package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// CatalogService manages streams, authors and books
type CatalogService struct {
	store      repositories.Store
	authorizer *authz.Authorizer
	logger     zerolog.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(store repositories.Store, authorizer *authz.Authorizer, logger zerolog.Logger) *CatalogService {
	return &CatalogService{store: store, authorizer: authorizer, logger: logger}
}

// ListStreams returns every stream
func (s *CatalogService) ListStreams(ctx context.Context) ([]*models.Stream, error) {
	streams, err := s.store.Repos().Streams.List(ctx)
	if err != nil {
		return nil, wrap(err, "listing streams")
	}
	return streams, nil
}

// CreateStream adds a stream; names are unique
func (s *CatalogService) CreateStream(ctx context.Context, actor *authz.Principal, req *dto.CreateStreamRequest) (*models.Stream, error) {
	if err := s.authorizer.Require(actor, authz.CapManageCatalog); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("Stream name is required")
	}

	stream := &models.Stream{Name: name}
	if err := s.store.Repos().Streams.Create(ctx, stream); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, apperrors.NewConflictError("Stream already exists")
		}
		return nil, wrap(err, "creating stream")
	}
	return stream, nil
}

// ListAuthors returns every author
func (s *CatalogService) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	authors, err := s.store.Repos().Authors.List(ctx)
	if err != nil {
		return nil, wrap(err, "listing authors")
	}
	return authors, nil
}

// CreateAuthor adds an author
func (s *CatalogService) CreateAuthor(ctx context.Context, actor *authz.Principal, req *dto.CreateAuthorRequest) (*models.Author, error) {
	if err := s.authorizer.Require(actor, authz.CapManageCatalog); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("Author name is required")
	}

	author := &models.Author{Name: name, Bio: strings.TrimSpace(req.Bio)}
	if err := s.store.Repos().Authors.Create(ctx, author); err != nil {
		return nil, wrap(err, "creating author")
	}
	return author, nil
}

// ParseBookFilter reads the listing query; an empty or "all" stream means every stream
func ParseBookFilter(req *dto.BookFilterRequest) (models.BookFilter, error) {
	filter := models.BookFilter{Search: strings.TrimSpace(req.Search)}

	stream := strings.TrimSpace(req.Stream)
	if stream == "" || strings.EqualFold(stream, "all") {
		return filter, nil
	}

	id, err := strconv.ParseInt(stream, 10, 64)
	if err != nil || id <= 0 {
		return filter, apperrors.NewValidationError("stream must be a stream id or 'all'")
	}
	filter.StreamID = &id
	return filter, nil
}

// ListBooks returns books matching the query
func (s *CatalogService) ListBooks(ctx context.Context, req *dto.BookFilterRequest) ([]*models.Book, error) {
	filter, err := ParseBookFilter(req)
	if err != nil {
		return nil, err
	}

	books, err := s.store.Repos().Books.List(ctx, filter)
	if err != nil {
		return nil, wrap(err, "listing books")
	}
	return books, nil
}

// GetBook returns one book
func (s *CatalogService) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.store.Repos().Books.GetByID(ctx, id)
	if err != nil {
		return nil, wrap(notFound(err, "Book"), "getting book")
	}
	return book, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		return nil, apperrors.NewValidationError("publicationDate must be YYYY-MM-DD")
	}
	return &t, nil
}

// checkRefs verifies that the author and optional stream of a book exist
func checkRefs(ctx context.Context, repos *repositories.Repositories, authorID int64, streamID *int64) error {
	if _, err := repos.Authors.GetByID(ctx, authorID); err != nil {
		return notFound(err, "Author")
	}
	if streamID != nil {
		if _, err := repos.Streams.GetByID(ctx, *streamID); err != nil {
			return notFound(err, "Stream")
		}
	}
	return nil
}

func bookWriteError(err error) error {
	if errors.Is(err, repositories.ErrAlreadyExists) {
		return apperrors.NewConflictError("A book with this title, author and stream already exists")
	}
	return err
}

// CreateBook adds a catalog entry recorded as created by actor
func (s *CatalogService) CreateBook(ctx context.Context, actor *authz.Principal, req *dto.CreateBookRequest) (*models.Book, error) {
	if err := s.authorizer.Require(actor, authz.CapManageCatalog); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("Title is required")
	}
	quantity := 0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 0 {
		return nil, apperrors.NewValidationError("Quantity cannot be negative")
	}
	published, err := parseDate(req.PublicationDate)
	if err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:           title,
		AuthorID:        req.AuthorID,
		StreamID:        req.StreamID,
		PublicationDate: published,
		Quantity:        quantity,
		CreatedBy:       &actor.UserID,
		UpdatedBy:       &actor.UserID,
	}

	var created *models.Book
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if err := checkRefs(ctx, repos, book.AuthorID, book.StreamID); err != nil {
			return err
		}
		if err := repos.Books.Create(ctx, book); err != nil {
			return bookWriteError(err)
		}
		created, err = repos.Books.GetByID(ctx, book.ID)
		return err
	})
	if err != nil {
		return nil, wrap(err, "creating book")
	}

	s.logger.Info().Int64("bookID", created.ID).Int64("userID", actor.UserID).Msg("Book created")
	return created, nil
}

// UpdateBook applies a partial update recorded as made by actor
func (s *CatalogService) UpdateBook(ctx context.Context, actor *authz.Principal, id int64, req *dto.UpdateBookRequest) (*models.Book, error) {
	if err := s.authorizer.Require(actor, authz.CapManageCatalog); err != nil {
		return nil, err
	}

	var updated *models.Book
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		book, err := repos.Books.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "Book")
		}

		if title := trimmed(req.Title); title != nil {
			if *title == "" {
				return apperrors.NewValidationError("Title cannot be empty")
			}
			book.Title = *title
		}
		if req.AuthorID != nil {
			book.AuthorID = *req.AuthorID
		}
		if req.StreamID != nil {
			if *req.StreamID == 0 {
				book.StreamID = nil
			} else {
				streamID := *req.StreamID
				book.StreamID = &streamID
			}
		}
		if req.PublicationDate != nil {
			published, err := parseDate(*req.PublicationDate)
			if err != nil {
				return err
			}
			book.PublicationDate = published
		}
		if req.Quantity != nil {
			if *req.Quantity < 0 {
				return apperrors.NewValidationError("Quantity cannot be negative")
			}
			book.Quantity = *req.Quantity
		}
		book.UpdatedBy = &actor.UserID

		if err := checkRefs(ctx, repos, book.AuthorID, book.StreamID); err != nil {
			return err
		}
		if err := repos.Books.Update(ctx, book); err != nil {
			return bookWriteError(notFound(err, "Book"))
		}
		updated, err = repos.Books.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrap(err, "updating book")
	}

	s.logger.Info().Int64("bookID", id).Int64("userID", actor.UserID).Msg("Book updated")
	return updated, nil
}

// DeleteBook removes a book together with its requests
func (s *CatalogService) DeleteBook(ctx context.Context, actor *authz.Principal, id int64) error {
	if err := s.authorizer.Require(actor, authz.CapManageCatalog); err != nil {
		return err
	}
	if err := s.store.Repos().Books.Delete(ctx, id); err != nil {
		return wrap(notFound(err, "Book"), "deleting book")
	}
	s.logger.Info().Int64("bookID", id).Int64("userID", actor.UserID).Msg("Book deleted")
	return nil
}
