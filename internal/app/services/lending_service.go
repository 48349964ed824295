package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/lending"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/metrics"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/helpers"
)

// LendingService runs the book request workflow: request, approve, return
type LendingService struct {
	store      repositories.Store
	authorizer *authz.Authorizer
	now        helpers.Clock
	logger     zerolog.Logger
}

// NewLendingService creates a new LendingService
func NewLendingService(store repositories.Store, authorizer *authz.Authorizer, clock helpers.Clock, logger zerolog.Logger) *LendingService {
	return &LendingService{store: store, authorizer: authorizer, now: clock, logger: logger}
}

// uniqueIDs drops duplicates, keeping first occurrence order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(want []int64, found []*models.Book) []string {
	have := make(map[int64]bool, len(found))
	for _, b := range found {
		have[b.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !have[id] {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	return missing
}

// CreateRequests files one pending request per book for the acting student
func (s *LendingService) CreateRequests(ctx context.Context, actor *authz.Principal, bookIDs []int64) ([]lending.View, error) {
	if err := s.authorizer.Require(actor, authz.CapRequestBooks); err != nil {
		return nil, err
	}

	ids := uniqueIDs(bookIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("At least one book is required")
	}

	now := s.now()
	var created []models.BookRequest
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		found, err := repos.Books.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return apperrors.NewResourceNotFoundError("Book not found: " + strings.Join(missing, ", "))
		}

		pending, err := repos.BookRequests.FindPending(ctx, actor.ProfileID, ids)
		if err != nil {
			return err
		}

		books := make([]models.Book, 0, len(found))
		for _, b := range found {
			books = append(books, *b)
		}
		pendingRows := make([]models.BookRequest, 0, len(pending))
		for _, r := range pending {
			pendingRows = append(pendingRows, *r)
		}

		requests, err := lending.DecideCreate(actor.ProfileID, books, pendingRows, now)
		if err != nil {
			return err
		}

		// a concurrent request for the same book can commit between FindPending and here
		for i := range requests {
			if err := repos.BookRequests.Create(ctx, &requests[i]); err != nil {
				if errors.Is(err, repositories.ErrAlreadyExists) {
					return apperrors.NewAlreadyPendingError([]string{requests[i].BookTitle})
				}
				return err
			}
		}
		created = requests
		return nil
	})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeAlreadyPending {
			metrics.Lending(metrics.OutcomeRejected)
		}
		return nil, wrap(err, "creating book requests")
	}

	views := make([]lending.View, 0, len(created))
	for _, r := range created {
		metrics.Lending(metrics.OutcomeRequested)
		views = append(views, lending.ViewAt(r, now))
	}
	s.logger.Info().Str("studentID", actor.ProfileID).Int("count", len(created)).Msg("Book requests created")
	return views, nil
}

// ApproveRequest approves a pending request and takes one copy off the shelf.
// The request and book rows stay locked until commit, so of several concurrent
// approvals competing for the same request or the last copy, exactly one wins.
func (s *LendingService) ApproveRequest(ctx context.Context, actor *authz.Principal, requestID int64) (*lending.View, error) {
	if err := s.authorizer.Require(actor, authz.CapApproveRequests); err != nil {
		return nil, err
	}

	now := s.now()
	var approved models.BookRequest
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		req, err := repos.BookRequests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "Book request")
		}
		book, err := repos.Books.GetByIDForUpdate(ctx, req.BookID)
		if err != nil {
			return notFound(err, "Book")
		}

		outcome, err := lending.DecideApprove(*req, *book, now)
		if err != nil {
			return err
		}

		if err := repos.BookRequests.Update(ctx, &outcome.Request); err != nil {
			return err
		}
		if err := repos.Books.AdjustQuantity(ctx, book.ID, outcome.StockDelta); err != nil {
			if errors.Is(err, repositories.ErrOutOfStock) {
				return apperrors.ErrBookUnavailable
			}
			return err
		}
		approved = outcome.Request
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnavailable) {
			metrics.Lending(metrics.OutcomeUnavailable)
		}
		return nil, wrap(err, "approving book request")
	}

	metrics.Lending(metrics.OutcomeApproved)
	s.logger.Info().Int64("requestID", requestID).Int64("approvedBy", actor.UserID).Msg("Book request approved")
	view := lending.ViewAt(approved, now)
	return &view, nil
}

// ReturnRequest closes the acting student's loan and puts the copy back
func (s *LendingService) ReturnRequest(ctx context.Context, actor *authz.Principal, requestID int64) (*lending.View, error) {
	if err := s.authorizer.Require(actor, authz.CapReturnBooks); err != nil {
		return nil, err
	}

	now := s.now()
	var returned models.BookRequest
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		req, err := repos.BookRequests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "Book request")
		}

		outcome, err := lending.DecideReturn(*req, actor.ProfileID, now)
		if err != nil {
			return err
		}

		if err := repos.BookRequests.Update(ctx, &outcome.Request); err != nil {
			return err
		}
		if err := repos.Books.AdjustQuantity(ctx, req.BookID, outcome.StockDelta); err != nil {
			return notFound(err, "Book")
		}
		returned = outcome.Request
		return nil
	})
	if err != nil {
		return nil, wrap(err, "returning book")
	}

	metrics.Lending(metrics.OutcomeReturned)
	view := lending.ViewAt(returned, now)
	if view.WasOverdue {
		s.logger.Warn().Int64("requestID", requestID).Str("studentID", actor.ProfileID).Msg("Book returned late")
	} else {
		s.logger.Info().Int64("requestID", requestID).Str("studentID", actor.ProfileID).Msg("Book returned")
	}
	return &view, nil
}

// ListRequests returns every request to staff and a student's own requests to the student
func (s *LendingService) ListRequests(ctx context.Context, actor *authz.Principal) ([]lending.View, error) {
	var filter models.BookRequestFilter
	switch {
	case s.authorizer.Can(actor, authz.CapViewAllRequests):
	case actor != nil && actor.HasProfile():
		filter.StudentID = actor.ProfileID
	default:
		return nil, apperrors.NewForbiddenError("Only students and staff can view book requests")
	}

	requests, err := s.store.Repos().BookRequests.List(ctx, filter)
	if err != nil {
		return nil, wrap(err, "listing book requests")
	}

	now := s.now()
	views := make([]lending.View, 0, len(requests))
	for _, r := range requests {
		views = append(views, lending.ViewAt(*r, now))
	}
	return views, nil
}
