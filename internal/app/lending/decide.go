// Package lending holds the book request state machine as pure functions.
// Callers load the rows, ask for a decision and persist the outcome in one transaction.
package lending

import (
	"time"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// LoanPeriod is the time between approval and the return due date
const LoanPeriod = 7 * 24 * time.Hour

// Outcome is the new state of a request plus the change to the book's on-hand quantity
type Outcome struct {
	Request    models.BookRequest
	StockDelta int
}

// DecideCreate builds the pending requests a student gets for books.
//
//	GIVEN: existing books (already de-duplicated) and the student's pending requests for them
//	WHEN: the student asks to borrow the books
//	THEN: one pending request per book, requested at now
//	ERROR: validation failure if no book is given
//	ERROR: AlreadyPending listing every title that already has a pending request
//
// Availability is not checked here; stock is only reserved at approval.
func DecideCreate(studentID string, books []models.Book, pending []models.BookRequest, now time.Time) ([]models.BookRequest, error) {
	if len(books) == 0 {
		return nil, apperrors.NewValidationError("At least one book is required")
	}

	isPending := make(map[int64]bool, len(pending))
	for _, r := range pending {
		if r.StudentID == studentID && !r.IsApproved {
			isPending[r.BookID] = true
		}
	}

	var titles []string
	for _, b := range books {
		if isPending[b.ID] {
			titles = append(titles, b.Title)
		}
	}
	if len(titles) > 0 {
		return nil, apperrors.NewAlreadyPendingError(titles)
	}

	requests := make([]models.BookRequest, 0, len(books))
	for _, b := range books {
		requests = append(requests, models.BookRequest{
			StudentID:   studentID,
			BookID:      b.ID,
			RequestedAt: now,
			BookTitle:   b.Title,
		})
	}
	return requests, nil
}

// DecideApprove approves a pending request and reserves one copy.
//
//	GIVEN: a request and the book it refers to
//	WHEN: staff approve the request
//	THEN: approved at now, due now+LoanPeriod, stock -1
//	ERROR: AlreadyApproved if the request is approved
//	ERROR: BookUnavailable if no copy is on hand
func DecideApprove(req models.BookRequest, book models.Book, now time.Time) (Outcome, error) {
	if req.IsApproved {
		return Outcome{}, apperrors.ErrAlreadyApproved
	}
	if book.Quantity < 1 {
		return Outcome{}, apperrors.ErrBookUnavailable
	}

	due := now.Add(LoanPeriod)
	approvedAt := now
	req.IsApproved = true
	req.ApprovedAt = &approvedAt
	req.ReturnDueDate = &due

	return Outcome{Request: req, StockDelta: -1}, nil
}

// DecideReturn closes an approved loan and puts the copy back.
//
//	GIVEN: a request and the roll number of the acting student
//	WHEN: the student returns the book
//	THEN: returned at now, stock +1
//	ERROR: permission denied if the actor did not make the request
//	ERROR: NotApproved if the request was never approved
//	ERROR: AlreadyReturned if the book was already returned
func DecideReturn(req models.BookRequest, actorStudentID string, now time.Time) (Outcome, error) {
	if req.StudentID != actorStudentID {
		return Outcome{}, apperrors.NewForbiddenError("You can only return your own books")
	}
	if !req.IsApproved {
		return Outcome{}, apperrors.ErrNotApproved
	}
	if req.IsReturned {
		return Outcome{}, apperrors.ErrAlreadyReturned
	}

	returnedAt := now
	req.IsReturned = true
	req.ReturnedAt = &returnedAt

	return Outcome{Request: req, StockDelta: 1}, nil
}

// IsOverdue reports an approved, unreturned loan past its due date
func IsOverdue(req models.BookRequest, now time.Time) bool {
	return req.IsApproved && !req.IsReturned && req.ReturnDueDate != nil && now.After(*req.ReturnDueDate)
}

// WasOverdue reports a loan that came back after its due date
func WasOverdue(req models.BookRequest) bool {
	return req.IsReturned && req.ReturnedAt != nil && req.ReturnDueDate != nil &&
		req.ReturnedAt.After(*req.ReturnDueDate)
}

// View is a request with its overdue flags evaluated at a point in time
type View struct {
	Request    models.BookRequest
	IsOverdue  bool
	WasOverdue bool
}

// ViewAt evaluates req at now
func ViewAt(req models.BookRequest, now time.Time) View {
	return View{
		Request:    req,
		IsOverdue:  IsOverdue(req, now),
		WasOverdue: WasOverdue(req),
	}
}
