package dto

import (
	"time"

	"github.com/yigit/libris/internal/app/lending"
)

// CreateBookRequestsRequest asks to borrow one or more books
type CreateBookRequestsRequest struct {
	BookIDs []int64 `json:"bookIds" binding:"required,min=1,dive,gt=0"`
}

// BookRequestResponse is one lending request with its derived overdue flags
type BookRequestResponse struct {
	ID            int64      `json:"id"`
	StudentID     string     `json:"studentId"`
	BookID        int64      `json:"bookId"`
	BookTitle     string     `json:"bookTitle"`
	IsApproved    bool       `json:"isApproved"`
	RequestedAt   time.Time  `json:"requestedAt"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty"`
	ReturnDueDate *time.Time `json:"returnDueDate,omitempty"`
	IsReturned    bool       `json:"isReturned"`
	ReturnedAt    *time.Time `json:"returnedAt,omitempty"`
	IsOverdue     bool       `json:"isOverdue"`
	WasOverdue    bool       `json:"wasOverdue"`
}

// NewBookRequestResponse converts a lending view
func NewBookRequestResponse(v lending.View) *BookRequestResponse {
	r := v.Request
	return &BookRequestResponse{
		ID:            r.ID,
		StudentID:     r.StudentID,
		BookID:        r.BookID,
		BookTitle:     r.BookTitle,
		IsApproved:    r.IsApproved,
		RequestedAt:   r.RequestedAt,
		ApprovedAt:    r.ApprovedAt,
		ReturnDueDate: r.ReturnDueDate,
		IsReturned:    r.IsReturned,
		ReturnedAt:    r.ReturnedAt,
		IsOverdue:     v.IsOverdue,
		WasOverdue:    v.WasOverdue,
	}
}

// NewBookRequestListResponse converts a listing
func NewBookRequestListResponse(views []lending.View) []*BookRequestResponse {
	out := make([]*BookRequestResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewBookRequestResponse(v))
	}
	return out
}
