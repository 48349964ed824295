package dto

import (
	"time"

	"github.com/yigit/libris/internal/app/models"
)

// DateLayout is the wire format of publication dates
const DateLayout = "2006-01-02"

// CreateStreamRequest creates a stream
type CreateStreamRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateAuthorRequest creates an author
type CreateAuthorRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Bio  string `json:"bio"`
}

// BookFilterRequest is the query string of the book listing
type BookFilterRequest struct {
	Search string `form:"search"`
	Stream string `form:"stream"`
}

// CreateBookRequest creates a catalog entry
type CreateBookRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	AuthorID        int64  `json:"authorId" binding:"required,gt=0"`
	StreamID        *int64 `json:"streamId" binding:"omitempty,gt=0"`
	PublicationDate string `json:"publicationDate" binding:"omitempty,datetime=2006-01-02"`
	Quantity        *int   `json:"quantity" binding:"omitempty,min=0"`
}

// UpdateBookRequest is a partial book update; StreamID 0 clears the stream
type UpdateBookRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=255"`
	AuthorID        *int64  `json:"authorId" binding:"omitempty,gt=0"`
	StreamID        *int64  `json:"streamId" binding:"omitempty,min=0"`
	PublicationDate *string `json:"publicationDate" binding:"omitempty,datetime=2006-01-02"`
	Quantity        *int    `json:"quantity" binding:"omitempty,min=0"`
}

// BookResponse is a catalog entry with resolved names
type BookResponse struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	AuthorID        int64     `json:"authorId"`
	AuthorName      string    `json:"authorName"`
	StreamID        *int64    `json:"streamId,omitempty"`
	StreamName      *string   `json:"streamName,omitempty"`
	PublicationDate *string   `json:"publicationDate,omitempty"`
	Quantity        int       `json:"quantity"`
	Available       bool      `json:"available"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewBookResponse converts a book model
func NewBookResponse(b *models.Book) *BookResponse {
	if b == nil {
		return nil
	}
	resp := &BookResponse{
		ID:         b.ID,
		Title:      b.Title,
		AuthorID:   b.AuthorID,
		AuthorName: b.AuthorName,
		StreamID:   b.StreamID,
		StreamName: b.StreamName,
		Quantity:   b.Quantity,
		Available:  b.Quantity > 0,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	if b.PublicationDate != nil {
		d := b.PublicationDate.Format(DateLayout)
		resp.PublicationDate = &d
	}
	return resp
}

// NewBookListResponse converts a book listing
func NewBookListResponse(books []*models.Book) []*BookResponse {
	out := make([]*BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, NewBookResponse(b))
	}
	return out
}
