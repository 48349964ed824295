package models

import "time"

// Stream is a subject area used to group books and students
type Stream struct {
	ID   int64  `json:"id" db:"id" example:"1"`
	Name string `json:"name" db:"name" example:"Science"`
}

// Author of one or more books
type Author struct {
	ID   int64  `json:"id" db:"id" example:"1"`
	Name string `json:"name" db:"name" example:"Frank Herbert"`
	Bio  string `json:"bio" db:"bio"`
}

// Book is a catalog entry; Quantity is the number of copies on hand
type Book struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	AuthorID        int64      `json:"authorId" db:"author_id"`
	StreamID        *int64     `json:"streamId,omitempty" db:"stream_id"`
	PublicationDate *time.Time `json:"publicationDate,omitempty" db:"publication_date"`
	Quantity        int        `json:"quantity" db:"quantity"`
	CreatedBy       *int64     `json:"createdBy,omitempty" db:"created_by"`
	UpdatedBy       *int64     `json:"updatedBy,omitempty" db:"updated_by"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`

	// Populated on reads
	AuthorName string  `json:"authorName,omitempty"`
	StreamName *string `json:"streamName,omitempty"`
}

// BookFilter narrows a book listing
type BookFilter struct {
	// Search matches title or author name, case-insensitive substring
	Search   string
	StreamID *int64
}

// BookRequest is one student's request to borrow one book
type BookRequest struct {
	ID            int64      `json:"id" db:"id"`
	StudentID     string     `json:"studentId" db:"student_id"`
	BookID        int64      `json:"bookId" db:"book_id"`
	IsApproved    bool       `json:"isApproved" db:"is_approved"`
	RequestedAt   time.Time  `json:"requestedAt" db:"requested_at"`
	ApprovedAt    *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	ReturnDueDate *time.Time `json:"returnDueDate,omitempty" db:"return_due_date"`
	IsReturned    bool       `json:"isReturned" db:"is_returned"`
	ReturnedAt    *time.Time `json:"returnedAt,omitempty" db:"returned_at"`

	// Populated on reads
	BookTitle string `json:"bookTitle,omitempty"`
}

// BookRequestFilter narrows a request listing; empty StudentID lists everything
type BookRequestFilter struct {
	StudentID string
}
