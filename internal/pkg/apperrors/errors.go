package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")
	ErrUnavailable           = errors.New("resource unavailable")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Error codes carried by CustomError.Code
const (
	CodePasswordMismatch  = "PASSWORD_MISMATCH"
	CodeWeakPassword      = "WEAK_PASSWORD"
	CodeDuplicateUsername = "DUPLICATE_USERNAME"
	CodeAlreadyPending    = "ALREADY_PENDING"
	CodeAlreadyApproved   = "ALREADY_APPROVED"
	CodeNotApproved       = "NOT_APPROVED"
	CodeAlreadyReturned   = "ALREADY_RETURNED"
	CodeAlreadyInState    = "ALREADY_IN_STATE"
	CodeBookUnavailable   = "BOOK_UNAVAILABLE"
	CodeOutstandingLoans  = "OUTSTANDING_LOANS"
)

// Registration errors
var (
	ErrPasswordMismatch  = &CustomError{Err: ErrValidationFailed, Message: "Passwords do not match", Code: CodePasswordMismatch}
	ErrDuplicateUsername = &CustomError{Err: ErrConflict, Message: "Username already exists", Code: CodeDuplicateUsername}
)

// Lending errors
var (
	ErrAlreadyApproved  = &CustomError{Err: ErrConflict, Message: "Already approved", Code: CodeAlreadyApproved}
	ErrNotApproved      = &CustomError{Err: ErrConflict, Message: "Book request not approved yet", Code: CodeNotApproved}
	ErrAlreadyReturned  = &CustomError{Err: ErrConflict, Message: "Book already returned", Code: CodeAlreadyReturned}
	ErrBookUnavailable  = &CustomError{Err: ErrUnavailable, Message: "Book not available", Code: CodeBookUnavailable}
	ErrOutstandingLoans = &CustomError{Err: ErrConflict, Message: "Student still holds unreturned books", Code: CodeOutstandingLoans}
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewValidationError creates a new custom error for invalid input with a message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// NewAlreadyInStateError reports an identity transition that would not change anything.
func NewAlreadyInStateError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
		Code:    CodeAlreadyInState,
	}
}

// NewAlreadyPendingError reports books that already have a pending request from the student.
func NewAlreadyPendingError(titles []string) error {
	msg := "Already requested: "
	for i, t := range titles {
		if i > 0 {
			msg += ", "
		}
		msg += t
	}
	return (&CustomError{
		Err:     ErrConflict,
		Message: msg,
		Code:    CodeAlreadyPending,
	}).WithDetails(map[string]interface{}{"titles": titles})
}

// NewWeakPasswordError rejects a password scored as weak.
func NewWeakPasswordError(strength string) error {
	return (&CustomError{
		Err:     ErrValidationFailed,
		Message: "Password is too weak",
		Code:    CodeWeakPassword,
	}).WithDetails(map[string]interface{}{"password_strength": strength})
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CodeOf returns the Code of the first CustomError in err's chain, or "".
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}
