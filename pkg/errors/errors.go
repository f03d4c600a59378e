package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Internal sentinels. These never leave the service layer as-is; Public
// maps them to their externally visible counterparts.
var (
	// ErrDuplicateEmail is returned by the repository when the unique email
	// constraint rejects an insert.
	ErrDuplicateEmail = stderrors.New("email already registered")
	// ErrCorruptStoredHash marks a stored password record that cannot be parsed.
	ErrCorruptStoredHash = stderrors.New("corrupt stored password hash")
)

// Public errors, safe to hand to any transport.
var (
	ErrInvalidCredentials = &CredentialsError{Message: "invalid email or password"}
	ErrRegistrationFailed = &RegistrationError{Message: "registration failed"}
	ErrInternal           = NewInternalError("internal server error", nil)
)

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError creates a new validation error
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  fields,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, ", "))
}

// GRPCStatus returns the gRPC status for this error
func (e *ValidationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// RateLimitedError is returned when a client exceeded its request budget.
type RateLimitedError struct {
	RetryAfter time.Duration
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{RetryAfter: retryAfter}
}

// Error implements the error interface
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// GRPCStatus returns the gRPC status for this error
func (e *RateLimitedError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}

// CredentialsError is the single outcome of every failed login.
type CredentialsError struct {
	Message string
}

// Error implements the error interface
func (e *CredentialsError) Error() string {
	return e.Message
}

// GRPCStatus returns the gRPC status for this error
func (e *CredentialsError) GRPCStatus() *status.Status {
	return status.New(codes.Unauthenticated, e.Message)
}

// RegistrationError is the generic registration failure. It deliberately
// carries no hint about whether the email is already taken.
type RegistrationError struct {
	Message string
}

// Error implements the error interface
func (e *RegistrationError) Error() string {
	return e.Message
}

// GRPCStatus returns the gRPC status for this error
func (e *RegistrationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Message)
}

// StorageError wraps an infrastructure failure from the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError creates a new storage error for the given operation
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// GRPCStatus never exposes the cause.
func (e *StorageError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, ErrInternal.Message)
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error
func (e *InternalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Message)
}

// GRPCStatuser interface for errors that can provide gRPC status
type GRPCStatuser interface {
	GRPCStatus() *status.Status
}

// Public maps an internal error to the error a caller is allowed to see.
// Anything not explicitly listed collapses to ErrInternal.
func Public(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *ValidationError
	if stderrors.As(err, &validationErr) {
		return validationErr
	}

	var rateErr *RateLimitedError
	if stderrors.As(err, &rateErr) {
		return rateErr
	}

	switch {
	case stderrors.Is(err, ErrDuplicateEmail), stderrors.Is(err, ErrRegistrationFailed):
		return ErrRegistrationFailed
	case stderrors.Is(err, ErrCorruptStoredHash), stderrors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials
	default:
		return ErrInternal
	}
}
