package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a post, profile or account does not exist on the reached backend
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable is returned when every storage backend failed an operation
	ErrBackendUnavailable = errors.New("storage backend unavailable, please try again")

	// ErrProtectedAccount is returned when a moderation action targets a protected admin
	ErrProtectedAccount = errors.New("account is protected")

	// ErrSelfFollow is a ValidationError so callers can treat it like any other bad input
	ErrSelfFollow error = &ValidationError{Field: "followee", Message: "Cannot follow yourself"}

	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBanned      = errors.New("this account has been banned")
)

// ValidationError represents bad input with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// NotFoundError names the missing resource. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// IsDomainError reports errors that describe the request rather than a storage failure.
// Backends return these to stop fallback to the next backend.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || IsValidationError(err)
}
