package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can pick a status code
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindBadRequest Kind = "bad_request"
	KindValidation Kind = "validation"
	KindMethod     Kind = "method_not_allowed"
	KindInternal   Kind = "internal"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code, so errors.Is(err, ErrUserNotFound) holds for any
// user-not-found error regardless of the id it carries.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(kind Kind, code, message string, details ...string) *APIError {
	err := &APIError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput       = NewAPIError(KindBadRequest, "INVALID_INPUT", "Invalid request data")
	ErrNotFound           = NewAPIError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrMethodNotAllowed   = NewAPIError(KindMethod, "METHOD_NOT_ALLOWED", "Method not allowed")
	ErrInternal           = NewAPIError(KindInternal, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrUserNotFound       = NewAPIError(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrUsernameTaken      = NewAPIError(KindConflict, "USERNAME_TAKEN", "Username already exists")
	ErrRelationshipExists = NewAPIError(KindConflict, "RELATIONSHIP_EXISTS", "Friendship already exists")
	ErrFriendshipsExist   = NewAPIError(KindConflict, "FRIENDSHIPS_EXIST", "Cannot delete user with existing friendships. Unlink all friends first")
	ErrSelfLink           = NewAPIError(KindBadRequest, "SELF_LINK", "Cannot link user to themselves")
	ErrValidation         = NewAPIError(KindValidation, "VALIDATION_FAILED", "Request validation failed")
)

func NewUserNotFound(userID string) *APIError {
	return NewAPIError(KindNotFound, ErrUserNotFound.Code, fmt.Sprintf("User with id %s not found", userID), userID)
}

func NewUsernameTaken(username string) *APIError {
	return NewAPIError(KindConflict, ErrUsernameTaken.Code, fmt.Sprintf("User with username %s already exists", username), username)
}

func NewInvalidInput(details string) *APIError {
	return NewAPIError(KindBadRequest, ErrInvalidInput.Code, ErrInvalidInput.Message, details)
}

func NewValidationError(details string) *APIError {
	return NewAPIError(KindValidation, ErrValidation.Code, ErrValidation.Message, details)
}

// Wrap returns err unchanged when it already is an APIError, otherwise it
// classifies it as internal and keeps the original message as details.
func Wrap(err error, code, message string) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(KindInternal, code, message, err.Error())
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}
