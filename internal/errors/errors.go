package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidAmount is returned when a donation amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrProjectNotFound is returned when a project is missing or not accepting donations.
	ErrProjectNotFound = errors.New("project not found")
	// ErrStorageConflict is returned when the ledger transaction was aborted by the store.
	ErrStorageConflict = errors.New("storage conflict")
	// ErrInvalidTargetAmount is returned when a project target is not positive.
	ErrInvalidTargetAmount = errors.New("target amount must be positive")
	// ErrProjectHasDonations is returned when deleting a project that already received donations.
	ErrProjectHasDonations = errors.New("cannot delete project with donations")
	// ErrUserNotFound is returned when a user lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when registering an email twice.
	ErrUserAlreadyExists = errors.New("email already registered")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInactiveAccount is returned when an inactive user tries to sign in or act.
	ErrInactiveAccount = errors.New("inactive user")
	// ErrMessageTooLong is returned when a donation message exceeds the stored length.
	ErrMessageTooLong = errors.New("donation message too long")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidAmount.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrProjectNotFound):
		return NewHTTPError(http.StatusNotFound, ErrProjectNotFound.Error(), "PROJECT_NOT_FOUND")
	case errors.Is(err, ErrStorageConflict):
		return NewHTTPError(http.StatusConflict, "donation could not be recorded, try again", "STORAGE_CONFLICT")
	case errors.Is(err, ErrInvalidTargetAmount):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidTargetAmount.Error(), "INVALID_TARGET_AMOUNT")
	case errors.Is(err, ErrProjectHasDonations):
		return NewHTTPError(http.StatusConflict, ErrProjectHasDonations.Error(), "PROJECT_HAS_DONATIONS")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrUserAlreadyExists):
		return NewHTTPError(http.StatusConflict, ErrUserAlreadyExists.Error(), "USER_ALREADY_EXISTS")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInactiveAccount):
		return NewHTTPError(http.StatusBadRequest, ErrInactiveAccount.Error(), "INACTIVE_ACCOUNT")
	case errors.Is(err, ErrMessageTooLong):
		return NewHTTPError(http.StatusBadRequest, ErrMessageTooLong.Error(), "MESSAGE_TOO_LONG")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
