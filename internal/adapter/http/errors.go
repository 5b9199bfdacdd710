package http

import (
	"errors"
	"net/http"

	"github.com/neomorfeo/wedlock/internal/domain"
)

const genericFailure = "Something went wrong. Please try again."

// APIError is the error body every signup endpoint returns. Message is
// always safe to show to the user.
type APIError struct {
	Status  int    `json:"-"`
	Err     string `json:"error" doc:"Short error label"`
	Field   string `json:"field,omitempty" doc:"Request field the error refers to"`
	Message string `json:"message" doc:"Human readable explanation"`
}

func (e *APIError) Error() string { return e.Message }

// GetStatus lets huma pick the response status.
func (e *APIError) GetStatus() int { return e.Status }

// toAPIError translates domain errors to API errors. Anything not
// recognized becomes a generic 500 so internals never leak.
func toAPIError(err error) *APIError {
	// Checked first: it unwraps to the conflict that triggered it.
	var compErr *domain.CompensationError
	if errors.As(err, &compErr) {
		return internalError()
	}

	var fieldErr *domain.FieldError
	if errors.As(err, &fieldErr) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Err:     "Invalid input",
			Field:   fieldErr.Field,
			Message: fieldErr.Message,
		}
	}

	var conflict *domain.SlugConflictError
	if errors.As(err, &conflict) {
		if conflict.Permanent() {
			return &APIError{
				Status:  http.StatusBadRequest,
				Err:     "Slug taken",
				Field:   "slug",
				Message: "This site address is already taken. Please choose another one.",
			}
		}
		return &APIError{
			Status:  http.StatusConflict,
			Err:     "Slug reserved",
			Field:   "slug",
			Message: "This site address is being claimed by another signup. Please choose another one or try again later.",
		}
	}

	if errors.Is(err, domain.ErrNotConfigured) {
		return &APIError{
			Status:  http.StatusServiceUnavailable,
			Err:     "Service unavailable",
			Message: "Signups are temporarily unavailable. Please try again later.",
		}
	}

	if errors.Is(err, domain.ErrWeddingNotFound) || errors.Is(err, domain.ErrReservationNotFound) {
		return &APIError{Status: http.StatusNotFound, Err: "Not found", Message: "Not found"}
	}

	return internalError()
}

func internalError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Err:     "Internal error",
		Message: genericFailure,
	}
}
