package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/store"
)

// codeRateLimited is returned with 429 responses.
const codeRateLimited = "RATE_LIMITED"

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			// Batch failures first: they unwrap to their causes, which may be other coded errors.
			var batchErr *domainerrors.PartialBatchError
			if errors.As(err, &batchErr) {
				return fromDomainError(batchErr.AsError())
			}

			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return fromDomainError(domainErr)
			}

			var storeErr *store.Error
			if errors.As(err, &storeErr) && storeErr.HTTPCode() == http.StatusNotFound {
				return &APIError{
					status:  http.StatusNotFound,
					Code:    string(domainerrors.CodeNotFound),
					Message: storeErr.Message,
				}
			}
		}

		// Request validation failures from huma carry field details.
		if status == http.StatusUnprocessableEntity {
			return &APIError{
				status:  http.StatusBadRequest,
				Code:    string(domainerrors.CodeValidation),
				Message: message,
				Details: fieldDetails(errs),
			}
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
	}
}

func fromDomainError(err *domainerrors.Error) *APIError {
	return &APIError{
		status:  err.HTTPStatus(),
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}
}

// FieldError is one request validation failure.
type FieldError struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

func fieldDetails(errs []error) []FieldError {
	if len(errs) == 0 {
		return nil
	}
	details := make([]FieldError, 0, len(errs))
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			details = append(details, FieldError{Location: detail.Location, Message: detail.Message})
			continue
		}
		details = append(details, FieldError{Message: err.Error()})
	}
	return details
}

// partialFailure attaches what was applied to a batch failure so clients can
// see both halves of the outcome.
func partialFailure(err error, applied any) error {
	var batchErr *domainerrors.PartialBatchError
	if !errors.As(err, &batchErr) {
		return err
	}
	coded := batchErr.AsError()
	return coded.WithDetails(PartialFailureDetails{
		Failures: coded.Details,
		Applied:  applied,
	})
}

// PartialFailureDetails is the details payload of a PARTIAL_FAILURE response.
type PartialFailureDetails struct {
	Failures any `json:"failures" doc:"Operations that failed"`
	Applied  any `json:"applied,omitempty" doc:"Result of the operations that succeeded"`
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return codeRateLimited
	default:
		return string(domainerrors.CodeInternal)
	}
}
