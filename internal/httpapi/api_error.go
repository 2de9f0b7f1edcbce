package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/subhub-go/internal/fetch"
	"github.com/John-Robertt/subhub-go/internal/link"
	"github.com/John-Robertt/subhub-go/internal/model"
	"github.com/John-Robertt/subhub-go/internal/store"
	"github.com/John-Robertt/subhub-go/internal/subscription"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

func notFoundError(message string) error {
	return apiError(http.StatusNotFound, model.AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Stage:   "lookup",
	}, nil)
}

// errorFromErr maps err to the status and payload sent to the client.
func errorFromErr(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.Status, fe.AppError
	}

	var be *subscription.BuildError
	if errors.As(err, &be) {
		return be.Status, be.AppError
	}

	// Parse errors are user content errors => 422.
	var pe *link.ParseError
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity, pe.AppError
	}

	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, model.AppError{
			Code:    "NOT_FOUND",
			Message: "资源不存在",
			Stage:   "lookup",
			Hint:    err.Error(),
		}
	}

	var se *store.StoreError
	if errors.As(err, &se) {
		return http.StatusInternalServerError, se.AppError
	}

	// Fallback: internal bug.
	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, app := errorFromErr(err)
	WriteError(w, status, app)
}
