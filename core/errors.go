package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput           = "REPOLEAD_BAD_INPUT"
	ServiceErrorLeadNotFound       = "REPOLEAD_LEAD_NOT_FOUND"
	ServiceErrorIngestionNotFound  = "REPOLEAD_INGESTION_NOT_FOUND"
	ServiceErrorDeliveryNotFound   = "REPOLEAD_DELIVERY_NOT_FOUND"
	ServiceErrorDestinationUnknown = "REPOLEAD_DESTINATION_NOT_FOUND"
	ServiceErrorMergeFailed        = "REPOLEAD_MERGE_FAILED"
	ServiceErrorInternal           = "REPOLEAD_INTERNAL_ERROR"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func ServiceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "lead not found"):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorLeadNotFound)
	case strings.Contains(msg, "ingestion not found"):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorIngestionNotFound)
	case strings.Contains(msg, "delivery not found"):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorDeliveryNotFound)
	case strings.Contains(msg, "destination not found"):
		return newServiceError(err, goerrors.CategoryNotFound, ServiceErrorDestinationUnknown)
	case strings.Contains(msg, "no target lead"):
		return newServiceError(err, goerrors.CategoryOperation, ServiceErrorMergeFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err, goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

// newServiceError wraps the cause so errors.Is still reaches the domain
// sentinel through the envelope.
func newServiceError(cause error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.Wrap(cause, category, cause.Error()).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorLeadNotFound
	case goerrors.CategoryOperation:
		return ServiceErrorMergeFailed
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
