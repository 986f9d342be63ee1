package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ClaimsErrorBadInput           = "CLAIMS_BAD_INPUT"
	ClaimsErrorNotFound           = "CLAIMS_NOT_FOUND"
	ClaimsErrorConflict           = "CLAIMS_CONFLICT"
	ClaimsErrorUnauthorized       = "CLAIMS_UNAUTHORIZED"
	ClaimsErrorForbidden          = "CLAIMS_FORBIDDEN"
	ClaimsErrorRateLimited        = "CLAIMS_RATE_LIMITED"
	ClaimsErrorStorageUnavailable = "CLAIMS_STORAGE_UNAVAILABLE"
	ClaimsErrorCounterViolation   = "CLAIMS_COUNTER_VIOLATION"
	ClaimsErrorOperationFailed    = "CLAIMS_OPERATION_FAILED"
	ClaimsErrorExternalFailure    = "CLAIMS_EXTERNAL_FAILURE"
	ClaimsErrorInternal           = "CLAIMS_INTERNAL_ERROR"
)

func claimsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureClaimsErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrStorageUnavailable):
		return newClaimsError(err.Error(), goerrors.CategoryExternal, ClaimsErrorStorageUnavailable).
			WithCode(http.StatusServiceUnavailable)
	case errors.Is(err, ErrCounterViolation):
		return newClaimsError(err.Error(), goerrors.CategoryInternal, ClaimsErrorCounterViolation)
	case errors.Is(err, ErrClaimNotFound):
		return newClaimsError(err.Error(), goerrors.CategoryNotFound, ClaimsErrorNotFound)
	case errors.Is(err, ErrInvalidSubmission):
		return newClaimsError(err.Error(), goerrors.CategoryBadInput, ClaimsErrorBadInput)
	case errors.Is(err, ErrInvalidClaimTransition):
		return newClaimsError(err.Error(), goerrors.CategoryConflict, ClaimsErrorConflict)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newClaimsError(err.Error(), goerrors.CategoryRateLimit, ClaimsErrorRateLimited)
	case strings.Contains(msg, "not found"):
		return newClaimsError(err.Error(), goerrors.CategoryNotFound, ClaimsErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newClaimsError(err.Error(), goerrors.CategoryBadInput, ClaimsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureClaimsErrorEnvelope(mapped)
}

func newClaimsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureClaimsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureClaimsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = claimsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultClaimsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultClaimsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ClaimsErrorBadInput
	case goerrors.CategoryNotFound:
		return ClaimsErrorNotFound
	case goerrors.CategoryAuth:
		return ClaimsErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ClaimsErrorForbidden
	case goerrors.CategoryConflict:
		return ClaimsErrorConflict
	case goerrors.CategoryRateLimit:
		return ClaimsErrorRateLimited
	case goerrors.CategoryExternal:
		return ClaimsErrorExternalFailure
	case goerrors.CategoryOperation:
		return ClaimsErrorOperationFailed
	default:
		return ClaimsErrorInternal
	}
}

func claimsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
