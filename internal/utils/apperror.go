package utils

import "net/http"

// ErrorCode is the machine-readable discriminator clients branch on.
type ErrorCode string

const (
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeNotFound             ErrorCode = "not_found"
	CodePreconditionFailed   ErrorCode = "precondition_failed"
	CodeProviderUnconfigured ErrorCode = "image_service_unconfigured"
	CodeBudgetExceeded       ErrorCode = "budget_exceeded"
	CodeFinalizeLimit        ErrorCode = "finalize_limit"
	CodeInvalidSelection     ErrorCode = "invalid_selection"
	CodeGenerationFailed     ErrorCode = "image_generation_failed"
	CodeRateLimited          ErrorCode = "rate_limited"
)

// AppError carries a code, an HTTP status and a short remediation hint.
// Budget rejections and selection rejections intentionally use different
// codes: the user fixes one by waiting for next month and the other by
// selecting fewer images.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Status  int       `json:"-"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NewAppError(code ErrorCode, status int, message, hint string) *AppError {
	return &AppError{Code: code, Status: status, Message: message, Hint: hint}
}

func ErrUnauthorized() *AppError {
	return NewAppError(CodeUnauthorized, http.StatusUnauthorized, "Unauthorized", "")
}

func ErrNotFound(what string) *AppError {
	return NewAppError(CodeNotFound, http.StatusNotFound, what+" not found", "")
}

func ErrPrecondition(message, hint string) *AppError {
	return NewAppError(CodePreconditionFailed, http.StatusBadRequest, message, hint)
}

func ErrProviderUnconfigured() *AppError {
	return NewAppError(CodeProviderUnconfigured, http.StatusServiceUnavailable,
		"Image generation is not configured.",
		"Add REPLICATE_API_TOKEN to environment variables.")
}

func ErrBudgetExceeded(message string) *AppError {
	return NewAppError(CodeBudgetExceeded, http.StatusTooManyRequests, message,
		"Wait for the next month or raise the monthly cap.")
}

func ErrFinalizeLimit(message string) *AppError {
	return NewAppError(CodeFinalizeLimit, http.StatusBadRequest, message,
		"Select fewer images.")
}

func ErrInvalidSelection(message string) *AppError {
	return NewAppError(CodeInvalidSelection, http.StatusBadRequest, message,
		"Pick existing candidate images of this post, without duplicates.")
}

func ErrGenerationFailed(message string, rateLimited bool) *AppError {
	code := CodeGenerationFailed
	hint := "Check the provider token and storage bucket, then retry."
	if rateLimited {
		code = CodeRateLimited
		hint = "Provider rate limit reached. Add credit or wait a minute and try again."
	}
	return NewAppError(code, http.StatusInternalServerError, message, hint)
}
