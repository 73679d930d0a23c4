package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses and task
// outcomes with a machine-readable reason code.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Configuration (CFG) — surfaced immediately, never retried ----

func ErrNoActiveProvider() *AppError {
	return New("CFG_001", "No active payment provider for this merchant and route", http.StatusUnprocessableEntity)
}

func ErrProviderNotConfigured(provider string) *AppError {
	return New("CFG_002", fmt.Sprintf("Provider %s is not configured", provider), http.StatusUnprocessableEntity)
}

// ---- Payment Business Logic (PAY) — terminal for the attempt ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrChargeDeclined(reason string) *AppError {
	return New("PAY_003", fmt.Sprintf("Charge declined: %s", reason), http.StatusPaymentRequired)
}

func ErrMissingProviderLink() *AppError {
	return New("PAY_004", "Customer has no record at the selected provider", http.StatusUnprocessableEntity)
}

func ErrSubscriptionTerminal() *AppError {
	return New("PAY_005", "Subscription is in a terminal state", http.StatusConflict)
}

// ---- Vault (VLT) ----

func ErrNoPaymentMethod() *AppError {
	return New("VLT_001", "No payment method on file", http.StatusUnprocessableEntity)
}

func ErrTokenizationFailed(err error) *AppError {
	return Wrap("VLT_002", "Payment method tokenization failed", http.StatusBadGateway, err)
}

func ErrVaultPersistence(err error) *AppError {
	return Wrap("VLT_003", "Failed to persist vaulted payment method", http.StatusInternalServerError, err)
}

// ---- Webhooks (HOOK) ----

func ErrMalformedPayload() *AppError {
	return New("HOOK_001", "Malformed webhook payload", http.StatusBadRequest)
}

func ErrInvalidWebhookSignature() *AppError {
	return New("HOOK_002", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrUnknownEventType(eventType string) *AppError {
	return New("HOOK_003", fmt.Sprintf("Unknown event type: %s", eventType), http.StatusOK)
}

// ---- Authentication (AUTH) — admin surface only ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) — transient, retried internally ----

func ErrProviderUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Payment provider unavailable", http.StatusBadGateway, err)
}

// ErrOutcomeUnknown marks a provider call whose response was lost; the
// charge must be reconciled, not assumed failed.
func ErrOutcomeUnknown(err error) *AppError {
	return Wrap("SYS_003", "Provider outcome unknown, pending reconciliation", http.StatusAccepted, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("PAY_001", message, http.StatusBadRequest)
}
