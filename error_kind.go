package goOTC

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind is the machine-readable class of an Engine error.
type ErrorKind string

const (
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindCodeExpiredOrAbsent ErrorKind = "CODE_EXPIRED_OR_ABSENT"
	KindCodeInvalid         ErrorKind = "CODE_INVALID"
	KindMaxAttemptsExceeded ErrorKind = "MAX_ATTEMPTS_EXCEEDED"
	KindInvalidAssertion    ErrorKind = "INVALID_ASSERTION"
	KindEmailMissing        ErrorKind = "EMAIL_MISSING"
	KindSessionExpired      ErrorKind = "SESSION_EXPIRED"
	KindSessionInvalid      ErrorKind = "SESSION_INVALID"
	KindSessionMissing      ErrorKind = "SESSION_MISSING"
	KindDeliveryError       ErrorKind = "DELIVERY_ERROR"
	KindStorageUnavailable  ErrorKind = "STORAGE_UNAVAILABLE"
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindIdentityNotFound    ErrorKind = "IDENTITY_NOT_FOUND"
	KindInternal            ErrorKind = "INTERNAL_ERROR"
)

type kindInfo struct {
	err     error
	kind    ErrorKind
	status  int
	message string
}

// kinds is ordered; the first match wins.
var kinds = []kindInfo{
	{ErrRateLimited, KindRateLimited, http.StatusTooManyRequests, "Too many requests"},
	{ErrInvalidInput, KindInvalidInput, http.StatusBadRequest, "Validation failed"},
	{ErrCodeExpiredOrAbsent, KindCodeExpiredOrAbsent, http.StatusBadRequest, "Code expired or not found"},
	{ErrCodeInvalid, KindCodeInvalid, http.StatusBadRequest, "Invalid code"},
	{ErrMaxAttemptsExceeded, KindMaxAttemptsExceeded, http.StatusBadRequest, "Too many failed attempts. Please request a new code."},
	{ErrInvalidAssertion, KindInvalidAssertion, http.StatusBadRequest, "Invalid identity token"},
	{ErrEmailMissing, KindEmailMissing, http.StatusBadRequest, "Email not provided by identity provider"},
	{ErrSessionExpired, KindSessionExpired, http.StatusUnauthorized, "Token expired"},
	{ErrSessionInvalid, KindSessionInvalid, http.StatusUnauthorized, "Invalid token"},
	{ErrSessionMissing, KindSessionMissing, http.StatusUnauthorized, "Access token required"},
	{ErrIdentityNotFound, KindIdentityNotFound, http.StatusNotFound, "User not found"},
	{ErrDeliveryFailed, KindDeliveryError, http.StatusInternalServerError, "Failed to send code"},
	{ErrStorageUnavailable, KindStorageUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{ErrProviderUnavailable, KindInternal, http.StatusServiceUnavailable, "Identity provider unavailable"},
	{ErrFederatedDisabled, KindInternal, http.StatusNotImplemented, "Federated login not configured"},
}

var internalKind = kindInfo{ErrInternal, KindInternal, http.StatusInternalServerError, "Internal server error"}

func classify(err error) kindInfo {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k
		}
	}
	return internalKind
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return classify(err).kind
}

// MessageOf returns a stable message safe to show to clients. Wrapped
// backend detail is never included.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	return classify(err).message
}

// HTTPStatus maps err to a response status. Context cancellation and
// deadlines map to 408.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}
	return classify(err).status
}
