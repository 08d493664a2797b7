package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goOTC/federated"
	"github.com/MrEthical07/goOTC/internal/limiters"
	"github.com/MrEthical07/goOTC/internal/otc"
	"github.com/MrEthical07/goOTC/jwt"
	"github.com/MrEthical07/goOTC/store"
)

func wrap(public, cause error) error {
	if cause == nil || errors.Is(cause, public) {
		return public
	}
	return fmt.Errorf("%w: %v", public, cause)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func limiterScope(err error) string {
	switch {
	case errors.Is(err, limiters.ErrCodeRequestRateLimited):
		return ScopeCodeRequest
	case errors.Is(err, limiters.ErrCodeVerifyRateLimited):
		return ScopeCodeVerify
	default:
		return ScopeAuth
	}
}

func mapLimiterError(err error, errs Errors) error {
	switch {
	case errors.Is(err, limiters.ErrAuthRateLimited),
		errors.Is(err, limiters.ErrCodeRequestRateLimited),
		errors.Is(err, limiters.ErrCodeVerifyRateLimited):
		return wrap(errs.RateLimited, err)
	default:
		return wrap(errs.Internal, err)
	}
}

func mapCodeError(err error, errs Errors) error {
	switch {
	case isContextErr(err):
		return err
	case errors.Is(err, otc.ErrInvalidEmail):
		return wrap(errs.InvalidInput, err)
	case errors.Is(err, otc.ErrCodeExpiredOrAbsent):
		return errs.CodeExpiredOrAbsent
	case errors.Is(err, otc.ErrCodeInvalid):
		return errs.CodeInvalid
	case errors.Is(err, otc.ErrMaxAttempts):
		return errs.MaxAttemptsExceeded
	case errors.Is(err, otc.ErrDeliveryFailed):
		return wrap(errs.DeliveryFailed, err)
	case errors.Is(err, otc.ErrStoreUnavailable):
		return wrap(errs.StorageUnavailable, err)
	default:
		return wrap(errs.Internal, err)
	}
}

func mapAssertionError(err error, errs Errors) error {
	switch {
	case isContextErr(err):
		return err
	case errors.Is(err, federated.ErrEmailMissing):
		return errs.EmailMissing
	case errors.Is(err, federated.ErrKeysUnavailable):
		return wrap(errs.ProviderUnavailable, err)
	default:
		return wrap(errs.InvalidAssertion, err)
	}
}

func mapSessionError(err error, errs Errors) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return errs.SessionExpired
	}
	return errs.SessionInvalid
}

func mapIdentityError(err error, errs Errors) error {
	switch {
	case isContextErr(err):
		return err
	case errors.Is(err, store.ErrNotFound):
		return errs.IdentityNotFound
	case errors.Is(err, store.ErrSubjectTaken):
		return wrap(errs.InvalidAssertion, err)
	default:
		return wrap(errs.StorageUnavailable, err)
	}
}

// failureKind is the short label recorded in audit metadata for verify failures.
func failureKind(err error, errs Errors) string {
	switch {
	case errors.Is(err, errs.CodeExpiredOrAbsent):
		return "expired_or_absent"
	case errors.Is(err, errs.CodeInvalid):
		return "invalid"
	case errors.Is(err, errs.MaxAttemptsExceeded):
		return "max_attempts"
	case errors.Is(err, errs.InvalidInput):
		return "invalid_input"
	case errors.Is(err, errs.StorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
