package subscription

import "errors"

var (
	ErrAlreadyPaused        = errors.New("subscription is already paused")
	ErrNotPaused            = errors.New("subscription is not paused")
	ErrNoBillingReference   = errors.New("subscription has no billing account")
	ErrTrialCannotPause     = errors.New("trial subscription cannot be paused")
	ErrAlreadyCancelling    = errors.New("subscription is already set to cancel at period end")
	ErrNotCancelling        = errors.New("subscription is not set to cancel")
	ErrNotActive            = errors.New("subscription is not active")
	ErrInvalidPauseDuration = errors.New("pause duration must be between 1 and 3 months")
	ErrUnknownTransition    = errors.New("unknown subscription transition")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrVersionConflict           = errors.New("subscription was modified concurrently")
	ErrInvariantViolation        = errors.New("subscription invariant violated")

	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrForbidden           = errors.New("actor is not allowed to manage this subscription")
	ErrOwnerBusy           = errors.New("another operation is in progress for this subscription")
	ErrGatewayUnavailable  = errors.New("billing provider is unavailable")
	ErrDiverged            = errors.New("subscription diverged from billing provider")
	ErrReconcileInProgress = errors.New("auto-resume reconciliation is already running")
	ErrLockNotHeld         = errors.New("lock is not held")

	// Provider-specific errors
	ErrMissingAPIKey             = errors.New("billing provider API key is required")
	ErrProviderNotFound          = errors.New("billing provider object not found")
	ErrMissingProviderCustomerID = errors.New("provider customer ID not available")
)

var preconditionErrors = []error{
	ErrAlreadyPaused,
	ErrNotPaused,
	ErrNoBillingReference,
	ErrTrialCannotPause,
	ErrAlreadyCancelling,
	ErrNotCancelling,
	ErrNotActive,
	ErrInvalidPauseDuration,
}

// IsPrecondition reports whether err is a rejected transition.
// Such errors are client errors and must not be retried.
func IsPrecondition(err error) bool {
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the same call may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrOwnerBusy)
}

// PublicMessage returns the message safe to show to end users.
// Provider details never leak through it.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsPrecondition(err):
		for _, target := range preconditionErrors {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrSubscriptionNotFound):
		return ErrSubscriptionNotFound.Error()
	case errors.Is(err, ErrSubscriptionAlreadyExists):
		return ErrSubscriptionAlreadyExists.Error()
	case IsRetryable(err), errors.Is(err, ErrDiverged):
		return "billing provider is unavailable, try again later"
	}
	return "internal error"
}
