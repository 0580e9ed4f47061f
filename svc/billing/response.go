package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// envelope is the body of every API response.
type envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiError is a failure that maps to a fixed status and code.
type apiError struct {
	Status int
	Code   string
}

func (e apiError) Error() string {
	return e.Code
}

var (
	errBadRequest   = apiError{Status: http.StatusBadRequest, Code: "bad_request"}
	errUnauthorized = apiError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	errUnknownPlan  = apiError{Status: http.StatusUnprocessableEntity, Code: "unknown_plan"}
)

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// respondError maps err onto a status code and a message safe for clients.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := classify(err)

	message := subscription.PublicMessage(err)
	var apiErr apiError
	if errors.As(err, &apiErr) {
		message = http.StatusText(apiErr.Status)
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", logger.Error(err), slog.String("path", r.URL.Path))
	}
	writeJSON(w, status, envelope{Error: &errorDetail{Code: code, Message: message}})
}

func classify(err error) (int, string) {
	var apiErr apiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Code
	case errors.Is(err, subscription.ErrInvalidPauseDuration):
		return http.StatusUnprocessableEntity, "invalid_pause_duration"
	case subscription.IsPrecondition(err):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, subscription.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, subscription.ErrSubscriptionAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, subscription.ErrReconcileInProgress):
		return http.StatusConflict, "reconcile_in_progress"
	case subscription.IsRetryable(err), errors.Is(err, subscription.ErrDiverged):
		return http.StatusServiceUnavailable, "provider_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

type subscriptionView struct {
	ID                 uuid.UUID  `json:"id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	TrialDaysRemaining int        `json:"trial_days_remaining,omitempty"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	PauseEndsAt        *time.Time `json:"pause_ends_at,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	Version            int64      `json:"version"`
}

func newSubscriptionView(s *subscription.Subscription, now time.Time) subscriptionView {
	v := subscriptionView{
		ID:                 s.ID,
		OwnerID:            s.OwnerID,
		PlanID:             s.PlanID,
		Status:             s.Status.String(),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		TrialEndsAt:        s.TrialEndsAt,
		PausedAt:           s.PausedAt,
		PauseEndsAt:        s.PauseEndsAt,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		Version:            s.Version,
	}
	if s.IsTrialing() {
		v.TrialDaysRemaining = s.TrialDaysRemainingAt(now)
	}
	return v
}

type invoiceView struct {
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	PeriodEnd time.Time `json:"period_end"`
}
