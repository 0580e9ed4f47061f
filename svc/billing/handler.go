package billing

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/audit"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// ActorHeader carries the authenticated user id set by the upstream gateway.
const ActorHeader = "X-Actor-ID"

// AutoResumer runs one auto-resume pass.
type AutoResumer interface {
	RunAutoResume(ctx context.Context, now time.Time) (subscription.Summary, error)
}

// Handler exposes the subscription lifecycle over HTTP.
type Handler struct {
	svc       subscription.Service
	resumer   AutoResumer
	onboarder Onboarder
	history   HistoryReader
	opsToken  string
	now       func() time.Time
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAutoResumer mounts POST /ops/reconcile.
func WithAutoResumer(r AutoResumer) HandlerOption {
	return func(h *Handler) { h.resumer = r }
}

// WithOnboarder mounts POST /ops/owners/{ownerID}/trial.
func WithOnboarder(o Onboarder) HandlerOption {
	return func(h *Handler) { h.onboarder = o }
}

// WithHistory mounts GET /owners/{ownerID}/subscription/history.
func WithHistory(r HistoryReader) HandlerOption {
	return func(h *Handler) { h.history = r }
}

// WithOpsToken sets the bearer token guarding /ops routes.
// Without a token the ops routes are not mounted.
func WithOpsToken(token string) HandlerOption {
	return func(h *Handler) { h.opsToken = token }
}

func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler panics if svc is nil.
func NewHandler(svc subscription.Service, opts ...HandlerOption) *Handler {
	if svc == nil {
		panic("billing: subscription.Service is required")
	}
	h := &Handler{
		svc:    svc,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("billing_api"))
	return h
}

// Routes returns the router. Mount it under any prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/owners/{ownerID}/subscription", func(r chi.Router) {
		r.Use(h.requireActor)
		r.Get("/", h.get)
		r.Post("/refresh", h.refresh)
		r.Post("/pause", h.pause)
		r.Post("/resume", h.resume)
		r.Post("/cancel", h.cancel)
		r.Post("/undo-cancel", h.undoCancel)
		r.Get("/upcoming-invoice", h.upcomingInvoice)
		if h.history != nil {
			r.Get("/history", h.listHistory)
		}
	})

	if h.opsToken != "" {
		r.Route("/ops", func(r chi.Router) {
			r.Use(h.requireOpsToken)
			if h.resumer != nil {
				r.Post("/reconcile", h.reconcile)
			}
			if h.onboarder != nil {
				r.Post("/owners/{ownerID}/trial", h.provisionTrial)
			}
		})
	}

	return r
}

// requireActor puts the caller's id into the request context.
func (h *Handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.Parse(r.Header.Get(ActorHeader))
		if err != nil || actorID == uuid.Nil {
			respondError(w, r, h.logger, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(subscription.WithActorID(r.Context(), actorID)))
	})
}

func (h *Handler) requireOpsToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.opsToken)) != 1 {
			respondError(w, r, h.logger, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type lifecycleFunc func(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error)

// lifecycle adapts a Service method to an HTTP handler.
func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, fn lifecycleFunc) {
	ownerID, err := ownerFromPath(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	actorID, _ := subscription.ActorIDFromContext(r.Context())

	sub, err := fn(r.Context(), actorID, ownerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, newSubscriptionView(sub, h.now()))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Get)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Refresh)
}

type pauseRequest struct {
	Months int `json:"months"`
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		respondError(w, r, h.logger, errBadRequest)
		return
	}
	h.lifecycle(w, r, func(ctx context.Context, actorID, ownerID uuid.UUID) (*subscription.Subscription, error) {
		return h.svc.Pause(ctx, actorID, ownerID, req.Months)
	})
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Resume)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Cancel)
}

func (h *Handler) undoCancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.UndoCancel)
}

func (h *Handler) upcomingInvoice(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFromPath(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	actorID, _ := subscription.ActorIDFromContext(r.Context())

	inv, err := h.svc.UpcomingInvoice(r.Context(), actorID, ownerID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, invoiceView{
		Amount:    inv.AmountDue.Amount,
		Currency:  inv.AmountDue.Currency,
		PeriodEnd: inv.PeriodEnd,
	})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFromPath(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	actorID, _ := subscription.ActorIDFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			respondError(w, r, h.logger, errBadRequest)
			return
		}
	}

	events, err := h.history.History(r.Context(), actorID, ownerID, limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respond(w, events)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.resumer.RunAutoResume(r.Context(), h.now())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, summary)
}

type trialRequest struct {
	Plan  string `json:"plan"`
	Email string `json:"billing_email"`
}

func (h *Handler) provisionTrial(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFromPath(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req trialRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			respondError(w, r, h.logger, errBadRequest)
			return
		}
	}

	sub, err := h.onboarder.Onboard(r.Context(), ownerID, req.Plan, req.Email)
	if errors.Is(err, subscription.ErrPlanNotFound) {
		err = errUnknownPlan
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: newSubscriptionView(sub, h.now())})
}

func ownerFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		return uuid.Nil, errBadRequest
	}
	return id, nil
}
