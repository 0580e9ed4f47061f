// Package subscription keeps a local subscription record consistent with the
// state held by an external billing provider.
//
// The local row is a mirror, the provider is the source of truth. Every
// change follows the same order: validate the transition, call the provider,
// and only after the provider confirmed, write the local row with a
// version-checked update. A failed provider call leaves the row untouched.
//
// # Components
//
//   - Decide: pure decision function. Given the current row and a Transition
//     (Pause, Resume, Cancel, UndoCancel) it returns the next row and the
//     ordered GatewayCalls that must succeed first, or a precondition error.
//   - BillingGateway: the provider I/O boundary. StripeGateway implements it.
//   - Store: persistence with Update(id, patch, expectedVersion) as the
//     concurrency-control primitive. MemoryStore is the in-process version.
//   - Service: user-initiated transitions. Checks the owner role, serializes
//     per owner through a Locker, then applies the decision.
//   - TrialProvisioner: creates the trialing row during signup, inside the
//     caller's transaction.
//   - Reconciler: RunAutoResume lifts pauses whose window ended, with a
//     bounded worker pool and per-item failure isolation.
//
// # Usage
//
//	svc := subscription.NewService(store, gateway, roles,
//		subscription.WithLocker(locker),
//		subscription.WithLogger(log),
//		subscription.WithMetrics(metrics),
//	)
//
//	sub, err := svc.Pause(ctx, actorID, ownerID, 2)
//	switch {
//	case subscription.IsPrecondition(err):
//		// 409, show subscription.PublicMessage(err)
//	case subscription.IsRetryable(err):
//		// 503, try again later
//	}
//
//	rec := subscription.NewReconciler(store, gateway,
//		subscription.WithConcurrency(4),
//		subscription.WithRateLimit(5, 1),
//	)
//	summary, err := rec.RunAutoResume(ctx, time.Now())
//
// # Invariants
//
// Every persisted row satisfies Subscription.Validate: the pause window has
// both bounds or none, a subscription set to cancel is never paused, only
// trialing rows may lack a billing reference, and the paused status always
// comes with a pause window.
//
// # Errors
//
// Precondition errors (ErrAlreadyPaused, ErrNotPaused, ErrNoBillingReference,
// ErrTrialCannotPause, ErrAlreadyCancelling and friends) are returned before any
// I/O. Provider failures wrap ErrGatewayUnavailable and are never retried
// within the same call. ErrDiverged marks the one gap left open: the provider
// changed but the local write failed; the next refresh or reconciliation run
// re-syncs it.
package subscription
