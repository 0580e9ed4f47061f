// Package audit records who changed what, and with which outcome.
//
// A Logger builds events from the request context (actor and request id are
// pulled through extractor functions) and hands them to a Storage. The
// billing service stores events in Postgres; MemoryStorage backs tests and
// single-process setups.
//
//	auditLog := audit.NewLogger(storage,
//		audit.WithActorExtractor(func(ctx context.Context) (uuid.UUID, bool) {
//			return subscription.ActorIDFromContext(ctx)
//		}),
//		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
//			id := requestid.FromContext(ctx)
//			return id, id != ""
//		}),
//	)
//
//	_ = auditLog.Log(ctx, "subscription.pause",
//		audit.WithOwner(ownerID),
//		audit.WithResource("subscription", sub.ID.String()),
//		audit.WithMetadata("months", 2),
//	)
//
// Events are ordered newest first when queried.
package audit
