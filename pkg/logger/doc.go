// Package logger builds the service's *slog.Logger.
//
// New applies functional options (format, level, static attributes, per
// environment defaults) and wraps the handler with LogHandlerDecorator, which
// runs ContextExtractor callbacks on every record so request-scoped values such
// as the request id or the acting user end up in the log line without being
// passed around explicitly.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "billingd"),
//	    logger.WithContextExtractors(requestid.LogExtractor, subscription.ActorIDExtractor),
//	)
//	log.InfoContext(ctx, "subscription paused",
//	    logger.OwnerID(ownerID),
//	    logger.Transition("pause"),
//	)
//
// Attribute helpers in attr.go keep key names consistent. Helpers taking an
// error or id return an empty slog.Attr for nil values, so they can be passed
// unconditionally.
package logger
