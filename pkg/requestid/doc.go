// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware accepts a client supplied X-Request-ID when it is short and made
// of [a-zA-Z0-9_-], otherwise it generates a UUID. The id is stored in the
// request context, echoed in the response header and picked up by the logger
// through LogExtractor.
package requestid
