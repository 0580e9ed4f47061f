// Package httpserver runs an http.Handler until its context is cancelled
// and exposes liveness and readiness handlers.
package httpserver
