// Package email sends transactional emails. PostmarkClient delivers through
// Postmark, DevSender stores messages on disk for local development.
// Both validate SendEmailParams before doing any I/O.
package email
