// Package billing wires the subscription lifecycle to its production
// infrastructure: the Postgres store and its embedded migrations, the JSON
// HTTP API, transactional trial onboarding, the audit trail and the
// "subscription resumed" email.
//
// Routes served by Handler.Routes:
//
//	GET  /owners/{ownerID}/subscription
//	POST /owners/{ownerID}/subscription/refresh
//	POST /owners/{ownerID}/subscription/pause        {"months": 1..3}
//	POST /owners/{ownerID}/subscription/resume
//	POST /owners/{ownerID}/subscription/cancel
//	POST /owners/{ownerID}/subscription/undo-cancel
//	GET  /owners/{ownerID}/subscription/upcoming-invoice
//	GET  /owners/{ownerID}/subscription/history?limit=N
//	POST /ops/reconcile                              (bearer OPS_TOKEN)
//	POST /ops/owners/{ownerID}/trial                 (bearer OPS_TOKEN)
//
// Owner routes expect the authenticated user id in the X-Actor-ID header,
// set by the upstream gateway.
package billing
