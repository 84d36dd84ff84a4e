// Package api exposes the HTTP surface: the billing and subscription
// endpoints, the plan catalog, the admin monitoring view, the test
// harness, and the gated product subrouter.
//
// Route layout is deliberate about what sits behind the access gate.
// Billing, status, and harness endpoints are mounted outside it so a
// suspended company can still see why it is blocked and pay its way back
// in; only /api/app/* requires an active subscription.
package api
