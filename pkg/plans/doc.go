// Package plans provides the billing plan catalog: per-plan pricing, seat
// limits, feature permissions, and the external price references.
//
// Plan definitions live in an in-memory catalog, optionally loaded from a
// YAML file with hot reload. Plans are immutable once referenced by an
// active subscription; only the Stripe price references are editable, and
// those are persisted in PostgreSQL.
package plans
