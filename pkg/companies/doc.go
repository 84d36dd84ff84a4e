// Package companies manages persisted tenant state: the gating fields
// (is_active, plan_status) and the informational snapshot of the payment
// processor's subscription view.
//
// The gating fields are written only through SetPlanStatus, a single
// atomic UPDATE shared by the webhook confirmation path and the admin test
// harness. The snapshot is written only through UpdateExternalSnapshot,
// which never touches the gating fields.
package companies
