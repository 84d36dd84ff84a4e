package billing

import (
	"time"

	"github.com/agendly/agendly/pkg/companies"
)

// deniedStatuses are the normalized states that force access denial
var deniedStatuses = map[NormalizedStatus]bool{
	StatusCanceled:          true,
	StatusIncomplete:        true,
	StatusIncompleteExpired: true,
	StatusUnpaid:            true,
}

// Resolve derives the normalized subscription status and the access-gate
// decision from the persisted company state and an optional
// processor-reported status.
//
// Local state is authoritative for hard denial: a suspended company is
// denied regardless of what the processor reports, so the admin test
// harness can force denial with no processor configured. The external
// status is authoritative for the informational status only, with past_due
// and unpaid treated as a grace period unless the company is locally
// suspended.
//
// Resolve is a pure function of its inputs and the clock; it performs no
// I/O.
func Resolve(company *companies.Company, externalStatus string) Resolution {
	return resolveAt(company, externalStatus, time.Now())
}

func resolveAt(company *companies.Company, externalStatus string, now time.Time) Resolution {
	onTrial := company.OnTrial(now)
	status := normalize(company, externalStatus, onTrial)

	isActive := !company.Suspended() && !deniedStatuses[status]

	return Resolution{
		IsActive:  isActive,
		Status:    status,
		IsOnTrial: onTrial,
	}
}

// normalize maps the processor vocabulary onto NormalizedStatus. First
// match wins; unrecognized or absent external values fall back to the
// locally persisted state.
func normalize(company *companies.Company, externalStatus string, onTrial bool) NormalizedStatus {
	switch externalStatus {
	case "":
		return localStatus(company, onTrial)
	case "active":
		if company.Suspended() {
			return StatusUnpaid
		}
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due", "unpaid":
		// Processor-reported non-payment is a grace period, not a hard
		// gate. Only a local suspension escalates it to unpaid, which is
		// in the denial set.
		if company.Suspended() {
			return StatusUnpaid
		}
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	case "incomplete":
		return StatusIncomplete
	case "incomplete_expired":
		return StatusIncompleteExpired
	default:
		return localStatus(company, onTrial)
	}
}

func localStatus(company *companies.Company, onTrial bool) NormalizedStatus {
	if company.Suspended() {
		return StatusUnpaid
	}
	if onTrial {
		return StatusTrialing
	}
	return StatusActive
}
