// Package middleware provides the HTTP middleware chain: request
// correlation, company context extraction, and subscription access gating.
package middleware
