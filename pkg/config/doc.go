// Package config loads application configuration from AGENDLY_-prefixed
// environment variables and validates it on startup.
//
// A missing AGENDLY_STRIPE_SECRET_KEY is not an error: it switches the
// billing engine into demo mode, where upgrades are simulated without a
// payment processor.
package config
