// Package postgres provides the PostgreSQL and Redis connection setup and
// the idempotent schema bootstrap used by the server on startup.
package postgres
