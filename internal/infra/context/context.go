// Package context carries request-scoped values used across transports and services.
package context

type contextKey string
