// Package constants defines magic numbers and default values used throughout httpcore.
package constants

import "time"

// Connection timeouts and limits.
const (
	// DefaultConnDeadline is the wall-clock budget for one full request/
	// response exchange: headers, body, and dispatch.
	DefaultConnDeadline = 5 * time.Second

	// DirtyBodyDivisor shrinks the connection deadline for a body with no
	// Content-Length and no chunked encoding (the "dirty body" case).
	DirtyBodyDivisor = 5

	// ShutdownDrainTimeout bounds how long Server.Shutdown waits for
	// in-flight connections before returning.
	ShutdownDrainTimeout = 10 * time.Second
)

// HTTP limits.
const (
	// MaxHeaderBytes caps the headers section read in Phase A, independent
	// of any per-vhost client_body_size (which only bounds the body).
	MaxHeaderBytes = 64 * 1024

	// MaxContentLength guards against a pathological Content-Length value
	// before it is ever compared to a config's client_body_size.
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// Buffer limits.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB, passed to pkg/buffer
)

// Session defaults.
const (
	DefaultSessionTTL       = 30 * time.Minute
	DefaultSessionSweepTick = time.Minute
)
