package spell

import "errors"

var (
	// ErrMisconfigured means the spell template lacks a capability the pool
	// needs to build projectiles. Acquisition is aborted for the call.
	ErrMisconfigured = errors.New("spell template misconfigured")

	// ErrExhausted means the pool is saturated, cannot grow and has no
	// active projectile to evict.
	ErrExhausted = errors.New("spell pool exhausted")

	// ErrInvalidPose is returned when a projectile is activated with a
	// non-finite position or a degenerate rotation.
	ErrInvalidPose = errors.New("invalid projectile pose")

	// ErrClosed is returned by Acquire after Shutdown.
	ErrClosed = errors.New("spell pool closed")
)
