// Package sandbox starts and tears down isolated execution environments.
package sandbox

import (
	"context"
	"io"
	"time"

	"runbox/internal/exec/spec"
)

// Handle exposes one live sandbox phase. Exactly one handle exists per phase
// and it is never reused across phases or requests.
type Handle interface {
	// ID is unique per launch.
	ID() string
	StartedAt() time.Time

	Stdout() io.Reader
	Stderr() io.Reader
	Stdin() io.WriteCloser

	// Wait blocks until the client process exits and returns its exit code.
	// It must be called exactly once, after the stdio streams are drained.
	Wait() (int, error)

	// Terminate forcibly ends the whole sandboxed process group and removes
	// the environment. Safe to call multiple times and after natural exit.
	Terminate()
}

// Launcher creates one sandbox per phase with the full security and resource
// policy applied.
type Launcher interface {
	Launch(ctx context.Context, ls spec.LaunchSpec) (Handle, error)
}
