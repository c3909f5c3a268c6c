// Package runner executes one sandbox phase and enforces its time and output
// bounds while the process runs.
package runner

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"runbox/internal/exec/profile"
	"runbox/internal/exec/result"
	"runbox/internal/exec/sandbox"
	"runbox/internal/exec/spec"
	appErr "runbox/pkg/errors"
	"runbox/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultOutputGrace = 500 * time.Millisecond

// PhaseRequest describes one compile or run phase.
type PhaseRequest struct {
	RequestID      string
	Phase          spec.Phase
	Profile        profile.LanguageProfile
	WorkDir        string
	Stdin          string
	BudgetMs       int64
	MaxOutputBytes int64
	Limits         spec.ResourceLimits
}

// PhaseRunner launches a sandbox for a phase and supervises it: the child's
// natural exit, the wall-clock timer, and the output-cap watcher race, and
// the first to fire wins. Teardown is guaranteed on every exit path.
type PhaseRunner struct {
	launcher    sandbox.Launcher
	outputGrace time.Duration
}

// New creates a phase runner on top of a launcher.
func New(launcher sandbox.Launcher) *PhaseRunner {
	return &PhaseRunner{launcher: launcher, outputGrace: defaultOutputGrace}
}

// NewWithGrace creates a runner with a custom post-cap grace period.
func NewWithGrace(launcher sandbox.Launcher, grace time.Duration) *PhaseRunner {
	if grace <= 0 {
		grace = defaultOutputGrace
	}
	return &PhaseRunner{launcher: launcher, outputGrace: grace}
}

// Execute runs one phase to completion. The returned error is non-nil only
// for infrastructure faults; compile failures, runtime failures and timeouts
// are reported through the PhaseOutput.
func (r *PhaseRunner) Execute(ctx context.Context, req PhaseRequest) (result.PhaseOutput, error) {
	tpl := req.Profile.RunCmdTpl
	if req.Phase == spec.PhaseCompile {
		tpl = req.Profile.CompileCmdTpl
	}
	cmd, err := buildCommand(tpl, req.Profile)
	if err != nil {
		return result.PhaseOutput{}, err
	}

	handle, err := r.launcher.Launch(ctx, spec.LaunchSpec{
		RequestID: req.RequestID,
		Phase:     req.Phase,
		Image:     req.Profile.ImageRef,
		Cmd:       cmd,
		Env:       req.Profile.Env,
		WorkDir:   req.WorkDir,
		Limits:    req.Limits,
	})
	if err != nil {
		return result.PhaseOutput{}, err
	}
	defer handle.Terminate()

	go feedStdin(ctx, handle, req.Stdin)

	stdoutCap := newCappedStream(req.MaxOutputBytes)
	stderrCap := newCappedStream(req.MaxOutputBytes)
	capFired := make(chan struct{}, 2)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		stdoutCap.consume(handle.Stdout(), capFired)
	}()
	go func() {
		defer readers.Done()
		stderrCap.consume(handle.Stderr(), capFired)
	}()

	var timedOut atomic.Bool
	done := make(chan struct{})
	go r.watch(ctx, handle, req.BudgetMs, capFired, done, &timedOut)

	// Streams reach EOF when the process exits or is terminated; only then
	// is Wait safe.
	readers.Wait()
	exitCode, waitErr := handle.Wait()
	close(done)

	out := result.PhaseOutput{
		Stdout:          stdoutCap.Bytes(),
		Stderr:          stderrCap.Bytes(),
		StdoutTruncated: stdoutCap.Truncated(),
		StderrTruncated: stderrCap.Truncated(),
		ExitCode:        exitCode,
		DurationMs:      time.Since(handle.StartedAt()).Milliseconds(),
		TimedOut:        timedOut.Load(),
	}

	if out.TimedOut {
		out.ExitCode = result.TimeoutExitCode
		return out, nil
	}

	if sandbox.IsRuntimeFailure(exitCode, out.Stderr) {
		return out, appErr.Newf(appErr.SandboxUnavailable,
			"container runtime failed: %s", firstLine(out.Stderr))
	}

	// A process killed by the post-cap grace timer has no real exit status;
	// truncation alone is not a failure.
	if out.ExitCode < 0 && (out.StdoutTruncated || out.StderrTruncated) {
		out.ExitCode = 0
	}

	if waitErr != nil && out.ExitCode < 0 {
		logger.Warn(ctx, "sandbox wait returned error",
			zap.String("request_id", req.RequestID),
			zap.String("phase", string(req.Phase)),
			zap.Error(waitErr))
	}
	return out, nil
}

// watch races the wall-clock timer and the output cap against the process's
// natural exit. The timer terminates immediately; the cap grants a short
// grace so a program that just finished printing can still exit cleanly.
func (r *PhaseRunner) watch(ctx context.Context, handle sandbox.Handle, budgetMs int64, capFired <-chan struct{}, done <-chan struct{}, timedOut *atomic.Bool) {
	var wallTimer <-chan time.Time
	if budgetMs > 0 {
		wallTimer = time.After(time.Duration(budgetMs) * time.Millisecond)
	}
	var graceTimer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			handle.Terminate()
			return
		case <-wallTimer:
			timedOut.Store(true)
			handle.Terminate()
			return
		case <-capFired:
			if graceTimer == nil {
				graceTimer = time.After(r.outputGrace)
			}
		case <-graceTimer:
			handle.Terminate()
			return
		case <-done:
			return
		}
	}
}

func feedStdin(ctx context.Context, handle sandbox.Handle, stdin string) {
	w := handle.Stdin()
	if stdin != "" {
		if _, err := io.WriteString(w, stdin); err != nil {
			logger.Debug(ctx, "stdin write interrupted", zap.Error(err))
		}
	}
	_ = w.Close()
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
