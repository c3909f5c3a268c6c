// Package result defines execution outcomes and the classification of raw
// sandbox exits into them.
package result

import "runbox/internal/exec/spec"

// ErrorKind is the typed outcome category of one execution.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindValidation     ErrorKind = "validation"
	KindCompile        ErrorKind = "compile"
	KindRuntime        ErrorKind = "runtime"
	KindTimeout        ErrorKind = "timeout"
	KindInfrastructure ErrorKind = "infrastructure"
)

// TimeoutExitCode is the sentinel reported when a phase was killed by the
// wall-clock timer. It is distinct from any real process exit code, which is
// always >= 0.
const TimeoutExitCode = -1

// PhaseOutput is the raw data captured from one sandbox phase.
type PhaseOutput struct {
	Stdout          []byte
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool
	ExitCode        int
	DurationMs      int64
	TimedOut        bool
}

// ExecutionResult is the final, client-facing outcome of one request.
type ExecutionResult struct {
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	ExitCode        int
	DurationMs      int64
	TimedOut        bool
	Kind            ErrorKind
}

// Truncated reports whether either stream hit the output cap.
func (r ExecutionResult) Truncated() bool {
	return r.StdoutTruncated || r.StderrTruncated
}

// Classify maps one phase's raw output into a typed result. The mapping is
// deterministic:
//
//	timed out (either phase)        -> timeout, sentinel exit code
//	compile phase, non-zero exit    -> compile
//	run phase, non-zero exit        -> runtime (exit code preserved)
//	run phase, zero exit            -> none
func Classify(phase spec.Phase, out PhaseOutput) ExecutionResult {
	res := ExecutionResult{
		Stdout:          string(out.Stdout),
		Stderr:          string(out.Stderr),
		StdoutTruncated: out.StdoutTruncated,
		StderrTruncated: out.StderrTruncated,
		ExitCode:        out.ExitCode,
		DurationMs:      out.DurationMs,
		TimedOut:        out.TimedOut,
	}

	switch {
	case out.TimedOut:
		res.Kind = KindTimeout
		res.ExitCode = TimeoutExitCode
	case phase == spec.PhaseCompile && out.ExitCode != 0:
		res.Kind = KindCompile
	case out.ExitCode != 0:
		res.Kind = KindRuntime
	default:
		res.Kind = KindNone
	}
	return res
}

// Infrastructure builds the result reported when the sandbox itself failed.
// Partial output, if any was captured, is preserved.
func Infrastructure(out PhaseOutput) ExecutionResult {
	res := Classify(spec.PhaseRun, out)
	res.Kind = KindInfrastructure
	return res
}
