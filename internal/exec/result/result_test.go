package result

import (
	"testing"

	"runbox/internal/exec/spec"
)

func TestClassifySuccess(t *testing.T) {
	res := Classify(spec.PhaseRun, PhaseOutput{
		Stdout:     []byte("hello\n"),
		ExitCode:   0,
		DurationMs: 12,
	})
	if res.Kind != KindNone {
		t.Fatalf("expected success, got %s", res.Kind)
	}
	if res.Stdout != "hello\n" || res.ExitCode != 0 || res.TimedOut {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClassifyRuntimeFailurePreservesExitCode(t *testing.T) {
	res := Classify(spec.PhaseRun, PhaseOutput{ExitCode: 3, Stderr: []byte("boom")})
	if res.Kind != KindRuntime {
		t.Fatalf("expected runtime, got %s", res.Kind)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code must be preserved, got %d", res.ExitCode)
	}
}

func TestClassifyCompileFailure(t *testing.T) {
	res := Classify(spec.PhaseCompile, PhaseOutput{ExitCode: 1, Stderr: []byte("syntax error")})
	if res.Kind != KindCompile {
		t.Fatalf("expected compile, got %s", res.Kind)
	}
	if res.Stderr != "syntax error" {
		t.Fatalf("compiler stderr must be surfaced verbatim, got %q", res.Stderr)
	}
}

func TestClassifyTimeoutUsesSentinel(t *testing.T) {
	for _, phase := range []spec.Phase{spec.PhaseCompile, spec.PhaseRun} {
		res := Classify(phase, PhaseOutput{ExitCode: 0, TimedOut: true})
		if res.Kind != KindTimeout {
			t.Fatalf("phase %s: expected timeout, got %s", phase, res.Kind)
		}
		if res.ExitCode != TimeoutExitCode {
			t.Fatalf("phase %s: expected sentinel exit code, got %d", phase, res.ExitCode)
		}
		if !res.TimedOut {
			t.Fatalf("phase %s: timed out flag lost", phase)
		}
	}
}

func TestInfrastructureKeepsPartialOutput(t *testing.T) {
	res := Infrastructure(PhaseOutput{Stdout: []byte("partial"), ExitCode: 125})
	if res.Kind != KindInfrastructure {
		t.Fatalf("expected infrastructure, got %s", res.Kind)
	}
	if res.Stdout != "partial" {
		t.Fatalf("partial output must be preserved, got %q", res.Stdout)
	}
}

func TestTruncatedFlag(t *testing.T) {
	res := Classify(spec.PhaseRun, PhaseOutput{StdoutTruncated: true})
	if !res.Truncated() {
		t.Fatalf("expected truncated")
	}
	res = Classify(spec.PhaseRun, PhaseOutput{StderrTruncated: true})
	if !res.Truncated() {
		t.Fatalf("expected truncated for stderr")
	}
	res = Classify(spec.PhaseRun, PhaseOutput{})
	if res.Truncated() {
		t.Fatalf("expected not truncated")
	}
}
