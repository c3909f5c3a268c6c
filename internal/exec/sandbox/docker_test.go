package sandbox

import (
	"strings"
	"testing"

	"runbox/internal/exec/spec"
)

func TestBuildArgsIsolation(t *testing.T) {
	l := NewDockerLauncher(Config{})
	args := l.buildArgs("runbox-test", spec.LaunchSpec{
		Image:   "python:3.11-alpine",
		Cmd:     []string{"python3", "/box/main.py"},
		WorkDir: "/tmp/runbox-abc",
		Limits: spec.ResourceLimits{
			Memory:       "256m",
			PIDs:         64,
			CPUs:         1.0,
			NoNetwork:    true,
			ReadOnlyRoot: true,
			ScratchSize:  "64m",
		},
	})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--network=none",
		"--read-only",
		"--memory 256m",
		"--memory-swap 256m",
		"--pids-limit 64",
		"--cpus 1",
		"--cap-drop=ALL",
		"--security-opt=no-new-privileges",
		"--user 65534:65534",
		"-v /tmp/runbox-abc:/box",
		"--workdir /box",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in args: %s", want, joined)
		}
	}

	// The image must come before the command, at the end of the line.
	if !strings.HasSuffix(joined, "python:3.11-alpine python3 /box/main.py") {
		t.Fatalf("image and command must close the argument list: %s", joined)
	}
}

func TestBuildArgsEnvPassthrough(t *testing.T) {
	l := NewDockerLauncher(Config{})
	args := l.buildArgs("runbox-test", spec.LaunchSpec{
		Image:   "golang:1.22-alpine",
		Cmd:     []string{"go", "build"},
		WorkDir: "/tmp/w",
		Env:     []string{"GOCACHE=/tmp"},
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--env GOCACHE=/tmp") {
		t.Fatalf("env not forwarded: %s", joined)
	}
}

func TestIsRuntimeFailure(t *testing.T) {
	cases := []struct {
		name   string
		exit   int
		stderr string
		want   bool
	}{
		{"daemon error prefix", 125, "docker: Error response from daemon: oops.\n", true},
		{"dead daemon", 1, "Cannot connect to the Docker daemon at unix:///var/run/docker.sock", true},
		{"connect error", 1, "error during connect: this may indicate the daemon is not running", true},
		{"user exit 125 without prefix", 125, "my program prints this", false},
		{"plain runtime error", 1, "Traceback (most recent call last):", false},
		{"clean exit", 0, "", false},
	}
	for _, tc := range cases {
		if got := IsRuntimeFailure(tc.exit, []byte(tc.stderr)); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
