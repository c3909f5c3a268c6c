package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"runbox/internal/exec/spec"
	appErr "runbox/pkg/errors"
	"runbox/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const containerWorkDir = "/box"

// ContainerWorkDir is the path where the host scratch directory is mounted
// inside every sandbox.
func ContainerWorkDir() string { return containerWorkDir }

// Config controls the container-CLI launcher.
type Config struct {
	// Binary is the container runtime CLI, "docker" by default.
	Binary string
	// User is the non-privileged identity inside the sandbox.
	User string
	// TeardownTimeout bounds runtime calls made during teardown and image
	// checks so a stuck runtime cannot starve the orchestrator.
	TeardownTimeout time.Duration
	// VerifyImages checks image presence once per image before first use.
	VerifyImages bool
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = "docker"
	}
	if c.User == "" {
		c.User = "65534:65534"
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = 5 * time.Second
	}
	return c
}

// DockerLauncher starts sandboxes through the container runtime's CLI.
type DockerLauncher struct {
	cfg Config

	imagesM sync.Mutex
	images  map[string]bool
}

// NewDockerLauncher creates a launcher using the configured runtime binary.
func NewDockerLauncher(cfg Config) *DockerLauncher {
	return &DockerLauncher{cfg: cfg.withDefaults(), images: make(map[string]bool)}
}

// Launch starts one container for the given phase. The returned handle owns
// the container lifecycle; Terminate kills the whole process group and
// force-removes the container.
func (l *DockerLauncher) Launch(ctx context.Context, ls spec.LaunchSpec) (Handle, error) {
	if len(ls.Cmd) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("launch command is empty")
	}
	if ls.WorkDir == "" {
		return nil, appErr.ValidationError("work_dir", "required")
	}

	if l.cfg.VerifyImages {
		if err := l.ensureImage(ctx, ls.Image); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	name := "runbox-" + id
	cmd := exec.Command(l.cfg.Binary, l.buildArgs(name, ls)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxLaunchFailed, "open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxLaunchFailed, "open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxLaunchFailed, "open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, appErr.Wrapf(err, appErr.SandboxUnavailable,
				"container runtime binary %q not found", l.cfg.Binary)
		}
		return nil, appErr.Wrapf(err, appErr.SandboxLaunchFailed, "start container runtime")
	}

	return &dockerHandle{
		id:        id,
		name:      name,
		binary:    l.cfg.Binary,
		teardown:  l.cfg.TeardownTimeout,
		startedAt: time.Now(),
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
	}, nil
}

func (l *DockerLauncher) buildArgs(name string, ls spec.LaunchSpec) []string {
	args := []string{"run", "--rm", "-i", "--name", name}

	if ls.Limits.NoNetwork {
		args = append(args, "--network=none")
	}
	if ls.Limits.ReadOnlyRoot {
		args = append(args, "--read-only")
	}
	scratch := ls.Limits.ScratchSize
	if scratch == "" {
		scratch = "64m"
	}
	// /tmp stays executable so compile outputs and toolchain caches work.
	args = append(args, "--tmpfs", fmt.Sprintf("/tmp:rw,exec,nosuid,size=%s", scratch))

	if ls.Limits.Memory != "" {
		// Swap pinned to the memory limit: no swap headroom.
		args = append(args, "--memory", ls.Limits.Memory, "--memory-swap", ls.Limits.Memory)
	}
	if ls.Limits.PIDs > 0 {
		args = append(args, "--pids-limit", fmt.Sprintf("%d", ls.Limits.PIDs))
	}
	if ls.Limits.CPUs > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%g", ls.Limits.CPUs))
	}

	args = append(args,
		"--cap-drop=ALL",
		"--security-opt=no-new-privileges",
		"--user", l.cfg.User,
		"-v", fmt.Sprintf("%s:%s", ls.WorkDir, containerWorkDir),
		"--workdir", containerWorkDir,
	)
	for _, env := range ls.Env {
		args = append(args, "--env", env)
	}
	args = append(args, ls.Image)
	args = append(args, ls.Cmd...)
	return args
}

// ensureImage verifies the image exists locally, once per image reference.
func (l *DockerLauncher) ensureImage(ctx context.Context, image string) error {
	l.imagesM.Lock()
	known := l.images[image]
	l.imagesM.Unlock()
	if known {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, l.cfg.TeardownTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(checkCtx, l.cfg.Binary, "image", "inspect", image)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return appErr.Wrapf(err, appErr.SandboxUnavailable,
				"container runtime binary %q not found", l.cfg.Binary)
		}
		if IsRuntimeFailure(exitCodeOf(err), stderr.Bytes()) {
			return appErr.Wrapf(err, appErr.SandboxUnavailable, "container runtime unreachable")
		}
		return appErr.Newf(appErr.SandboxImageMissing, "sandbox image %s is not available", image)
	}

	l.imagesM.Lock()
	l.images[image] = true
	l.imagesM.Unlock()
	return nil
}

type dockerHandle struct {
	id        string
	name      string
	binary    string
	teardown  time.Duration
	startedAt time.Time

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	terminateOnce sync.Once
}

func (h *dockerHandle) ID() string            { return h.id }
func (h *dockerHandle) StartedAt() time.Time  { return h.startedAt }
func (h *dockerHandle) Stdout() io.Reader     { return h.stdout }
func (h *dockerHandle) Stderr() io.Reader     { return h.stderr }
func (h *dockerHandle) Stdin() io.WriteCloser { return h.stdin }

func (h *dockerHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	return exitCodeFromState(err, h.cmd), err
}

// Terminate kills the runtime client's process group, then force-removes the
// container itself. Killing only the client would leave the container running.
func (h *dockerHandle) Terminate() {
	h.terminateOnce.Do(func() {
		if h.cmd.Process != nil {
			// Negative pid targets the whole process group, covering any
			// children the client forked.
			_ = syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL)
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.teardown)
		defer cancel()
		rm := exec.CommandContext(ctx, h.binary, "rm", "-f", h.name)
		rm.Stdout = io.Discard
		rm.Stderr = io.Discard
		if err := rm.Run(); err != nil {
			// Expected after natural exit: --rm already removed it.
			logger.Debug(ctx, "container remove returned error",
				zap.String("container", h.name), zap.Error(err))
		}
	})
}

// IsRuntimeFailure reports whether an exit looks like a container-runtime
// fault rather than a user-program exit. The docker CLI reserves 125-127 for
// client/daemon errors; a dead daemon also announces itself on stderr.
func IsRuntimeFailure(exitCode int, stderr []byte) bool {
	if exitCode >= 125 && exitCode <= 127 && bytes.HasPrefix(bytes.TrimSpace(stderr), []byte("docker:")) {
		return true
	}
	msg := strings.ToLower(string(stderr))
	return strings.Contains(msg, "cannot connect to the docker daemon") ||
		strings.Contains(msg, "error during connect")
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func exitCodeFromState(err error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	return exitCodeOf(err)
}
