// Package spec defines the launch specification and resource limits applied
// to one sandbox phase.
package spec

// Phase identifies which part of the pipeline a sandbox hosts. Compile and
// run always get separate sandboxes.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// ResourceLimits describes hard limits enforced on the sandboxed process
// group. Memory and ScratchSize use the container runtime's size syntax
// ("256m", "64m").
type ResourceLimits struct {
	Memory       string
	PIDs         int64
	CPUs         float64
	NoNetwork    bool
	ReadOnlyRoot bool
	ScratchSize  string
}

// LaunchSpec is everything the launcher needs to start one isolated phase.
// WorkDir is a host directory bind-mounted read-write at the container work
// path; it carries the source file in and the compiled binary across phases.
type LaunchSpec struct {
	RequestID string
	Phase     Phase
	Image     string
	Cmd       []string
	Env       []string
	WorkDir   string
	Limits    ResourceLimits
}
