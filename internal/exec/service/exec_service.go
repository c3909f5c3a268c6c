// Package service coordinates one execution request end to end: validate,
// stage source, compile when the profile asks for it, run, classify.
package service

import (
	"context"
	"os"
	"path/filepath"

	"runbox/internal/exec/model"
	"runbox/internal/exec/observer"
	"runbox/internal/exec/profile"
	"runbox/internal/exec/result"
	"runbox/internal/exec/runner"
	"runbox/internal/exec/spec"
	"runbox/internal/exec/validator"
	appErr "runbox/pkg/errors"
	"runbox/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limits are the per-request execution bounds, loaded once at startup and
// passed in explicitly.
type Limits struct {
	TimeoutMs      int64
	MaxOutputBytes int64
	Memory         string
	PIDs           int64
	CPUs           float64
	ScratchSize    string
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry  *profile.Registry
	Validator *validator.Validator
	Runner    *runner.PhaseRunner
	Metrics   observer.MetricsRecorder
	Limits    Limits
	// WorkRoot hosts the per-request scratch directories.
	WorkRoot string
}

// ExecService is the execution orchestrator. It owns every sandbox handle
// and scratch directory for the duration of one request; nothing escapes it.
type ExecService struct {
	registry  *profile.Registry
	validator *validator.Validator
	runner    *runner.PhaseRunner
	metrics   observer.MetricsRecorder
	limits    Limits
	workRoot  string
}

// NewService creates the orchestrator.
func NewService(cfg Config) (*ExecService, error) {
	if cfg.Registry == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("registry is required")
	}
	if cfg.Validator == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("validator is required")
	}
	if cfg.Runner == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("runner is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observer.NoopMetricsRecorder{}
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	return &ExecService{
		registry:  cfg.Registry,
		validator: cfg.Validator,
		runner:    cfg.Runner,
		metrics:   cfg.Metrics,
		limits:    cfg.Limits,
		workRoot:  cfg.WorkRoot,
	}, nil
}

// Languages returns the supported language ids.
func (s *ExecService) Languages() []string {
	return s.registry.IDs()
}

// Execute runs one request. The returned error is non-nil only for
// validation rejections and infrastructure faults; compile errors, runtime
// errors and timeouts are legitimate outcomes carried in the result.
func (s *ExecService) Execute(ctx context.Context, req model.ExecutionRequest) (result.ExecutionResult, error) {
	prof, err := s.validator.Validate(ctx, req)
	if err != nil {
		return result.ExecutionResult{Kind: result.KindValidation}, err
	}

	requestID := uuid.NewString()
	workDir, err := os.MkdirTemp(s.workRoot, "runbox-")
	if err != nil {
		return result.ExecutionResult{Kind: result.KindInfrastructure},
			appErr.Wrapf(err, appErr.InternalServerError, "create scratch dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn(ctx, "scratch dir cleanup failed",
				zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	// MkdirTemp creates the dir 0700, but the sandbox runs as an unprivileged
	// uid and must traverse the mount, read the source and write the binary.
	if err := os.Chmod(workDir, 0777); err != nil {
		return result.ExecutionResult{Kind: result.KindInfrastructure},
			appErr.Wrapf(err, appErr.InternalServerError, "open scratch dir to sandbox user")
	}

	srcPath := filepath.Join(workDir, prof.SourceFile)
	if err := os.WriteFile(srcPath, []byte(req.Code), 0644); err != nil {
		return result.ExecutionResult{Kind: result.KindInfrastructure},
			appErr.Wrapf(err, appErr.InternalServerError, "write source file")
	}
	// Explicit chmod so a restrictive umask cannot hide the source from the
	// sandbox uid.
	if err := os.Chmod(srcPath, 0644); err != nil {
		return result.ExecutionResult{Kind: result.KindInfrastructure},
			appErr.Wrapf(err, appErr.InternalServerError, "open source file to sandbox user")
	}

	budget := s.budgetFor(prof)
	runBudget := budget

	if prof.CompileEnabled() {
		compileBudget := int64(float64(budget) * prof.EffectiveCompileFraction())
		out, err := s.runPhase(ctx, requestID, spec.PhaseCompile, prof, workDir, "", compileBudget)
		if err != nil {
			return result.Infrastructure(out), err
		}
		if res := result.Classify(spec.PhaseCompile, out); res.Kind != result.KindNone {
			// Fail fast: the run phase is never entered for code that does
			// not build. Compiler stderr is surfaced verbatim.
			return res, nil
		}
		runBudget = budget - out.DurationMs
		if runBudget < 1 {
			runBudget = 1
		}
	}

	out, err := s.runPhase(ctx, requestID, spec.PhaseRun, prof, workDir, req.Stdin, runBudget)
	if err != nil {
		return result.Infrastructure(out), err
	}
	return result.Classify(spec.PhaseRun, out), nil
}

func (s *ExecService) runPhase(ctx context.Context, requestID string, phase spec.Phase, prof profile.LanguageProfile, workDir, stdin string, budgetMs int64) (result.PhaseOutput, error) {
	out, err := s.runner.Execute(ctx, runner.PhaseRequest{
		RequestID:      requestID,
		Phase:          phase,
		Profile:        prof,
		WorkDir:        workDir,
		Stdin:          stdin,
		BudgetMs:       budgetMs,
		MaxOutputBytes: s.limits.MaxOutputBytes,
		Limits:         s.launchLimits(prof),
	})
	if err != nil {
		s.metrics.ObserveLaunchFailure(ctx, prof.ID)
		// The one outcome attributed to the environment, not the code.
		logger.Error(ctx, "sandbox infrastructure failure",
			zap.String("request_id", requestID),
			zap.String("language", prof.ID),
			zap.String("phase", string(phase)),
			zap.Error(err))
		return out, err
	}

	kind := string(result.Classify(phase, out).Kind)
	s.metrics.ObservePhase(ctx, prof.ID, string(phase), kind, out.DurationMs,
		int64(len(out.Stdout)+len(out.Stderr)))
	logger.Debug(ctx, "phase finished",
		zap.String("request_id", requestID),
		zap.String("language", prof.ID),
		zap.String("phase", string(phase)),
		zap.Int("exit_code", out.ExitCode),
		zap.Int64("duration_ms", out.DurationMs),
		zap.Bool("timed_out", out.TimedOut))
	return out, nil
}

func (s *ExecService) budgetFor(prof profile.LanguageProfile) int64 {
	if prof.TimeoutMs > 0 {
		return prof.TimeoutMs
	}
	return s.limits.TimeoutMs
}

func (s *ExecService) launchLimits(prof profile.LanguageProfile) spec.ResourceLimits {
	memory := s.limits.Memory
	if prof.MemoryLimit != "" {
		memory = prof.MemoryLimit
	}
	return spec.ResourceLimits{
		Memory:       memory,
		PIDs:         s.limits.PIDs,
		CPUs:         s.limits.CPUs,
		NoNetwork:    true,
		ReadOnlyRoot: true,
		ScratchSize:  s.limits.ScratchSize,
	}
}
