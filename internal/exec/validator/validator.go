// Package validator enforces request constraints before any sandbox resource
// is allocated.
package validator

import (
	"context"
	"regexp"

	"runbox/internal/exec/model"
	"runbox/internal/exec/profile"
	appErr "runbox/pkg/errors"
	"runbox/pkg/utils/logger"

	"go.uber.org/zap"
)

// Limits are the request-shape bounds the validator enforces.
type Limits struct {
	MaxCodeSize  int
	MaxInputSize int
}

// Validator checks incoming requests against the registry and size limits.
// It has no side effects beyond audit logging.
type Validator struct {
	registry *profile.Registry
	limits   Limits
}

// auditPatterns flag constructs worth recording for operators. Matches are
// logged and never block execution: the sandbox, not input filtering, is the
// security boundary.
var auditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/var/run/docker\.sock`),
	regexp.MustCompile(`(?i)docker\s+(exec|run|sock)`),
	regexp.MustCompile(`/proc/self/`),
	regexp.MustCompile(`(?i)ptrace|LD_PRELOAD`),
	regexp.MustCompile("`|\\$\\("),
}

// New creates a validator bound to the language registry.
func New(registry *profile.Registry, limits Limits) *Validator {
	return &Validator{registry: registry, limits: limits}
}

// Validate rejects malformed, oversized, or unsupported requests and resolves
// the language profile. A rejection here guarantees no sandbox was created.
func (v *Validator) Validate(ctx context.Context, req model.ExecutionRequest) (profile.LanguageProfile, error) {
	if req.Code == "" {
		return profile.LanguageProfile{}, appErr.ValidationError("code", "required")
	}
	if req.Language == "" {
		return profile.LanguageProfile{}, appErr.ValidationError("language", "required")
	}
	if v.limits.MaxCodeSize > 0 && len(req.Code) > v.limits.MaxCodeSize {
		return profile.LanguageProfile{}, appErr.Newf(appErr.CodeTooLarge,
			"code size %d exceeds limit %d", len(req.Code), v.limits.MaxCodeSize)
	}
	if v.limits.MaxInputSize > 0 && len(req.Stdin) > v.limits.MaxInputSize {
		return profile.LanguageProfile{}, appErr.Newf(appErr.InputTooLarge,
			"input size %d exceeds limit %d", len(req.Stdin), v.limits.MaxInputSize)
	}

	prof, ok := v.registry.Lookup(req.Language)
	if !ok {
		return profile.LanguageProfile{}, appErr.Newf(appErr.LanguageNotSupported,
			"unsupported language: %s", req.Language)
	}

	v.audit(ctx, req)
	return prof, nil
}

func (v *Validator) audit(ctx context.Context, req model.ExecutionRequest) {
	for _, pattern := range auditPatterns {
		if loc := pattern.FindStringIndex(req.Code); loc != nil {
			logger.Warn(ctx, "audit: suspicious construct in submitted code",
				zap.String("language", req.Language),
				zap.String("pattern", pattern.String()),
				zap.Int("offset", loc[0]),
			)
		}
	}
}
