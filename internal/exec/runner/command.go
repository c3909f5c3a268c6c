package runner

import (
	"path/filepath"
	"strings"

	"runbox/internal/exec/profile"
	"runbox/internal/exec/sandbox"
	appErr "runbox/pkg/errors"

	"github.com/google/shlex"
)

// buildCommand expands a profile command template into an argv. {src} and
// {bin} resolve inside the sandbox work directory.
func buildCommand(tpl string, prof profile.LanguageProfile) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	workDir := sandbox.ContainerWorkDir()
	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{src}", filepath.Join(workDir, prof.SourceFile))
	if prof.BinaryFile != "" {
		expanded = strings.ReplaceAll(expanded, "{bin}", filepath.Join(workDir, prof.BinaryFile))
	}
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}
