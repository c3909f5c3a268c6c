package profile

import (
	"sort"

	appErr "runbox/pkg/errors"
)

// Registry is the immutable language table loaded at startup. Lookups are
// pure and lock-free.
type Registry struct {
	profiles map[string]LanguageProfile
	ids      []string
}

// NewRegistry builds a registry from a profile list. Every id must be unique
// and every profile must carry a run command and an image reference.
func NewRegistry(profiles []LanguageProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("at least one language profile is required")
	}
	byID := make(map[string]LanguageProfile, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			return nil, appErr.ValidationError("id", "required")
		}
		if _, exists := byID[p.ID]; exists {
			return nil, appErr.Newf(appErr.InvalidParams, "duplicate language profile: %s", p.ID)
		}
		if p.RunCmdTpl == "" {
			return nil, appErr.Newf(appErr.InvalidParams, "language %s has no run command", p.ID)
		}
		if p.ImageRef == "" {
			return nil, appErr.Newf(appErr.InvalidParams, "language %s has no image", p.ID)
		}
		if p.SourceFile == "" {
			return nil, appErr.Newf(appErr.InvalidParams, "language %s has no source file name", p.ID)
		}
		byID[p.ID] = p
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Registry{profiles: byID, ids: ids}, nil
}

// Lookup resolves a language id to its profile.
func (r *Registry) Lookup(id string) (LanguageProfile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// IDs returns the supported language ids in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// DefaultProfiles returns the built-in language table used when the config
// file does not define one.
func DefaultProfiles() []LanguageProfile {
	return []LanguageProfile{
		{
			ID:         "python",
			Name:       "Python 3",
			ImageRef:   "python:3.12-alpine",
			SourceFile: "main.py",
			RunCmdTpl:  "python3 {src}",
		},
		{
			ID:         "javascript",
			Name:       "Node.js",
			ImageRef:   "node:20-alpine",
			SourceFile: "main.js",
			RunCmdTpl:  "node {src}",
		},
		{
			ID:            "c",
			Name:          "C (GCC)",
			ImageRef:      "gcc:13",
			SourceFile:    "main.c",
			BinaryFile:    "main",
			CompileCmdTpl: "gcc -O2 -o {bin} {src}",
			RunCmdTpl:     "{bin}",
		},
		{
			ID:            "cpp",
			Name:          "C++ (GCC)",
			ImageRef:      "gcc:13",
			SourceFile:    "main.cpp",
			BinaryFile:    "main",
			CompileCmdTpl: "g++ -O2 -o {bin} {src}",
			RunCmdTpl:     "{bin}",
		},
		{
			ID:            "go",
			Name:          "Go",
			ImageRef:      "golang:1.22-alpine",
			SourceFile:    "main.go",
			BinaryFile:    "main",
			CompileCmdTpl: "go build -o {bin} {src}",
			RunCmdTpl:     "{bin}",
			Env:           []string{"GOCACHE=/tmp/gocache", "GOTMPDIR=/tmp", "GOFLAGS=-mod=mod", "GO111MODULE=off"},
		},
	}
}
