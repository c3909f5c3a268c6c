package profile

import (
	"reflect"
	"testing"
)

func TestNewRegistryValidates(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("expected error for empty profile list")
	}

	_, err := NewRegistry([]LanguageProfile{
		{ID: "python", ImageRef: "python:3.12-alpine", SourceFile: "main.py", RunCmdTpl: "python3 {src}"},
		{ID: "python", ImageRef: "python:3.11-alpine", SourceFile: "main.py", RunCmdTpl: "python3 {src}"},
	})
	if err == nil {
		t.Fatalf("expected error for duplicate id")
	}

	_, err = NewRegistry([]LanguageProfile{
		{ID: "python", ImageRef: "python:3.12-alpine", SourceFile: "main.py"},
	})
	if err == nil {
		t.Fatalf("expected error for missing run command")
	}

	_, err = NewRegistry([]LanguageProfile{
		{ID: "python", SourceFile: "main.py", RunCmdTpl: "python3 {src}"},
	})
	if err == nil {
		t.Fatalf("expected error for missing image")
	}
}

func TestRegistryLookupAndIDs(t *testing.T) {
	reg, err := NewRegistry([]LanguageProfile{
		{ID: "python", ImageRef: "img", SourceFile: "main.py", RunCmdTpl: "python3 {src}"},
		{ID: "c", ImageRef: "img", SourceFile: "main.c", BinaryFile: "main", CompileCmdTpl: "gcc -o {bin} {src}", RunCmdTpl: "{bin}"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	p, ok := reg.Lookup("c")
	if !ok {
		t.Fatalf("expected c profile")
	}
	if !p.CompileEnabled() {
		t.Fatalf("expected c to have a compile step")
	}

	p, ok = reg.Lookup("python")
	if !ok {
		t.Fatalf("expected python profile")
	}
	if p.CompileEnabled() {
		t.Fatalf("python must not have a compile step")
	}

	if _, ok := reg.Lookup("cobol"); ok {
		t.Fatalf("unexpected profile for unknown language")
	}

	ids := reg.IDs()
	if !reflect.DeepEqual(ids, []string{"c", "python"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestEffectiveCompileFraction(t *testing.T) {
	p := LanguageProfile{}
	if got := p.EffectiveCompileFraction(); got != DefaultCompileFraction {
		t.Fatalf("expected default fraction, got %v", got)
	}
	p.CompileFraction = 0.3
	if got := p.EffectiveCompileFraction(); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}
	p.CompileFraction = 1.5
	if got := p.EffectiveCompileFraction(); got != DefaultCompileFraction {
		t.Fatalf("expected clamp to default, got %v", got)
	}
}

func TestDefaultProfilesAreValid(t *testing.T) {
	reg, err := NewRegistry(DefaultProfiles())
	if err != nil {
		t.Fatalf("default profiles must build a registry: %v", err)
	}
	for _, id := range []string{"python", "javascript", "c", "cpp", "go"} {
		if _, ok := reg.Lookup(id); !ok {
			t.Fatalf("missing default profile %s", id)
		}
	}
}
