// Package profile defines language profiles and the registry resolving them.
package profile

// LanguageProfile defines how to build and run one supported language.
// CompileCmdTpl is empty for interpreted languages; RunCmdTpl is always set.
// Templates may reference {src} and {bin}, resolved inside the sandbox work
// directory.
type LanguageProfile struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	ImageRef      string   `yaml:"imageRef"`
	SourceFile    string   `yaml:"sourceFile"`
	BinaryFile    string   `yaml:"binaryFile"`
	CompileCmdTpl string   `yaml:"compileCmdTpl"`
	RunCmdTpl     string   `yaml:"runCmdTpl"`
	Env           []string `yaml:"env"`

	// CompileFraction is the share of the total time budget reserved for the
	// compile phase. Zero means the default.
	CompileFraction float64 `yaml:"compileFraction"`

	// Optional per-language overrides; zero values fall back to the service
	// defaults.
	TimeoutMs   int64  `yaml:"timeoutMs"`
	MemoryLimit string `yaml:"memoryLimit"`
}

// DefaultCompileFraction is used when a profile has a compile step but no
// explicit fraction.
const DefaultCompileFraction = 0.5

// CompileEnabled reports whether the profile has a compile step. Everything
// downstream branches on this, never on the language id.
func (p LanguageProfile) CompileEnabled() bool {
	return p.CompileCmdTpl != ""
}

// EffectiveCompileFraction returns the configured fraction clamped to (0,1).
func (p LanguageProfile) EffectiveCompileFraction() float64 {
	f := p.CompileFraction
	if f <= 0 || f >= 1 {
		f = DefaultCompileFraction
	}
	return f
}
