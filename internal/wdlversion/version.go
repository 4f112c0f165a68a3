// Package wdlversion resolves the effective WDL language version a
// document is analyzed under, per SPEC_FULL.md §5 step 4 of the parse
// pipeline.
package wdlversion

import (
	"fmt"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
)

// Policy configures which versions are supported and what happens when a
// document declares one that isn't.
type Policy struct {
	Supported []string
	Fallback  string // empty disables fallback
	Severity  diagnostics.Severity
}

// DefaultPolicy supports the 1.x line with no fallback configured.
func DefaultPolicy() Policy {
	return Policy{
		Supported: []string{"1.0", "1.1", "1.2"},
		Severity:  diagnostics.SeverityWarning,
	}
}

func (p Policy) supports(v string) bool {
	for _, s := range p.Supported {
		if s == v {
			return true
		}
	}
	return false
}

// Resolve implements the version-resolution rule: a supported declared
// version is used as-is; an unsupported one falls back (with a diagnostic)
// if a fallback is configured, otherwise it is an error; an undeclared
// version is an error.
func Resolve(declared string, hasDeclared bool, p Policy) (string, *diagnostics.Diagnostic, error) {
	if !hasDeclared {
		return "", nil, fmt.Errorf("document does not declare a WDL version")
	}
	if p.supports(declared) {
		return declared, nil, nil
	}
	if p.Fallback != "" {
		d := diagnostics.New(
			"unsupported-version",
			fmt.Sprintf("WDL version %q is not supported; analyzing as %q", declared, p.Fallback),
			diagnostics.Span{},
		).WithSeverity(p.Severity)
		return p.Fallback, &d, nil
	}
	return "", nil, fmt.Errorf("WDL version %q is not supported", declared)
}
