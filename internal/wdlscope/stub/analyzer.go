// Package stub provides a minimal queue.Analyzer used by tests: it scans
// the source text recovered from a parsext/stub tree for `task NAME {` and
// `workflow NAME {` headers and registers each with a scope spanning its
// header line,
// the same line-scanning shortcut parsext/stub takes for parsing. A real
// analyzer walks a concrete syntax tree section by section instead.
package stub

import (
	"strings"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/parsext"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// sourceProvider mirrors parsext/stub.SourceProvider without importing that
// test package from a non-test package.
type sourceProvider interface {
	SourceText() string
}

// Analyzer implements queue.Analyzer via line scanning.
type Analyzer struct{}

// New constructs an Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze implements queue.Analyzer.
func (a *Analyzer) Analyze(tree parsext.Tree) (wdlscope.DocumentScope, []diagnostics.Diagnostic) {
	sp, ok := tree.(sourceProvider)
	if !ok {
		return wdlscope.NewBuilder().Build(), nil
	}

	b := wdlscope.NewBuilder()
	root := b.OpenScope(wdlscope.NoParent, diagnostics.Span{})

	offset := 0
	for _, line := range strings.Split(sp.SourceText(), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "task "):
			if name, ok := headerName(trimmed, "task "); ok {
				body := b.OpenScope(root, diagnostics.Span{Offset: offset, Length: len(line)})
				b.RegisterTask(name, body, nil, nil, true)
			}
		case strings.HasPrefix(trimmed, "workflow "):
			if name, ok := headerName(trimmed, "workflow "); ok {
				body := b.OpenScope(root, diagnostics.Span{Offset: offset, Length: len(line)})
				b.RegisterWorkflow(name, body, nil, nil)
			}
		}
		offset += len(line) + 1
	}

	doc := b.Build()
	return doc, nil
}

func headerName(trimmed, prefix string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	end := strings.IndexAny(rest, " {")
	if end < 0 {
		end = len(rest)
	}
	name := rest[:end]
	if name == "" {
		return "", false
	}
	return name, true
}
