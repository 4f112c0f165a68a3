// Package stub provides a minimal in-memory parsext.Builder used by tests.
// It recognizes a `version X.Y` statement and `import "uri"` lines via
// simple line scanning -- enough to exercise docgraph's version-fallback,
// import-resolution, and cycle-detection logic without a real WDL grammar.
package stub

import (
	"strings"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/parsext"
)

type node struct{ kind string }

func (n node) Kind() string { return n.kind }

type tree struct {
	version string
	hasVer  bool
	imports []parsext.ImportStatement
	diags   []diagnostics.Diagnostic
	source  string
}

func (t *tree) Root() parsext.Node                    { return node{kind: "document"} }
func (t *tree) DeclaredVersion() (string, bool)       { return t.version, t.hasVer }
func (t *tree) Imports() []parsext.ImportStatement    { return t.imports }
func (t *tree) Diagnostics() []diagnostics.Diagnostic { return t.diags }

// SourceText returns the original source text. It is not part of the core
// parsext.Tree interface -- a real grammar exposes structure instead -- but
// test analyzers need something to scan, the same way this stub's Builder
// scans lines instead of building a real tree.
func (t *tree) SourceText() string { return t.source }

// SourceProvider is implemented by this package's tree so test-only
// analyzers can recover the original text. Production analyzers walk a
// real concrete syntax tree instead.
type SourceProvider interface {
	SourceText() string
}

// Builder is a Builder implementation backed by simple line scanning.
type Builder struct{}

// New constructs a stub Builder.
func New() *Builder { return &Builder{} }

// Parse implements parsext.Builder.
func (b *Builder) Parse(source string, _ string) (parsext.Tree, error) {
	t := &tree{source: source}
	offset := 0
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "version "):
			t.version = strings.TrimSpace(strings.TrimPrefix(trimmed, "version "))
			t.hasVer = true
		case strings.HasPrefix(trimmed, "import "):
			uri, alias := parseImportLine(trimmed)
			t.imports = append(t.imports, parsext.ImportStatement{
				URI:   uri,
				Alias: alias,
				Span:  diagnostics.Span{Offset: offset, Length: len(line)},
			})
		}
		offset += len(line) + 1
	}
	return t, nil
}

func parseImportLine(line string) (uri, alias string) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "import "))
	if i := strings.Index(rest, "\""); i >= 0 {
		rest = rest[i+1:]
		if j := strings.Index(rest, "\""); j >= 0 {
			uri = rest[:j]
			rest = strings.TrimSpace(rest[j+1:])
		}
	}
	if strings.HasPrefix(rest, "as ") {
		alias = strings.TrimSpace(strings.TrimPrefix(rest, "as "))
	}
	return uri, alias
}
