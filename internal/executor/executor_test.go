package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdl-platform/corewdl/internal/config"
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/evaluator"
	"github.com/wdl-platform/corewdl/internal/evaluator/stub"
	"github.com/wdl-platform/corewdl/internal/store"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// fakeAnalyzer stands in for C3/C4 document resolution: it always returns
// a document with a single workflow named "greet" and no diagnostics.
type fakeAnalyzer struct {
	diags []diagnostics.Diagnostic
}

func (f *fakeAnalyzer) AnalyzeDocument(ctx context.Context, uri string) (*wdlscope.DocumentScope, []diagnostics.Diagnostic, error) {
	b := wdlscope.NewBuilder()
	root := b.OpenScope(wdlscope.NoParent, diagnostics.Span{})
	b.RegisterWorkflow("greet", root, nil, nil)
	scope := b.Build()
	return &scope, f.diags, nil
}

func writeWDL(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "greet.wdl")
	require.NoError(t, os.WriteFile(path, []byte("version 1.0\nworkflow greet {}\n"), 0o644))
	return path
}

func newTestExecutor(t *testing.T, outputDir string, outputs map[string]evaluator.OutputValue) (*Executor, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.ExecutionConfig{
		OutputDirectory:  outputDir,
		AllowedFilePaths: []string{outputDir},
	}
	exec := New(db, &fakeAnalyzer{}, stub.New(outputs), cfg)
	return exec, db
}

func TestRunSuccessCreatesOutputsAndIndex(t *testing.T) {
	outputDir := t.TempDir()
	wdlPath := writeWDL(t, outputDir)

	outputs := map[string]evaluator.OutputValue{
		"greeting": evaluator.File{Path: "greeting.txt"},
	}
	exec, _ := newTestExecutor(t, outputDir, outputs)

	result, err := exec.Run(context.Background(), TargetRequest{
		Source:  wdlPath,
		IndexOn: "latest",
	})
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, result.Run.Status)
	require.NotNil(t, result.Run.Outputs)

	runOutputsPath := filepath.Join(outputDir, "runs", result.Run.Name, "outputs.json")
	assert.FileExists(t, runOutputsPath)

	indexOutputsLink := filepath.Join(outputDir, "index", "latest", "outputs.json")
	assert.FileExists(t, indexOutputsLink)
	indexGreetingLink := filepath.Join(outputDir, "index", "latest", "greeting.txt")
	assert.FileExists(t, indexGreetingLink)

	entries, err := exec.db.LatestIndexEntries(filepath.ToSlash(filepath.Join("index", "latest")))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunIndexReplacementAcrossRuns(t *testing.T) {
	outputDir := t.TempDir()
	wdlPath := writeWDL(t, outputDir)

	outputs := map[string]evaluator.OutputValue{"greeting": evaluator.File{Path: "greeting.txt"}}
	exec, _ := newTestExecutor(t, outputDir, outputs)

	first, err := exec.Run(context.Background(), TargetRequest{Source: wdlPath, IndexOn: "latest"})
	require.NoError(t, err)

	second, err := exec.Run(context.Background(), TargetRequest{Source: wdlPath, IndexOn: "latest"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Run.UUID, second.Run.UUID)

	link := filepath.Join(outputDir, "index", "latest", "greeting.txt")
	resolved, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "runs", second.Run.Name, "greeting.txt"), resolved,
		"the second run's index publish must replace the first run's symlink")

	entries, err := exec.db.LatestIndexEntries(filepath.ToSlash(filepath.Join("index", "latest")))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "latest-per-link resolution must collapse both runs' log rows to one per link path")
}

func TestRunForbiddenSourceOutsideAllowedPaths(t *testing.T) {
	outputDir := t.TempDir()
	outsideDir := t.TempDir()
	wdlPath := writeWDL(t, outsideDir)

	exec, _ := newTestExecutor(t, outputDir, nil)

	_, err := exec.Run(context.Background(), TargetRequest{Source: wdlPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRunAcceptsInputsPrefixedWithSelectedTarget(t *testing.T) {
	outputDir := t.TempDir()
	wdlPath := writeWDL(t, outputDir)

	outputs := map[string]evaluator.OutputValue{"greeting": evaluator.File{Path: "greeting.txt"}}
	exec, _ := newTestExecutor(t, outputDir, outputs)

	result, err := exec.Run(context.Background(), TargetRequest{
		Source:     wdlPath,
		InputsJSON: `{"greet.name": "world"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, result.Run.Status)
}

func TestRunRejectsInputsForAMismatchedTarget(t *testing.T) {
	outputDir := t.TempDir()
	wdlPath := writeWDL(t, outputDir)

	exec, _ := newTestExecutor(t, outputDir, nil)

	_, err := exec.Run(context.Background(), TargetRequest{
		Source:     wdlPath,
		InputsJSON: `{"someOtherWorkflow.name": "world"}`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match selected target")
}

func TestRunNotFoundSourceUnderAllowedPrefix(t *testing.T) {
	outputDir := t.TempDir()
	exec, _ := newTestExecutor(t, outputDir, nil)

	missing := filepath.Join(outputDir, "does-not-exist.wdl")
	_, err := exec.Run(context.Background(), TargetRequest{Source: missing})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
