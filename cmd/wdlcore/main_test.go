package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/wdl-platform/corewdl/internal/config"
)

// newTestCmd mirrors teacher cli_test.go's pattern of invoking a run*
// handler directly against a bare *cobra.Command, bypassing
// PersistentPreRunE's config/logging bootstrap by setting the package
// globals it would have set.
func newTestCmd(t *testing.T) (*cobra.Command, string) {
	t.Helper()
	ws := t.TempDir()
	workspace = ws
	cfg = config.Default()
	cfg.Execution.OutputDirectory = filepath.Join(ws, "runs")
	cfg.Execution.AllowedFilePaths = []string{ws}
	cfg.Store.DatabasePath = filepath.Join(ws, "core.db")
	t.Cleanup(func() { workspace = ""; cfg = nil })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd, ws
}

func TestRunAnalyzeReportsOKForValidDocument(t *testing.T) {
	cmd, ws := newTestCmd(t)
	path := filepath.Join(ws, "greet.wdl")
	require.NoError(t, os.WriteFile(path, []byte("version 1.0\nworkflow greet {}\n"), 0o644))

	require.NoError(t, runAnalyze(cmd, []string{path}))
}

func TestRunAnalyzeFindsWorkspaceFilesWhenNoArgsGiven(t *testing.T) {
	cmd, ws := newTestCmd(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws, "a.wdl"), []byte("version 1.0\ntask a {}\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(ws, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "sub", "b.wdl"), []byte("version 1.0\ntask b {}\n"), 0o644))

	require.NoError(t, runAnalyze(cmd, nil))
}

func TestRunIndexRebuildOnEmptyKeyIsANoop(t *testing.T) {
	cmd, _ := newTestCmd(t)
	require.NoError(t, runIndexRebuild(cmd, []string{"latest"}))
}
