// Package main implements the wdlcore CLI, the entry point wiring
// internal/config, internal/store, internal/docgraph, internal/queue,
// internal/executor, and internal/lspadapter together, grounded on
// teacher cmd/nerd/main.go's root-command-plus-split-files layout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wdl-platform/corewdl/internal/config"
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/evaluator"
	evaluatorstub "github.com/wdl-platform/corewdl/internal/evaluator/stub"
	"github.com/wdl-platform/corewdl/internal/executor"
	"github.com/wdl-platform/corewdl/internal/logging"
	"github.com/wdl-platform/corewdl/internal/parsext/stub"
	"github.com/wdl-platform/corewdl/internal/queue"
	"github.com/wdl-platform/corewdl/internal/store"
	wdlscopestub "github.com/wdl-platform/corewdl/internal/wdlscope/stub"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

var (
	workspace  string
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wdlcore",
	Short: "wdlcore - a WDL analysis and execution core",
	Long: `wdlcore loads, analyzes, and executes WDL documents.

It maintains a document graph (import resolution, version fallback,
cycle detection), a single-consumer analysis queue, a run executor with
a provenance index, and an LSP-facing adapter for editor integration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			var err error
			ws, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
		}
		if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if configPath == "" {
			configPath = filepath.Join(ws, ".wdlcore", "config.yaml")
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		if err := logging.Init(filepath.Join(ws, cfg.Logging.Dir), cfg.Logging.DebugMode); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize logging: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: <workspace>/.wdlcore/config.yaml)")

	rootCmd.AddCommand(analyzeCmd, runCmd, lspCmd, indexCmd)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wraps rootCmd.Execute so logging.CloseAll still runs on a command
// error, not just on a clean exit.
func run() error {
	defer logging.CloseAll()
	return rootCmd.Execute()
}

// newCancelableContext derives a context from cmd that is cancelled on
// SIGINT/SIGTERM, the same shutdown-signal handling teacher's
// cmd_mangle_lsp.go wires around its own long-running server loop.
func newCancelableContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openStore opens the configured SQLite database, creating its parent
// directory if needed.
func openStore() (*store.DB, error) {
	path := cfg.Store.DatabasePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return store.Open(path)
}

// newQueue wires a Queue over a fresh document graph. The parse and
// analysis collaborators (parsext.Builder, queue.Analyzer) are external by
// design (SPEC_FULL.md §8/§1): no real WDL grammar or semantic walker ships
// with this core, so the line-scanning stand-ins are wired here as the only
// implementations available, the same way a deployment would substitute
// its own grammar-backed Builder and Analyzer without touching callers.
func newQueue() *queue.Queue {
	graph := docgraph.NewGraph()
	concurrency := runtime.NumCPU()
	if concurrency < 1 {
		concurrency = 1
	}
	return queue.New(graph, stub.New(), wdlscopestub.New(), wdlversion.Policy{
		Supported: []string{"1.0", "1.1", "1.2"},
		Fallback:  cfg.Analysis.FallbackVersion,
		Severity:  parseSeverity(cfg.Analysis.UnsupportedVersionSeverity),
	}, concurrency, time.Duration(cfg.Analysis.HTTPTimeoutSeconds)*time.Second)
}

// parseSeverity maps the config's string severity name to diagnostics.Severity,
// defaulting to warning for anything unrecognized rather than failing startup.
func parseSeverity(s string) diagnostics.Severity {
	switch s {
	case "error":
		return diagnostics.SeverityError
	case "info":
		return diagnostics.SeverityInfo
	case "hint":
		return diagnostics.SeverityHint
	default:
		return diagnostics.SeverityWarning
	}
}

// newExecutor wires an Executor over q and a freshly opened store. The
// evaluator.Dispatcher is likewise external (spec.md §1 excludes the
// task/workflow runtime); evaluator/stub is wired as the default, matching
// newQueue's stance on the parse/analysis collaborators.
func newExecutor(db *store.DB, q *queue.Queue) *executor.Executor {
	return executor.New(db, q, evaluatorstub.New(map[string]evaluator.OutputValue{}), cfg.Execution)
}
