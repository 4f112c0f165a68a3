package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/logging"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze WDL documents and print their diagnostics",
	Long: `Loads each file (or every *.wdl file under the workspace if none are
given), runs the parse-then-analyze pipeline, and prints diagnostics to
stdout. Exits non-zero if any file has an error-severity diagnostic.`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		err := filepath.WalkDir(workspace, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".wdl" {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan workspace: %w", err)
		}
	}
	if len(paths) == 0 {
		fmt.Println("no .wdl files found")
		return nil
	}
	if logging.IsDebugMode() {
		fmt.Fprintf(os.Stderr, "analyzing %d file(s)\n", len(paths))
	}

	q := newQueue()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go q.Run(ctx)

	hasError := false
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		uri := "file://" + abs
		if _, err := q.Add(ctx, uri, true); err != nil {
			return fmt.Errorf("add %s: %w", p, err)
		}
	}

	results, err := q.Analyze(ctx, "", nil)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s: %v\n", r.URI, r.Err)
			hasError = true
			continue
		}
		if len(r.Diagnostics) == 0 {
			fmt.Printf("OK: %s\n", r.URI)
			continue
		}
		for _, d := range r.Diagnostics {
			fmt.Printf("%s: %s\n", r.URI, d)
			if d.Severity == diagnostics.SeverityError {
				hasError = true
			}
		}
	}

	if hasError {
		os.Exit(1)
	}
	return nil
}
