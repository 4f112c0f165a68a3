package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wdl-platform/corewdl/internal/lspadapter"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Start the LSP server on stdin/stdout",
	Long: `Starts wdlcore's Language Server Protocol server, serving
textDocument/didOpen, didChange, didClose, diagnostic, and hover over
stdio, with the workspace root watched for out-of-editor file changes.`,
	RunE: runLSP,
}

func runLSP(cmd *cobra.Command, args []string) error {
	q := newQueue()
	ctx, cancel := newCancelableContext(cmd)
	defer cancel()
	go q.Run(ctx)

	adapter := lspadapter.New(q)

	watcher, err := lspadapter.NewWatcher(adapter)
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.AddDir(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to watch %s: %v\n", workspace, err)
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	if err := adapter.AddWorkspaceFolder(ctx, "file://"+workspace); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to root workspace: %v\n", err)
	}

	srv := lspadapter.NewServer(adapter)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		if err == ctx.Err() {
			return nil
		}
		return fmt.Errorf("lsp server: %w", err)
	}
	return nil
}
