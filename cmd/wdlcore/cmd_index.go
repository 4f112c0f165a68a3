package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and repair the provenance index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild <key>",
	Short: "Re-publish index symlinks for the most recent run under an index key",
	Long: `Rebuild walks the store's index_log for the given key, keeping only
each link_path's latest entry, and re-creates the index/<key>/ symlinks on
disk -- the repair path for a key whose symlinks were deleted or point at
a run directory that no longer exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexRebuild,
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	q := newQueue()
	ex := newExecutor(db, q)
	if err := ex.Rebuild(args[0]); err != nil {
		return fmt.Errorf("rebuild index %s: %w", args[0], err)
	}
	fmt.Printf("rebuilt index/%s\n", args[0])
	return nil
}
