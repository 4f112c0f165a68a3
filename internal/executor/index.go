package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wdl-platform/corewdl/internal/evaluator"
	"github.com/wdl-platform/corewdl/internal/logging"
	"github.com/wdl-platform/corewdl/internal/store"
)

// rebuildSlowThreshold gates when Rebuild logs at warn instead of debug.
const rebuildSlowThreshold = 2 * time.Second

// Index publishes a run's outputs under index/<indexKey>/ as symlinks,
// implementing spec.md §4.5 indexing steps 1-4. indexKey may contain path
// separators; it is treated as an opaque relative sub-path.
func (e *Executor) Index(runID uuid.UUID, runName string, outputs map[string]evaluator.OutputValue, indexKey string) error {
	timer := logging.StartTimer(logging.CategoryIndex, "Index")
	defer timer.Stop()

	indexKey = strings.Trim(filepath.ToSlash(indexKey), "/")
	indexDir := filepath.Join(e.cfg.OutputDirectory, "index", filepath.FromSlash(indexKey))
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	runRelBase := filepath.Join("runs", runName)

	if err := e.publishSymlink(runID, indexDir, "outputs.json", filepath.Join(runRelBase, "outputs.json")); err != nil {
		return err
	}

	leaves := collectLeaves(outputs)
	for _, leaf := range leaves {
		base := filepath.Base(leaf)
		targetRel := filepath.Join(runRelBase, leaf)
		absReferent := filepath.Join(e.cfg.OutputDirectory, targetRel)
		if _, err := os.Stat(absReferent); err != nil {
			// Partial state (symlinks and log rows already written) is
			// preserved; the caller surfaces this as a failed index step.
			return fmt.Errorf("index referent missing: %s: %w", absReferent, err)
		}
		if err := e.publishSymlink(runID, indexDir, base, targetRel); err != nil {
			return err
		}
	}
	return nil
}

// publishSymlink creates or replaces the symlink at indexDir/name pointing
// to <output_directory>/<targetRel>, and appends the corresponding
// index_log row.
func (e *Executor) publishSymlink(runID uuid.UUID, indexDir, name, targetRel string) error {
	linkPath := filepath.Join(indexDir, name)

	rel, err := filepath.Rel(indexDir, filepath.Join(e.cfg.OutputDirectory, targetRel))
	if err != nil {
		return fmt.Errorf("compute relative symlink target: %w", err)
	}

	os.Remove(linkPath)
	if err := os.Symlink(rel, linkPath); err != nil {
		return fmt.Errorf("create symlink %s: %w", linkPath, err)
	}

	storedLink, err := filepath.Rel(e.cfg.OutputDirectory, linkPath)
	if err != nil {
		return fmt.Errorf("compute stored link path: %w", err)
	}
	return e.db.AppendIndexLogEntry(runID, filepath.ToSlash(storedLink), filepath.ToSlash(targetRel), time.Now().UTC())
}

// collectLeaves walks an outputs value tree collecting every File/Directory
// leaf path, per spec.md §4.5 step 3.
func collectLeaves(outputs map[string]evaluator.OutputValue) []string {
	var leaves []string
	var walk func(v evaluator.OutputValue)
	walk = func(v evaluator.OutputValue) {
		switch t := v.(type) {
		case evaluator.File:
			leaves = append(leaves, t.Path)
		case evaluator.Directory:
			leaves = append(leaves, t.Path)
		case map[string]evaluator.OutputValue:
			for _, child := range t {
				walk(child)
			}
		case []evaluator.OutputValue:
			for _, child := range t {
				walk(child)
			}
		}
	}
	for _, v := range outputs {
		walk(v)
	}
	return leaves
}

// Rebuild reconstructs the index directory for indexKey from the
// index_log table: the latest row per link_path is (re)created, and any
// existing symlink in the tree with no corresponding latest row is
// removed, per spec.md §4.5 rebuild.
func (e *Executor) Rebuild(indexKey string) error {
	timer := logging.StartTimer(logging.CategoryIndex, "Rebuild")
	defer timer.StopWithThreshold(rebuildSlowThreshold)

	indexKey = strings.Trim(filepath.ToSlash(indexKey), "/")
	prefix := filepath.ToSlash(filepath.Join("index", indexKey))

	entries, err := e.db.LatestIndexEntries(prefix)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	wanted := make(map[string]store.IndexLogEntry, len(entries))
	for _, entry := range entries {
		wanted[entry.LinkPath] = entry
	}

	indexDir := filepath.Join(e.cfg.OutputDirectory, "index", filepath.FromSlash(indexKey))
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("rebuild: create index dir: %w", err)
	}

	for linkPath, entry := range wanted {
		abs := filepath.Join(e.cfg.OutputDirectory, filepath.FromSlash(linkPath))
		rel, err := filepath.Rel(filepath.Dir(abs), filepath.Join(e.cfg.OutputDirectory, filepath.FromSlash(entry.TargetPath)))
		if err != nil {
			return fmt.Errorf("rebuild: compute relative target for %s: %w", linkPath, err)
		}
		os.Remove(abs)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("rebuild: create parent for %s: %w", linkPath, err)
		}
		if err := os.Symlink(rel, abs); err != nil {
			return fmt.Errorf("rebuild: create symlink %s: %w", abs, err)
		}
	}

	return filepath.WalkDir(indexDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		linkPath, err := filepath.Rel(e.cfg.OutputDirectory, path)
		if err != nil {
			return nil
		}
		if _, ok := wanted[filepath.ToSlash(linkPath)]; !ok {
			os.Remove(path)
		}
		return nil
	})
}
