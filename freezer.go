package renderkit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alnah/go-renderkit/internal/fileutil"
)

// Freeze cache directory names. The hidden cache lives under the project
// scratch directory and is always kept current; the visible cache is the
// user-facing mirror maintained only on explicit opt-in.
const (
	projectScratchDir = ".renderkit"
	freezeDirName     = "_freeze"
)

// freezeSnapshot is the persisted form of an execution result.
type freezeSnapshot struct {
	Result  *ExecuteResult `json:"result"`
	Created time.Time      `json:"created"`
}

// Freezer stores and reuses execution results per (input, output) inside a
// project. It performs no locking: renders against one project are assumed
// to be serialized at the process level.
type Freezer struct {
	project *Project
	logger  *slog.Logger
}

// NewFreezer creates a freezer for a project. The project may be nil, in
// which case every operation is a no-op.
func NewFreezer(project *Project, logger *slog.Logger) *Freezer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Freezer{project: project, logger: logger}
}

// HiddenRoot is the always-current cache directory.
func (f *Freezer) HiddenRoot() string {
	return filepath.Join(f.project.Dir, projectScratchDir, freezeDirName)
}

// VisibleRoot is the user-visible cache directory.
func (f *Freezer) VisibleRoot() string {
	return filepath.Join(f.project.Dir, freezeDirName)
}

// entryDir locates an input's cache entry under root: the project-relative
// source path with its extension dropped.
func (f *Freezer) entryDir(root string, rc *Context) string {
	rel := f.project.RelPath(fileutil.StemPath(rc.Target.Source))
	return filepath.Join(root, rel)
}

func snapshotPath(entryDir, output string) string {
	return filepath.Join(entryDir, filepath.Base(output)+".json")
}

func figuresPath(entryDir, output string) string {
	return filepath.Join(entryDir, filepath.Base(output)+"_files")
}

// transientResultsDir holds intermediate execution artifacts for one run.
// It is removed after the snapshot is persisted, and again before reuse so
// a stale run cannot leak into a thawed result.
func transientResultsDir(filesDir string) string {
	return filepath.Join(filesDir, "execute-results")
}

// freezeEligible checks the reuse preconditions shared by TryReuse: the
// engine must support freezing, execution must not be explicitly disabled,
// and the format must opt in (or the caller via the implicit auto mode).
func (f *Freezer) freezeEligible(rc *Context) bool {
	if f.project == nil || !rc.Engine.CanFreeze() {
		return false
	}
	if rc.Format.Execute.Enabled != nil && !*rc.Format.Execute.Enabled {
		return false
	}
	if mode := rc.Format.Execute.Freeze; mode != nil && *mode != FreezeNever {
		return true
	}
	return rc.Options.UseFreezer
}

// TryReuse attempts to satisfy a context from the hidden cache. A nil
// result with nil error is a cache miss; the caller executes normally.
// This is the only path that bypasses engine execution entirely.
func (f *Freezer) TryReuse(rc *Context, output, filesDir string, alwaysExecute bool) (*ExecuteResult, error) {
	if alwaysExecute || !f.freezeEligible(rc) {
		return nil, nil
	}

	entry := f.entryDir(f.HiddenRoot(), rc)

	// Thaw cached supporting files into the working files directory first;
	// the snapshot references them.
	if figs := figuresPath(entry, output); fileutil.DirExists(figs) {
		if err := fileutil.CopyDir(figs, filesDir); err != nil {
			return nil, fmt.Errorf("thawing supporting files: %w", err)
		}
	}

	snap, err := f.readSnapshot(snapshotPath(entry, output))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		f.logger.Debug("no freeze snapshot, executing",
			"input", rc.Target.Source,
			"output", filepath.Base(output))
		return nil, nil
	}

	// Restore the project-wide library directory alongside the result.
	cachedLib := filepath.Join(f.HiddenRoot(), filepath.Base(rc.LibDir))
	if fileutil.DirExists(cachedLib) {
		if err := fileutil.CopyDir(cachedLib, rc.LibDir); err != nil {
			return nil, fmt.Errorf("restoring library directory: %w", err)
		}
	}

	if err := fileutil.RemoveIfExists(transientResultsDir(filesDir)); err != nil {
		return nil, err
	}

	if observer, ok := rc.Engine.(SkipObserver); ok {
		observer.ExecuteTargetSkipped(rc.Target, rc.Format)
	}

	f.logger.Info("reusing frozen result",
		"input", rc.Target.Source,
		"output", filepath.Base(output),
		"frozen", snap.Created.Format(time.RFC3339))
	return snap.Result, nil
}

// Store persists an execution result. The hidden cache is always written
// (durability safety net, independent of user configuration); the visible
// cache is mirrored on an explicit freeze directive and pruned on an
// explicit opt-out, so neither is ever left stale.
func (f *Freezer) Store(rc *Context, output, filesDir string, result *ExecuteResult) error {
	if f.project == nil || !rc.Engine.CanFreeze() {
		return nil
	}

	hiddenEntry := f.entryDir(f.HiddenRoot(), rc)
	if err := f.writeSnapshot(snapshotPath(hiddenEntry, output), result); err != nil {
		return err
	}
	if fileutil.DirExists(filesDir) {
		if err := fileutil.CopyDir(filesDir, figuresPath(hiddenEntry, output)); err != nil {
			return fmt.Errorf("caching supporting files: %w", err)
		}
	}
	if fileutil.DirExists(rc.LibDir) {
		cachedLib := filepath.Join(f.HiddenRoot(), filepath.Base(rc.LibDir))
		if err := fileutil.CopyDir(rc.LibDir, cachedLib); err != nil {
			return fmt.Errorf("caching library directory: %w", err)
		}
	}

	if mode := rc.Format.Execute.Freeze; mode != nil {
		visibleEntry := f.entryDir(f.VisibleRoot(), rc)
		switch *mode {
		case FreezeAuto, FreezeAlways:
			if err := f.writeSnapshot(snapshotPath(visibleEntry, output), result); err != nil {
				return err
			}
			if figs := figuresPath(hiddenEntry, output); fileutil.DirExists(figs) {
				if err := fileutil.CopyDir(figs, figuresPath(visibleEntry, output)); err != nil {
					return fmt.Errorf("mirroring supporting files: %w", err)
				}
			}
			f.logger.Debug("froze result",
				"input", rc.Target.Source,
				"output", filepath.Base(output))
		case FreezeNever:
			if err := f.pruneVisible(visibleEntry, output); err != nil {
				return err
			}
		}
	}

	return fileutil.RemoveIfExists(transientResultsDir(filesDir))
}

// pruneVisible removes a visible cache entry (snapshot, figures, and any
// directories left empty) so the cache reflects current configuration.
func (f *Freezer) pruneVisible(entryDir, output string) error {
	if err := fileutil.RemoveIfExists(snapshotPath(entryDir, output)); err != nil {
		return err
	}
	if err := fileutil.RemoveIfExists(figuresPath(entryDir, output)); err != nil {
		return err
	}
	if err := fileutil.PruneEmptyDirs(entryDir, f.VisibleRoot()); err != nil {
		return err
	}
	f.logger.Debug("pruned visible freeze entry",
		"input", entryDir,
		"output", filepath.Base(output))
	return nil
}

func (f *Freezer) readSnapshot(path string) (*freezeSnapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from project layout
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap freezeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A malformed snapshot is a cache miss, not a render failure.
		f.logger.Warn("discarding corrupt freeze snapshot", "path", path, "error", err)
		return nil, nil
	}
	if snap.Result == nil {
		f.logger.Warn("discarding empty freeze snapshot", "path", path)
		return nil, nil
	}
	return &snap, nil
}

func (f *Freezer) writeSnapshot(path string, result *ExecuteResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(freezeSnapshot{Result: result, Created: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 -- cache is project content
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
