package renderkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/alnah/go-renderkit/internal/fileutil"
)

// ExecOptions adjust a single execution pass.
type ExecOptions struct {
	// ResolveDependencies asks the engine to resolve format dependencies
	// inline during execution (HTML outputs).
	ResolveDependencies bool
	// AlwaysExecute bypasses frozen results, forcing a fresh run.
	AlwaysExecute bool
}

// renderExecute runs the execution stage for one context: reuse a frozen
// result when allowed, otherwise invoke the engine, then persist the result
// for future reuse. The intermediate markdown is written next to the input
// when the format keeps it.
func renderExecute(ctx context.Context, rc *Context, output string, freezer *Freezer, tempRoot string, opts ExecOptions) (*ExecuteResult, error) {
	filesDir := inputFilesDir(rc.Target.Source)

	if rc.Project != nil {
		frozen, err := freezer.TryReuse(rc, output, filesDir, opts.AlwaysExecute)
		if err != nil {
			return nil, err
		}
		if frozen != nil {
			return frozen, nil
		}
	}

	// Per-execution scratch space; uniquely named so concurrent renders of
	// different inputs never collide.
	tempDir := filepath.Join(tempRoot, uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating execution temp dir: %w", err)
	}

	result, err := rc.Engine.Execute(ctx, &ExecuteRequest{
		Target:       rc.Target,
		Format:       rc.Format,
		FormatName:   rc.FormatName,
		ResourceDir:  filesDir,
		TempDir:      tempDir,
		LibDir:       rc.LibDir,
		Cwd:          filepath.Dir(rc.Target.Source),
		Params:       rc.Options.Params,
		Dependencies: opts.ResolveDependencies,
		Quiet:        rc.Options.Quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("executing %s with %s engine: %w", rc.Target.Source, rc.Engine.Name(), err)
	}

	if rc.Format.Render.KeepMd {
		if err := writeKeptMarkdown(rc.Target.Source, result.Markdown); err != nil {
			return nil, err
		}
	}

	if rc.Project != nil {
		if err := freezer.Store(rc, output, filesDir, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// writeKeptMarkdown persists the post-execution markdown beside the input.
// Skipped when the input is itself a plain markdown file; overwriting the
// source with its own body would lose the front matter.
func writeKeptMarkdown(input, markdown string) error {
	path := fileutil.StemPath(input) + ".md"
	if path == input {
		return nil
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil { // #nosec G306 -- document artifact
		return fmt.Errorf("writing kept markdown: %w", err)
	}
	return nil
}

// keptMarkdownPath is where writeKeptMarkdown places the intermediate file,
// used by the cleanup stage when keep-md is off.
func keptMarkdownPath(input string) string {
	return fileutil.StemPath(input) + ".md"
}
