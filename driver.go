package renderkit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/alnah/go-renderkit/internal/dateutil"
	"github.com/alnah/go-renderkit/internal/fileutil"
)

// ResultTransform rewrites an execution result between execution and
// conversion. Transforms run in registration order; each receives the
// previous one's output.
type ResultTransform func(rc *Context, result *ExecuteResult) (*ExecuteResult, error)

// RunOptions are the caller-facing knobs for a render run. Pointer fields
// distinguish "not given" from an explicit value so CLI flags can override
// metadata only when actually passed.
type RunOptions struct {
	// To selects formats: empty or "default" renders the first resolved
	// format, "all" renders every one, and a comma list renders exactly
	// those names.
	To string
	// Execute forces execution on or off, overriding format metadata.
	Execute *bool
	// Cache forces the engine cache on or off, overriding format metadata.
	Cache *bool
	// CacheRefresh executes unconditionally, ignoring frozen results.
	CacheRefresh bool
	// NoDaemon disables engine daemons for this run.
	NoDaemon bool
	Debug    bool
	Quiet    bool
	// UseFreezer opts into frozen-result reuse for formats that did not
	// request freezing themselves.
	UseFreezer bool
	// Params are execution parameters passed through to the engine.
	Params Metadata
	// Transforms run against each execution result before conversion.
	Transforms []ResultTransform
	Logger     *slog.Logger

	// tempDir overrides the run's scratch root; tests set it to observe
	// intermediate files.
	tempDir string
}

func (o *RunOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// RenderFilesResult reports the outputs of a render run. On error the
// slice still holds every file finished before the failure.
type RenderFilesResult struct {
	Files []RenderedFile
}

// RenderFiles renders each input to its resolved formats in order. The run
// aborts on the first failing (input, format) pair; outputs already
// finished are returned alongside the error so callers can report partial
// progress.
func RenderFiles(ctx context.Context, inputs []string, opts *RunOptions, engines *EngineRegistry, converter Converter, project *Project) (*RenderFilesResult, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if engines == nil {
		engines = NewEngineRegistry()
	}
	logger := opts.logger()

	tempRoot := opts.tempDir
	if tempRoot == "" {
		dir, cleanup, err := fileutil.ScopedTempDir("renderkit-render-*")
		if err != nil {
			return &RenderFilesResult{}, err
		}
		defer cleanup()
		tempRoot = dir
	}

	freezer := NewFreezer(project, logger)
	runID := uuid.NewString()
	logger.Debug("starting render run", "run", runID, "inputs", len(inputs))

	result := &RenderFilesResult{}
	for _, input := range inputs {
		contexts, err := renderContexts(input, opts, project, engines)
		if err != nil {
			return result, err
		}

		for _, rc := range contexts {
			rendered, err := renderContext(ctx, rc, opts, freezer, converter, engines, tempRoot)
			if err != nil {
				return result, err
			}
			result.Files = append(result.Files, *rendered)
			logger.Info("rendered",
				"input", rendered.Input,
				"output", rendered.File,
				"format", rendered.FormatName)
		}
	}
	return result, nil
}

// renderContext drives one (input, format) pair through execution,
// transforms, and conversion.
func renderContext(ctx context.Context, rc *Context, opts *RunOptions, freezer *Freezer, converter Converter, engines *EngineRegistry, tempRoot string) (*RenderedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Date resolution follows the document language for this context.
	if lang, ok := rc.Format.Metadata.String(MetaLang); ok {
		if err := dateutil.SetRenderLocale(lang); err != nil {
			opts.logger().Warn("ignoring invalid document language", "lang", lang, "error", err)
		}
	} else {
		_ = dateutil.SetRenderLocale("")
	}

	isHTML := rc.Format.IsHTMLOutput()
	if isHTML {
		initHTMLEnvironment()
	}

	output := rc.outputPath()
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory for %s: %w", rc.Target.Source, err)
	}
	recipe := &OutputRecipe{Output: output, Format: rc.Format}

	execResult, err := renderExecute(ctx, rc, output, freezer, tempRoot, ExecOptions{
		ResolveDependencies: isHTML,
		AlwaysExecute:       opts.CacheRefresh,
	})
	if err != nil {
		return nil, err
	}

	for _, transform := range opts.Transforms {
		execResult, err = transform(rc, execResult)
		if err != nil {
			return nil, fmt.Errorf("transforming %s: %w", rc.Target.Source, err)
		}
	}

	return renderConverter(ctx, &ExecutedFile{Context: rc, Recipe: recipe, Result: execResult}, converter, engines, tempRoot, opts.Quiet)
}
