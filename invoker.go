package renderkit

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alnah/go-renderkit/internal/fileutil"
)

// OutputRecipe fixes the conversion plan for one context before execution
// starts: where the output goes, with which format and extra converter
// arguments. Complete, when set, runs after conversion and may relocate the
// output, returning its final path.
type OutputRecipe struct {
	Output   string
	Args     []string
	Format   Format
	Complete func(recipe *OutputRecipe) (string, error)
}

// ExecutedFile pairs a context with its execution result, ready for
// conversion.
type ExecutedFile struct {
	Context *Context
	Recipe  *OutputRecipe
	Result  *ExecuteResult
}

// ResourceFiles lists resources an output depends on, as literal paths and
// unexpanded glob patterns.
type ResourceFiles struct {
	Globs []string
	Files []string
}

// RenderedFile describes one finished output.
type RenderedFile struct {
	Input         string
	File          string
	Supporting    []string
	Resources     ResourceFiles
	FormatName    string
	Format        Format
	SelfContained bool
}

// renderConverter runs the conversion stage for one executed file: merge
// execution includes and deferred dependencies into the format, invoke the
// converter, then apply engine and HTML postprocessing before cleanup.
func renderConverter(ctx context.Context, executed *ExecutedFile, converter Converter, engines *EngineRegistry, tempDir string, quiet bool) (*RenderedFile, error) {
	if converter == nil {
		return nil, fmt.Errorf("%w: no converter configured", ErrConverterFailed)
	}

	rc := executed.Context
	result := executed.Result
	recipe := executed.Recipe
	format := recipe.Format

	mergeIncludes(&format.Pandoc, result.Includes)

	// Dependencies deferred past execution (typically thawed from a frozen
	// result) resolve now, contributing additional includes. Entries are
	// keyed by engine name; each named engine resolves its own payloads,
	// in name order so include ordering stays deterministic.
	if len(result.EngineDependencies) > 0 {
		names := make([]string, 0, len(result.EngineDependencies))
		for name := range result.EngineDependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			engine := rc.Engine
			if name != rc.Engine.Name() && engines != nil {
				if e, ok := engines.Lookup(name); ok {
					engine = e
				}
			}
			resolver, ok := engine.(DependenciesResolver)
			if !ok {
				continue
			}
			deps, err := resolver.Dependencies(ctx, &DependenciesRequest{
				Target:       rc.Target,
				Format:       format,
				Output:       recipe.Output,
				TempDir:      tempDir,
				LibDir:       rc.LibDir,
				Dependencies: result.EngineDependencies[name],
				Quiet:        quiet,
			})
			if err != nil {
				return nil, fmt.Errorf("resolving %s dependencies for %s: %w", name, rc.Target.Source, err)
			}
			mergeIncludes(&format.Pandoc, deps.Includes)
		}
	}

	convertResult, err := converter.Convert(ctx, &ConverterOptions{
		Source:     rc.Target.Source,
		Markdown:   result.Markdown,
		Output:     recipe.Output,
		Format:     format,
		FormatName: rc.FormatName,
		LibDir:     rc.LibDir,
		Project:    rc.Project,
		Args:       recipe.Args,
		Metadata:   format.Metadata,
		TempDir:    tempDir,
		Quiet:      quiet,
	})
	if err != nil {
		return nil, err
	}
	if convertResult == nil {
		return nil, fmt.Errorf("%w: %s: converter returned no result", ErrConverterFailed, rc.Target.Source)
	}

	if result.PostProcess {
		if pp, ok := rc.Engine.(OutputPostProcessor); ok {
			err := pp.PostProcess(ctx, &PostProcessRequest{
				Target:   rc.Target,
				Format:   format,
				Output:   recipe.Output,
				Preserve: result.Preserve,
				Quiet:    quiet,
			})
			if err != nil {
				return nil, fmt.Errorf("engine postprocessing %s: %w", recipe.Output, err)
			}
		}
	}

	isHTML := format.IsHTMLOutput()
	if !isHTML && (len(convertResult.HTMLPostprocessors) > 0 || len(convertResult.HTMLFinalizers) > 0) {
		return nil, fmt.Errorf("%w: format %s", ErrNonHTMLPostprocess, rc.FormatName)
	}

	var ppResult HTMLPostProcessResult
	if isHTML {
		ppResult, err = postprocessHTML(recipe.Output, format.Metadata,
			convertResult.HTMLPostprocessors, convertResult.HTMLFinalizers)
		if err != nil {
			return nil, err
		}
	}

	for _, pp := range convertResult.Postprocessors {
		if err := pp(ctx, recipe.Output); err != nil {
			return nil, fmt.Errorf("postprocessing %s: %w", recipe.Output, err)
		}
	}

	finalOutput := recipe.Output
	if recipe.Complete != nil {
		finalOutput, err = recipe.Complete(recipe)
		if err != nil {
			return nil, fmt.Errorf("completing %s: %w", recipe.Output, err)
		}
		if finalOutput == "" {
			finalOutput = recipe.Output
		}
	}

	selfContained := format.Pandoc.SelfContained || SelfContainedExt(filepath.Ext(finalOutput))

	supporting := collectSupporting(rc, result, ppResult, isHTML)

	if selfContained {
		// Everything the document needs is embedded; the supporting trees
		// are conversion scaffolding.
		if err := removeOutputArtifacts(supporting); err != nil {
			return nil, err
		}
		supporting = nil
	}
	if !rc.Format.Render.KeepMd {
		// The intermediate markdown path can coincide with the source (a
		// plain .md input) or with the output itself (markdown formats);
		// neither is ours to delete.
		if kept := keptMarkdownPath(rc.Target.Source); kept != rc.Target.Source && kept != finalOutput {
			if err := fileutil.RemoveIfExists(kept); err != nil {
				return nil, err
			}
		}
	}

	// Resource references come from two reporters: the converter itself and
	// the HTML postprocessors.
	refs := make([]string, 0, len(convertResult.Resources)+len(ppResult.Resources))
	refs = append(refs, convertResult.Resources...)
	refs = append(refs, ppResult.Resources...)
	var resources ResourceFiles
	resources.Files, resources.Globs = splitResourceGlobs(refs)

	return &RenderedFile{
		Input:         outputRelPath(rc.Target.Source, rc.Project, rc.Target.Source),
		File:          outputRelPath(finalOutput, rc.Project, rc.Target.Source),
		Supporting:    supporting,
		Resources:     resources,
		FormatName:    rc.FormatName,
		Format:        format,
		SelfContained: selfContained,
	}, nil
}

// collectSupporting gathers the directories that must travel with an
// output: the input's files directory, anything the postprocessors
// reported, and for HTML the shared library directory when it lives outside
// the files directory.
func collectSupporting(rc *Context, result *ExecuteResult, ppResult HTMLPostProcessResult, isHTML bool) []string {
	var supporting []string
	seen := map[string]bool{}
	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		supporting = append(supporting, path)
	}

	if filesDir := inputFilesDir(rc.Target.Source); fileutil.DirExists(filesDir) {
		add(filesDir)
	}
	for _, path := range result.Supporting {
		add(path)
	}
	for _, path := range ppResult.Supporting {
		add(path)
	}
	if isHTML && fileutil.DirExists(rc.LibDir) {
		filesDir := inputFilesDir(rc.Target.Source)
		if rel, err := filepath.Rel(filesDir, rc.LibDir); err != nil || strings.HasPrefix(rel, "..") {
			add(rc.LibDir)
		}
	}
	return supporting
}

// mergeIncludes appends include fragments to a format's converter options.
func mergeIncludes(p *PandocOptions, inc Includes) {
	p.IncludeInHeader = append(p.IncludeInHeader, inc.InHeader...)
	p.IncludeBeforeBody = append(p.IncludeBeforeBody, inc.BeforeBody...)
	p.IncludeAfterBody = append(p.IncludeAfterBody, inc.AfterBody...)
}

// splitResourceGlobs separates literal file references from glob patterns.
func splitResourceGlobs(refs []string) (files, globs []string) {
	for _, ref := range refs {
		if strings.ContainsAny(ref, "*?[") {
			globs = append(globs, ref)
			continue
		}
		files = append(files, ref)
	}
	return files, globs
}
