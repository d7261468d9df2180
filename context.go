package renderkit

import (
	"path/filepath"

	"github.com/alnah/go-renderkit/internal/fileutil"
)

// Context is the unit of work for one (input file, format) pair. Created
// once per driver iteration and owned exclusively by it; never reused
// across formats.
type Context struct {
	Target     *Target
	Options    *RunOptions
	Engine     Engine
	FormatName string
	Format     Format
	Project    *Project
	LibDir     string
}

// inputFilesDir is the working directory for an input's supporting files
// (figures, generated assets), beside the source.
func inputFilesDir(input string) string {
	return fileutil.StemPath(input) + "_files"
}

// outputPath locates the final output file for this context: beside the
// source, or mirroring the source's project-relative layout under the
// project's output directory when one is configured.
func (rc *Context) outputPath() string {
	out := rc.Format.OutputFileFor(rc.Target.Source)
	if rc.Project == nil || rc.Project.Config.OutputDir == "" {
		return out
	}
	rel := rc.Project.RelPath(out)
	if filepath.IsAbs(rel) {
		// Source outside the project tree; leave the output beside it.
		return out
	}
	return filepath.Join(rc.Project.Dir, rc.Project.Config.OutputDir, rel)
}

// renderContexts builds one render context per format resolved for input.
func renderContexts(input string, opts *RunOptions, project *Project, engines *EngineRegistry) ([]*Context, error) {
	engine, err := engines.ForFile(input)
	if err != nil {
		return nil, err
	}
	target, err := engine.Target(input)
	if err != nil {
		return nil, err
	}

	formats, err := resolveFormats(target, engine, opts, project)
	if err != nil {
		return nil, err
	}

	contexts := make([]*Context, 0, len(formats))
	for _, rf := range formats {
		contexts = append(contexts, &Context{
			Target:     target,
			Options:    opts,
			Engine:     engine,
			FormatName: rf.Name,
			Format:     rf.Format,
			Project:    project,
			LibDir:     contextLibDir(input, project),
		})
	}
	return contexts, nil
}

// contextLibDir locates the library directory for a context: the shared
// project library directory inside a project, otherwise a libs directory
// under the input's files directory.
func contextLibDir(input string, project *Project) string {
	if project != nil {
		return filepath.Join(project.Dir, project.LibDir())
	}
	return filepath.Join(inputFilesDir(input), "libs")
}
