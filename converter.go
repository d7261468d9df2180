package renderkit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alnah/go-renderkit/internal/fileutil"
	"github.com/alnah/go-renderkit/internal/yamlutil"
)

// OutputPostprocessor rewrites a finished output file in place. Registered
// by converters for work that needs the final file on disk.
type OutputPostprocessor func(ctx context.Context, output string) error

// ConverterOptions carries one conversion's inputs. Markdown is the
// post-execution document body; Source is the original input path, used
// only for diagnostics.
type ConverterOptions struct {
	Source     string
	Markdown   string
	Output     string
	Format     Format
	FormatName string
	LibDir     string
	Project    *Project
	Args       []string
	Metadata   Metadata
	TempDir    string
	Quiet      bool
}

// ConvertResult reports conversion side products: resource references the
// output depends on plus postprocessors to run against the written file.
type ConvertResult struct {
	Resources          []string
	HTMLPostprocessors []HTMLPostprocessor
	HTMLFinalizers     []HTMLFinalizer
	Postprocessors     []OutputPostprocessor
}

// Converter turns executed markdown into a final output document.
type Converter interface {
	Convert(ctx context.Context, opts *ConverterOptions) (*ConvertResult, error)
}

// CommandRunner abstracts external command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Compile-time interface implementation check.
var _ CommandRunner = (*ExecRunner)(nil)

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- command name is configured, not user input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// PandocConverter invokes the pandoc binary.
type PandocConverter struct {
	Runner CommandRunner
	Path   string
}

// Compile-time interface implementation check.
var _ Converter = (*PandocConverter)(nil)

// NewPandocConverter returns a converter running the pandoc found on PATH.
func NewPandocConverter() *PandocConverter {
	return &PandocConverter{Runner: ExecRunner{}, Path: "pandoc"}
}

// Convert writes the markdown to a temp file and runs pandoc against it.
// Failures wrap ErrConverterFailed with pandoc's stderr attached.
func (c *PandocConverter) Convert(ctx context.Context, opts *ConverterOptions) (*ConvertResult, error) {
	mdPath, mdCleanup, err := fileutil.WriteTempFile(opts.Markdown, "md")
	if err != nil {
		return nil, fmt.Errorf("staging markdown: %w", err)
	}
	defer mdCleanup()

	args := []string{mdPath, "--from", "markdown"}

	to := opts.Format.Pandoc.To
	if w := opts.Format.Pandoc.Writer; w != "" {
		to = w
	}
	if to != "" {
		args = append(args, "--to", to)
	}
	args = append(args, "--output", opts.Output, "--standalone")
	if opts.Format.Pandoc.SelfContained {
		args = append(args, "--embed-resources")
	}
	for _, path := range opts.Format.Pandoc.IncludeInHeader {
		args = append(args, "--include-in-header", path)
	}
	for _, path := range opts.Format.Pandoc.IncludeBeforeBody {
		args = append(args, "--include-before-body", path)
	}
	for _, path := range opts.Format.Pandoc.IncludeAfterBody {
		args = append(args, "--include-after-body", path)
	}

	if len(opts.Metadata) > 0 {
		metaPath, metaCleanup, err := c.writeMetadataFile(opts.Metadata)
		if err != nil {
			return nil, err
		}
		defer metaCleanup()
		args = append(args, "--metadata-file", metaPath)
	}

	if opts.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, opts.Format.Pandoc.Args...)
	args = append(args, opts.Args...)

	if _, stderr, err := c.Runner.Run(ctx, c.Path, args...); err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrConverterFailed, opts.Source, detail)
	}

	return &ConvertResult{}, nil
}

// writeMetadataFile serializes document metadata for pandoc's
// --metadata-file flag.
func (c *PandocConverter) writeMetadataFile(meta Metadata) (string, func(), error) {
	data, err := yamlutil.Marshal(map[string]any(meta))
	if err != nil {
		return "", nil, fmt.Errorf("encoding metadata: %w", err)
	}
	path, cleanup, err := fileutil.WriteTempFile(string(data), "yml")
	if err != nil {
		return "", nil, fmt.Errorf("staging metadata: %w", err)
	}
	return path, cleanup, nil
}

// outputRelPath rewrites an output path for user-facing reporting:
// project-relative inside a project, relative to the input's directory
// otherwise.
func outputRelPath(output string, project *Project, input string) string {
	if project != nil {
		return project.RelPath(fileutil.CanonicalPath(output))
	}
	if rel, err := filepath.Rel(filepath.Dir(input), output); err == nil {
		return rel
	}
	return output
}

// removeOutputArtifacts deletes supporting directories recorded for an
// output, used when a self-contained document embeds everything.
func removeOutputArtifacts(paths []string) error {
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}
