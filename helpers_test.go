package renderkit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeEngine is a scriptable engine for pipeline tests.
type fakeEngine struct {
	name      string
	canFreeze bool
	languages []string
	exts      []string

	executeCalls int
	executeFn    func(req *ExecuteRequest) (*ExecuteResult, error)
	skipped      int
}

var _ Engine = (*fakeEngine)(nil)

func (e *fakeEngine) Name() string              { return e.name }
func (e *fakeEngine) CanFreeze() bool           { return e.canFreeze }
func (e *fakeEngine) Languages() []string       { return e.languages }
func (e *fakeEngine) ValidExtensions() []string { return e.exts }

func (e *fakeEngine) Target(input string) (*Target, error) {
	md := NewMarkdownEngine()
	return md.Target(input)
}

func (e *fakeEngine) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error) {
	e.executeCalls++
	if e.executeFn != nil {
		return e.executeFn(req)
	}
	return &ExecuteResult{Markdown: req.Target.Markdown}, nil
}

func (e *fakeEngine) ExecuteTargetSkipped(*Target, Format) { e.skipped++ }

// fakeResolverEngine is a fakeEngine that also resolves deferred
// dependencies, recording each request it receives.
type fakeResolverEngine struct {
	fakeEngine
	depsCalls []*DependenciesRequest
	depsFn    func(req *DependenciesRequest) (*DependenciesResult, error)
}

var _ DependenciesResolver = (*fakeResolverEngine)(nil)

func (e *fakeResolverEngine) Dependencies(_ context.Context, req *DependenciesRequest) (*DependenciesResult, error) {
	e.depsCalls = append(e.depsCalls, req)
	if e.depsFn != nil {
		return e.depsFn(req)
	}
	return &DependenciesResult{}, nil
}

// fakeConverter records conversion calls and returns a scripted result.
type fakeConverter struct {
	calls  []*ConverterOptions
	result *ConvertResult
	err    error
}

var _ Converter = (*fakeConverter)(nil)

func (c *fakeConverter) Convert(_ context.Context, opts *ConverterOptions) (*ConvertResult, error) {
	c.calls = append(c.calls, opts)
	if c.err != nil {
		return nil, c.err
	}
	if c.result != nil {
		return c.result, nil
	}
	return &ConvertResult{}, nil
}

// writeTestFile creates a file under dir, creating parents as needed.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestProject writes a project file and loads it.
func newTestProject(t *testing.T, dir, config string) *Project {
	t.Helper()
	writeTestFile(t, dir, "_project.yml", config)
	project, err := LoadProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	return project
}

// testContext assembles a minimal render context around an input file.
func testContext(t *testing.T, input string, engine Engine, format Format, project *Project, opts *RunOptions) *Context {
	t.Helper()
	if opts == nil {
		opts = &RunOptions{}
	}
	target, err := engine.Target(input)
	if err != nil {
		t.Fatal(err)
	}
	rc := &Context{
		Target:     target,
		Options:    opts,
		Engine:     engine,
		FormatName: format.Pandoc.To,
		Format:     format,
		Project:    project,
		LibDir:     contextLibDir(input, project),
	}
	return rc
}

func boolp(v bool) *bool { return &v }

func freezep(m FreezeMode) *FreezeMode { return &m }
