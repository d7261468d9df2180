package renderkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderExecuteRunsEngine(t *testing.T) {
	root := t.TempDir()
	project := newTestProject(t, root, "project:\n  type: default\n")
	input := writeTestFile(t, root, "doc.qmd", "---\ntitle: D\n---\n# Doc\n")

	engine := &fakeEngine{
		name:      "jupyter",
		canFreeze: true,
		executeFn: func(req *ExecuteRequest) (*ExecuteResult, error) {
			return &ExecuteResult{Markdown: "executed: " + req.Target.Markdown}, nil
		},
	}
	format := DefaultFormat("html")
	rc := testContext(t, input, engine, format, project, nil)
	freezer := NewFreezer(project, nil)

	result, err := renderExecute(context.Background(), rc, format.OutputFileFor(input), freezer, t.TempDir(), ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, "executed: # Doc\n", result.Markdown)
	assert.Equal(t, 1, engine.executeCalls)
}

func TestRenderExecuteRequestShape(t *testing.T) {
	root := t.TempDir()
	input := writeTestFile(t, root, "doc.qmd", "# Doc\n")
	tempRoot := t.TempDir()

	var captured *ExecuteRequest
	engine := &fakeEngine{
		name: "jupyter",
		executeFn: func(req *ExecuteRequest) (*ExecuteResult, error) {
			captured = req
			return &ExecuteResult{Markdown: req.Target.Markdown}, nil
		},
	}
	format := DefaultFormat("html")
	opts := &RunOptions{Params: Metadata{"alpha": 1}, Quiet: true}
	rc := testContext(t, input, engine, format, nil, opts)

	_, err := renderExecute(context.Background(), rc, format.OutputFileFor(input), NewFreezer(nil, nil), tempRoot, ExecOptions{ResolveDependencies: true})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, inputFilesDir(input), captured.ResourceDir)
	assert.Equal(t, filepath.Dir(input), captured.Cwd)
	assert.Equal(t, Metadata{"alpha": 1}, captured.Params)
	assert.True(t, captured.Dependencies)
	assert.True(t, captured.Quiet)
	assert.Equal(t, tempRoot, filepath.Dir(captured.TempDir))
	assert.DirExists(t, captured.TempDir)
}

func TestRenderExecuteFreezeReuse(t *testing.T) {
	root := t.TempDir()
	project := newTestProject(t, root, "project:\n  type: default\n")
	input := writeTestFile(t, root, "doc.qmd", "# Doc\n")

	engine := &fakeEngine{name: "jupyter", canFreeze: true}
	format := DefaultFormat("html")
	format.Execute.Freeze = freezep(FreezeAuto)
	rc := testContext(t, input, engine, format, project, nil)
	freezer := NewFreezer(project, nil)
	output := format.OutputFileFor(input)

	_, err := renderExecute(context.Background(), rc, output, freezer, t.TempDir(), ExecOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, engine.executeCalls)

	// Second run thaws the stored result instead of executing.
	_, err = renderExecute(context.Background(), rc, output, freezer, t.TempDir(), ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.executeCalls)

	// AlwaysExecute re-runs despite the snapshot.
	_, err = renderExecute(context.Background(), rc, output, freezer, t.TempDir(), ExecOptions{AlwaysExecute: true})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.executeCalls)
}

func TestRenderExecuteKeepMd(t *testing.T) {
	t.Run("keep-md writes intermediate markdown", func(t *testing.T) {
		root := t.TempDir()
		input := writeTestFile(t, root, "doc.qmd", "# Doc\n")

		engine := &fakeEngine{name: "jupyter", executeFn: func(req *ExecuteRequest) (*ExecuteResult, error) {
			return &ExecuteResult{Markdown: "# Executed\n"}, nil
		}}
		format := DefaultFormat("html")
		format.Render.KeepMd = true
		rc := testContext(t, input, engine, format, nil, nil)

		_, err := renderExecute(context.Background(), rc, format.OutputFileFor(input), NewFreezer(nil, nil), t.TempDir(), ExecOptions{})
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, "doc.md"))
		require.NoError(t, err)
		assert.Equal(t, "# Executed\n", string(data))
	})

	t.Run("markdown source is never overwritten", func(t *testing.T) {
		root := t.TempDir()
		input := writeTestFile(t, root, "doc.md", "# Original\n")

		format := DefaultFormat("html")
		format.Render.KeepMd = true
		rc := testContext(t, input, NewMarkdownEngine(), format, nil, nil)

		_, err := renderExecute(context.Background(), rc, format.OutputFileFor(input), NewFreezer(nil, nil), t.TempDir(), ExecOptions{})
		require.NoError(t, err)

		data, err := os.ReadFile(input)
		require.NoError(t, err)
		assert.Equal(t, "# Original\n", string(data))
	})
}

func TestRenderExecuteEngineFailure(t *testing.T) {
	root := t.TempDir()
	input := writeTestFile(t, root, "doc.qmd", "# Doc\n")

	wantErr := errors.New("kernel died")
	engine := &fakeEngine{name: "jupyter", executeFn: func(*ExecuteRequest) (*ExecuteResult, error) {
		return nil, wantErr
	}}
	format := DefaultFormat("html")
	rc := testContext(t, input, engine, format, nil, nil)

	_, err := renderExecute(context.Background(), rc, format.OutputFileFor(input), NewFreezer(nil, nil), t.TempDir(), ExecOptions{})
	assert.ErrorIs(t, err, wantErr)
}
