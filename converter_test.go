package renderkit

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	stdout     string
	stderr     string
	err        error
	calledWith []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	m.calledWith = append([]string{name}, args...)
	return m.stdout, m.stderr, m.err
}

func hasFlagPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestPandocConverterArgs(t *testing.T) {
	mock := &mockRunner{}
	conv := &PandocConverter{Runner: mock, Path: "pandoc"}

	_, err := conv.Convert(context.Background(), &ConverterOptions{
		Source:   "doc.qmd",
		Markdown: "# Doc\n",
		Output:   "doc.html",
		Format: Format{
			Pandoc: PandocOptions{
				To:               "html5",
				SelfContained:    true,
				IncludeInHeader:  []string{"head.html"},
				IncludeAfterBody: []string{"after.html"},
				Args:             []string{"--mathjax"},
			},
		},
		Args: []string{"--toc"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, mock.calledWith)
	assert.Equal(t, "pandoc", mock.calledWith[0])
	args := mock.calledWith[1:]
	assert.True(t, hasFlagPair(args, "--from", "markdown"))
	assert.True(t, hasFlagPair(args, "--to", "html5"))
	assert.True(t, hasFlagPair(args, "--output", "doc.html"))
	assert.Contains(t, args, "--standalone")
	assert.Contains(t, args, "--embed-resources")
	assert.True(t, hasFlagPair(args, "--include-in-header", "head.html"))
	assert.True(t, hasFlagPair(args, "--include-after-body", "after.html"))
	assert.Contains(t, args, "--mathjax")
	assert.Contains(t, args, "--toc")
}

func TestPandocConverterWriterOverridesTo(t *testing.T) {
	mock := &mockRunner{}
	conv := &PandocConverter{Runner: mock, Path: "pandoc"}

	_, err := conv.Convert(context.Background(), &ConverterOptions{
		Markdown: "# Doc\n",
		Output:   "doc.tex",
		Format:   Format{Pandoc: PandocOptions{To: "pdf", Writer: "latex"}},
	})
	require.NoError(t, err)
	assert.True(t, hasFlagPair(mock.calledWith[1:], "--to", "latex"))
}

func TestPandocConverterMetadataFile(t *testing.T) {
	var metaContent string
	mock := &mockRunner{}
	conv := &PandocConverter{Runner: mock, Path: "pandoc"}
	conv.Runner = runnerFunc(func(_ context.Context, name string, args ...string) (string, string, error) {
		mock.calledWith = append([]string{name}, args...)
		// The metadata temp file must still exist while pandoc runs.
		for i := 0; i < len(args)-1; i++ {
			if args[i] == "--metadata-file" {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					return "", "", err
				}
				metaContent = string(data)
			}
		}
		return "", "", nil
	})

	_, err := conv.Convert(context.Background(), &ConverterOptions{
		Markdown: "# Doc\n",
		Output:   "doc.html",
		Format:   Format{Pandoc: PandocOptions{To: "html"}},
		Metadata: Metadata{"title": "Report"},
	})
	require.NoError(t, err)
	assert.Contains(t, metaContent, "title: Report")
}

type runnerFunc func(ctx context.Context, name string, args ...string) (string, string, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	return f(ctx, name, args...)
}

func TestPandocConverterFailure(t *testing.T) {
	t.Run("stderr surfaces in the error", func(t *testing.T) {
		mock := &mockRunner{stderr: "pandoc: unknown writer html9\n", err: errors.New("exit status 21")}
		conv := &PandocConverter{Runner: mock, Path: "pandoc"}

		_, err := conv.Convert(context.Background(), &ConverterOptions{
			Source:   "doc.qmd",
			Markdown: "# Doc\n",
			Output:   "doc.html",
			Format:   Format{Pandoc: PandocOptions{To: "html9"}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConverterFailed)
		assert.True(t, strings.Contains(err.Error(), "unknown writer html9"))
	})

	t.Run("empty stderr falls back to the exec error", func(t *testing.T) {
		mock := &mockRunner{err: errors.New("executable not found")}
		conv := &PandocConverter{Runner: mock, Path: "pandoc"}

		_, err := conv.Convert(context.Background(), &ConverterOptions{
			Markdown: "# Doc\n",
			Output:   "doc.html",
			Format:   Format{Pandoc: PandocOptions{To: "html"}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConverterFailed)
		assert.True(t, strings.Contains(err.Error(), "executable not found"))
	})
}

func TestPandocConverterQuiet(t *testing.T) {
	mock := &mockRunner{}
	conv := &PandocConverter{Runner: mock, Path: "pandoc"}

	_, err := conv.Convert(context.Background(), &ConverterOptions{
		Markdown: "# Doc\n",
		Output:   "doc.html",
		Format:   Format{Pandoc: PandocOptions{To: "html"}},
		Quiet:    true,
	})
	require.NoError(t, err)
	assert.Contains(t, mock.calledWith, "--quiet")
}
