package renderkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveTestTarget(t *testing.T, dir, name, content string) *Target {
	t.Helper()
	input := writeTestFile(t, dir, name, content)
	target, err := NewMarkdownEngine().Target(input)
	require.NoError(t, err)
	return target
}

func resolvedNames(formats []ResolvedFormat) []string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Name)
	}
	return names
}

func TestResolveFormatsDefaults(t *testing.T) {
	engine := NewMarkdownEngine()

	t.Run("empty metadata yields single html format", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "doc.md", "# Doc\n")
		formats, err := resolveFormats(target, engine, &RunOptions{}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"html"}, resolvedNames(formats))
		assert.Equal(t, "html", formats[0].Format.Render.OutputExt)
	})

	t.Run("base converter target infers implicit format", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "doc.md", "---\nto: gfm\n---\n# Doc\n")
		formats, err := resolveFormats(target, engine, &RunOptions{}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"gfm"}, resolvedNames(formats))
		assert.Equal(t, "gfm", formats[0].Format.Pandoc.To)
	})
}

func TestResolveFormatsToSelection(t *testing.T) {
	engine := NewMarkdownEngine()
	content := "---\nformat:\n  pdf: default\n  html:\n    toc: true\n  docx: default\n---\n# Doc\n"

	tests := []struct {
		name string
		to   string
		want []string
	}{
		{"empty renders first declared", "", []string{"pdf"}},
		{"default keyword renders first declared", ToDefault, []string{"pdf"}},
		{"all renders every declared format", ToAll, []string{"pdf", "html", "docx"}},
		{"single name", "html", []string{"html"}},
		{"comma list preserves given order", "docx,pdf", []string{"docx", "pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := resolveTestTarget(t, t.TempDir(), "doc.qmd", content)
			formats, err := resolveFormats(target, engine, &RunOptions{To: tt.to}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolvedNames(formats))
		})
	}
}

func TestResolveFormatsLayering(t *testing.T) {
	engine := NewMarkdownEngine()

	t.Run("input format overrides project format", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: default
format:
  html:
    toc: true
`)
		target := resolveTestTarget(t, root, "doc.qmd", "---\nformat:\n  pdf: default\n---\n# Doc\n")

		formats, err := resolveFormats(target, engine, &RunOptions{}, project)
		require.NoError(t, err)
		assert.Equal(t, []string{"pdf"}, resolvedNames(formats))
	})

	t.Run("project metadata flows into the format", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: default
author: Team
format:
  html:
    toc: true
`)
		target := resolveTestTarget(t, root, "doc.qmd", "---\ntitle: Doc\n---\n# Doc\n")

		formats, err := resolveFormats(target, engine, &RunOptions{}, project)
		require.NoError(t, err)
		require.Equal(t, []string{"html"}, resolvedNames(formats))
		assert.Equal(t, "Team", formats[0].Format.Metadata["author"])
		assert.Equal(t, "Doc", formats[0].Format.Metadata["title"])
		assert.Equal(t, true, formats[0].Format.Metadata["toc"])
	})

	t.Run("directory metadata sits between project and input", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: default
author: Project
description: project-level
format:
  html: default
`)
		writeTestFile(t, root, "posts/_metadata.yml", "author: Dir\ncategory: posts\n")
		target := resolveTestTarget(t, root, "posts/doc.qmd", "---\nauthor: Input\n---\n# Doc\n")

		formats, err := resolveFormats(target, engine, &RunOptions{}, project)
		require.NoError(t, err)
		meta := formats[0].Format.Metadata
		assert.Equal(t, "Input", meta["author"])
		assert.Equal(t, "posts", meta["category"])
		assert.Equal(t, "project-level", meta["description"])
	})

	t.Run("book project renders only its declared formats", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: book
format:
  html: default
  pdf: default
`)
		target := resolveTestTarget(t, root, "ch1.qmd", "---\nformat:\n  docx: default\n---\n# Ch\n")

		formats, err := resolveFormats(target, engine, &RunOptions{To: ToAll}, project)
		require.NoError(t, err)
		assert.Equal(t, []string{"html", "pdf"}, resolvedNames(formats))
	})
}

func TestResolveFormatsRestriction(t *testing.T) {
	engine := NewMarkdownEngine()
	content := "---\nformats: [html]\nformat:\n  pdf: default\n  html: default\n---\n# Doc\n"

	t.Run("formats list intersects candidates and cancels to", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "doc.qmd", content)
		formats, err := resolveFormats(target, engine, &RunOptions{To: "pdf"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"html"}, resolvedNames(formats))
	})
}

func TestResolveFormatsWebsiteProject(t *testing.T) {
	engine := NewMarkdownEngine()

	t.Run("non-html formats dropped", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: website
format:
  html: default
`)
		target := resolveTestTarget(t, root, "page.qmd", "---\nformat:\n  pdf: default\n  html: default\n---\n# P\n")

		formats, err := resolveFormats(target, engine, &RunOptions{To: ToAll}, project)
		require.NoError(t, err)
		assert.Equal(t, []string{"html"}, resolvedNames(formats))
	})

	t.Run("only unsupported formats is an error", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, "project:\n  type: website\n")
		target := resolveTestTarget(t, root, "page.qmd", "---\nformat:\n  pdf: default\n---\n# P\n")

		_, err := resolveFormats(target, engine, &RunOptions{To: ToAll}, project)
		assert.ErrorIs(t, err, ErrNoFormats)
	})

	t.Run("project theme pins over input theme", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: website
theme: cosmo
format:
  html: default
`)
		target := resolveTestTarget(t, root, "page.qmd", "---\ntheme: darkly\n---\n# P\n")

		formats, err := resolveFormats(target, engine, &RunOptions{}, project)
		require.NoError(t, err)
		assert.Equal(t, "cosmo", formats[0].Format.Metadata["theme"])
	})

	t.Run("pandoc theme does not pin", func(t *testing.T) {
		root := t.TempDir()
		project := newTestProject(t, root, `
project:
  type: website
theme: pandoc
format:
  html: default
`)
		target := resolveTestTarget(t, root, "page.qmd", "---\ntheme: darkly\n---\n# P\n")

		formats, err := resolveFormats(target, engine, &RunOptions{}, project)
		require.NoError(t, err)
		assert.Equal(t, "darkly", formats[0].Format.Metadata["theme"])
	})
}

func TestResolveFormatsEchoDefault(t *testing.T) {
	engine := NewMarkdownEngine()

	t.Run("server document defaults echo off", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "app.qmd", "---\nserver: shiny\n---\n# App\n")
		formats, err := resolveFormats(target, engine, &RunOptions{}, nil)
		require.NoError(t, err)
		echo := formats[0].Format.Execute.Echo
		require.NotNil(t, echo)
		assert.False(t, *echo)
	})

	t.Run("explicit echo wins over server default", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "app.qmd", "---\nserver: shiny\necho: true\n---\n# App\n")
		formats, err := resolveFormats(target, engine, &RunOptions{}, nil)
		require.NoError(t, err)
		echo := formats[0].Format.Execute.Echo
		require.NotNil(t, echo)
		assert.True(t, *echo)
	})

	t.Run("no server leaves echo unset", func(t *testing.T) {
		target := resolveTestTarget(t, t.TempDir(), "doc.qmd", "---\ntitle: D\n---\n# D\n")
		formats, err := resolveFormats(target, engine, &RunOptions{}, nil)
		require.NoError(t, err)
		assert.Nil(t, formats[0].Format.Execute.Echo)
	})
}

func TestResolveFormatsCLIOverrides(t *testing.T) {
	engine := NewMarkdownEngine()
	content := "---\nexecute:\n  enabled: true\n  cache: true\n---\n# Doc\n"

	target := resolveTestTarget(t, t.TempDir(), "doc.qmd", content)
	formats, err := resolveFormats(target, engine, &RunOptions{
		Execute:  boolp(false),
		Cache:    boolp(false),
		NoDaemon: true,
	}, nil)
	require.NoError(t, err)

	exec := formats[0].Format.Execute
	require.NotNil(t, exec.Enabled)
	assert.False(t, *exec.Enabled)
	require.NotNil(t, exec.Cache)
	assert.False(t, *exec.Cache)
	require.NotNil(t, exec.Daemon)
	assert.Equal(t, 0, *exec.Daemon)
}
