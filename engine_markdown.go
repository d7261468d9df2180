package renderkit

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/alnah/go-renderkit/internal/yamlutil"
)

const markdownEngineName = "markdown"

// markdownParser is shared by cell detection; goldmark parsers are safe for
// concurrent use and cheap to keep for the process lifetime.
var markdownParser = goldmark.New()

// cellLanguages extracts the languages of executable cells in an input:
// fenced code blocks whose info string is braced, e.g. ```{python}.
// Non-braced fences are plain listings, not computations.
func cellLanguages(input string) ([]string, error) {
	src, err := os.ReadFile(input) // #nosec G304 -- render input chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", input, err)
	}
	_, body := yamlutil.PartitionFrontMatter(src)
	return cellLanguagesIn(body), nil
}

func cellLanguagesIn(body []byte) []string {
	reader := text.NewReader(body)
	root := markdownParser.Parser().Parse(reader)

	var langs []string
	seen := map[string]bool{}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok || fence.Info == nil {
			return ast.WalkContinue, nil
		}
		info := strings.TrimSpace(string(fence.Info.Value(body)))
		if !strings.HasPrefix(info, "{") || !strings.Contains(info, "}") {
			return ast.WalkContinue, nil
		}
		lang := strings.TrimPrefix(info[:strings.Index(info, "}")], "{")
		// Drop cell options like {python echo=false}.
		if idx := strings.IndexAny(lang, " \t,"); idx != -1 {
			lang = lang[:idx]
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
		return ast.WalkContinue, nil
	})
	return langs
}

// MarkdownEngine handles documents without computations. It passes the
// markdown body through untouched and cannot freeze (there is nothing to
// reuse).
type MarkdownEngine struct{}

// Compile-time interface implementation check.
var _ Engine = (*MarkdownEngine)(nil)

// NewMarkdownEngine returns the built-in markdown engine.
func NewMarkdownEngine() *MarkdownEngine { return &MarkdownEngine{} }

func (e *MarkdownEngine) Name() string { return markdownEngineName }

func (e *MarkdownEngine) CanFreeze() bool { return false }

func (e *MarkdownEngine) Languages() []string { return nil }

func (e *MarkdownEngine) ValidExtensions() []string {
	return []string{".md", ".markdown", ".qmd"}
}

// Target reads the input and splits front matter from the body. Front
// matter that fails to parse surfaces as ErrInvalidFrontMatter.
func (e *MarkdownEngine) Target(input string) (*Target, error) {
	src, err := os.ReadFile(input) // #nosec G304 -- render input chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", input, err)
	}
	meta, body := yamlutil.PartitionFrontMatter(src)

	target := &Target{
		Source:   input,
		Input:    input,
		Markdown: string(body),
		Metadata: Metadata{},
	}
	if len(meta) > 0 {
		var parsed Metadata
		if err := yamlutil.Unmarshal(meta, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontMatter, input, err)
		}
		target.Metadata = parsed
		target.FormatOrder = yamlutil.MappingKeys(meta, MetaFormat)
	}
	return target, nil
}

// Execute returns the body as-is; a plain markdown document has no
// computations to run.
func (e *MarkdownEngine) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ExecuteResult{Markdown: req.Target.Markdown}, nil
}
