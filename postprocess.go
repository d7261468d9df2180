package renderkit

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// HTMLPostProcessResult accumulates resource and supporting-file references
// discovered while rewriting a document.
type HTMLPostProcessResult struct {
	Resources  []string
	Supporting []string
}

// HTMLPostprocessor rewrites a parsed HTML document in place and reports
// the file references it discovered or created.
type HTMLPostprocessor func(doc *html.Node, meta Metadata) (HTMLPostProcessResult, error)

// HTMLFinalizer runs after every postprocessor, for rewrites that must see
// the fully transformed document.
type HTMLFinalizer func(doc *html.Node) error

var htmlEnvOnce sync.Once

// initHTMLEnvironment warms the HTML parser once per process, ahead of the
// first rendered document.
func initHTMLEnvironment() {
	htmlEnvOnce.Do(func() {
		_, _ = html.Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"))
	})
}

// postprocessHTML runs the registered postprocessors, then finalizers, over
// an output file and rewrites it in place. With no processors registered the
// file is left untouched, byte for byte. Serialization does not preserve a
// doctype node, so the original doctype line is carried across verbatim.
func postprocessHTML(output string, meta Metadata, pps []HTMLPostprocessor, fins []HTMLFinalizer) (HTMLPostProcessResult, error) {
	var combined HTMLPostProcessResult
	if len(pps) == 0 && len(fins) == 0 {
		return combined, nil
	}

	src, err := os.ReadFile(output) // #nosec G304 -- output produced by this render
	if err != nil {
		return combined, fmt.Errorf("reading %s: %w", output, err)
	}
	doctype, rest := splitDoctype(src)

	doc, err := html.Parse(bytes.NewReader(rest))
	if err != nil {
		return combined, fmt.Errorf("parsing %s: %w", output, err)
	}

	for _, pp := range pps {
		result, err := pp(doc, meta)
		if err != nil {
			return combined, fmt.Errorf("postprocessing %s: %w", output, err)
		}
		combined.Resources = append(combined.Resources, result.Resources...)
		combined.Supporting = append(combined.Supporting, result.Supporting...)
	}
	for _, fin := range fins {
		if err := fin(doc); err != nil {
			return combined, fmt.Errorf("finalizing %s: %w", output, err)
		}
	}

	var buf bytes.Buffer
	buf.Write(doctype)
	if err := html.Render(&buf, doc); err != nil {
		return combined, fmt.Errorf("serializing %s: %w", output, err)
	}
	buf.WriteByte('\n')

	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- document artifact
		return combined, fmt.Errorf("writing %s: %w", output, err)
	}
	return combined, nil
}

// splitDoctype detaches a leading doctype declaration from the rest of the
// document. The declaration ends at its closing '>', not at a line break:
// single-line documents keep their markup in the parsed portion. A line
// break immediately after the declaration travels with it.
func splitDoctype(src []byte) (doctype, rest []byte) {
	trimmed := bytes.TrimLeft(src, " \t\r\n")
	if !bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype")) {
		return nil, src
	}
	offset := len(src) - len(trimmed)
	gt := bytes.IndexByte(trimmed, '>')
	if gt == -1 {
		return nil, src
	}
	end := offset + gt + 1
	if bytes.HasPrefix(src[end:], []byte("\r\n")) {
		end += 2
	} else if end < len(src) && src[end] == '\n' {
		end++
	}
	return src[:end], src[end:]
}
