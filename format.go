package renderkit

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-renderkit/internal/dateutil"
)

// FreezeMode controls reuse of persisted execution results for a format.
type FreezeMode int

const (
	// FreezeNever disables freezing; an existing visible cache entry for
	// the input is pruned after execution.
	FreezeNever FreezeMode = iota
	// FreezeAuto freezes results and reuses them when eligible.
	FreezeAuto
	// FreezeAlways freezes results and always prefers reuse.
	FreezeAlways
)

func (m FreezeMode) String() string {
	switch m {
	case FreezeAuto:
		return "auto"
	case FreezeAlways:
		return "true"
	default:
		return "false"
	}
}

// parseFreezeMode reads a freeze directive from metadata: booleans map to
// FreezeAlways/FreezeNever, the string "auto" to FreezeAuto. Anything else
// is treated as unset.
func parseFreezeMode(v any) *FreezeMode {
	var mode FreezeMode
	switch val := v.(type) {
	case bool:
		if val {
			mode = FreezeAlways
		} else {
			mode = FreezeNever
		}
	case string:
		if strings.EqualFold(val, "auto") {
			mode = FreezeAuto
		} else {
			return nil
		}
	default:
		return nil
	}
	return &mode
}

// ExecuteOptions holds execution directives for a format. Pointer fields
// distinguish "unset" from an explicit value; explicitness matters for
// freeze pruning and the implicit echo default.
type ExecuteOptions struct {
	Enabled       *bool       `yaml:"enabled"`
	Cache         *bool       `yaml:"cache"`
	Freeze        *FreezeMode `yaml:"-"`
	Daemon        *int        `yaml:"daemon"`
	DaemonRestart bool        `yaml:"daemon-restart"`
	Debug         bool        `yaml:"debug"`
	Echo          *bool       `yaml:"echo"`
}

// PandocOptions carries converter invocation options for a format.
type PandocOptions struct {
	To                string   `yaml:"to"`
	Writer            string   `yaml:"writer"`
	SelfContained     bool     `yaml:"self-contained"`
	IncludeInHeader   []string `yaml:"include-in-header"`
	IncludeBeforeBody []string `yaml:"include-before-body"`
	IncludeAfterBody  []string `yaml:"include-after-body"`
	Args              []string `yaml:"pandoc-args"`
}

// RenderOptions carries render output options for a format.
type RenderOptions struct {
	OutputExt string `yaml:"output-ext"`
	KeepMd    bool   `yaml:"keep-md"`
}

// Format is one named output target's configuration. Metadata and the
// execute/pandoc sections are disjoint namespaces merged by key.
type Format struct {
	Metadata Metadata
	Execute  ExecuteOptions
	Pandoc   PandocOptions
	Render   RenderOptions
}

// ExecuteEnabled reports whether execution is on; unset means enabled.
func (f Format) ExecuteEnabled() bool {
	return f.Execute.Enabled == nil || *f.Execute.Enabled
}

// IsHTMLOutput reports whether the format produces HTML.
func (f Format) IsHTMLOutput() bool {
	if f.Render.OutputExt != "" {
		return f.Render.OutputExt == "html"
	}
	return htmlFormatName(f.Pandoc.To) || htmlFormatName(f.Pandoc.Writer)
}

func htmlFormatName(name string) bool {
	switch name {
	case "html", "html4", "html5", "revealjs", "slidy", "dzslides":
		return true
	}
	return strings.HasPrefix(name, "html")
}

// standaloneExts are output extensions that always imply self-contained
// packaging regardless of the self-contained flag.
var standaloneExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".epub": true,
	".pptx": true,
	".odt":  true,
	".rtf":  true,
}

// SelfContainedExt reports whether ext is a known standalone extension.
// The leading dot is optional.
func SelfContainedExt(ext string) bool {
	if ext == "" {
		return false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return standaloneExts[strings.ToLower(ext)]
}

// DefaultFormat returns the built-in default configuration for a format
// name. Exactly one render output extension exists per format.
func DefaultFormat(name string) Format {
	f := Format{
		Metadata: Metadata{},
		Pandoc:   PandocOptions{To: name},
	}
	switch {
	case htmlFormatName(name):
		f.Render.OutputExt = "html"
	case name == "pdf" || name == "beamer" || name == "context":
		f.Render.OutputExt = "pdf"
	case name == "docx" || name == "odt" || name == "epub" || name == "pptx" || name == "rtf":
		f.Render.OutputExt = name
	case name == "gfm" || name == "commonmark" || name == "markdown":
		f.Render.OutputExt = "md"
	case name == "latex":
		f.Render.OutputExt = "tex"
	case name == "typst":
		f.Render.OutputExt = "pdf"
	default:
		f.Render.OutputExt = name
	}
	return f
}

// executeKeys, pandocKeys, and renderKeys partition raw format metadata
// into the Format sections; unrecognized keys stay user-facing metadata.
var (
	pandocKeys = map[string]bool{
		"to": true, "writer": true, "self-contained": true, "embed-resources": true,
		"include-in-header": true, "include-before-body": true, "include-after-body": true,
		"pandoc-args": true,
	}
	renderKeys = map[string]bool{
		"output-ext": true, "keep-md": true,
	}
)

// formatFromMetadata resolves one layer's raw options for a single format
// into a Format, normalizing dates and splitting the execute/pandoc/render
// namespaces off the user metadata.
func formatFromMetadata(raw Metadata, now time.Time) Format {
	f := Format{Metadata: Metadata{}}
	for k, v := range raw {
		switch {
		case k == "execute":
			applyExecuteValue(&f.Execute, v)
		case k == "freeze":
			f.Execute.Freeze = parseFreezeMode(v)
		case k == "cache":
			if b, ok := v.(bool); ok {
				f.Execute.Cache = &b
			}
		case k == "echo":
			if b, ok := v.(bool); ok {
				f.Execute.Echo = &b
			}
		case pandocKeys[k]:
			applyPandocValue(&f.Pandoc, k, v)
		case renderKeys[k]:
			applyRenderValue(&f.Render, k, v)
		case k == MetaDate:
			f.Metadata[k] = dateutil.NormalizeDate(v, now)
		default:
			f.Metadata[k] = cloneValue(v)
		}
	}
	return f
}

// applyExecuteValue accepts either a scalar bool (shorthand for enabled)
// or a mapping of execution directives.
func applyExecuteValue(e *ExecuteOptions, v any) {
	if b, ok := v.(bool); ok {
		e.Enabled = &b
		return
	}
	m, ok := asMetadata(v)
	if !ok {
		return
	}
	if b, ok := m.Bool("enabled"); ok {
		e.Enabled = &b
	}
	if b, ok := m.Bool("cache"); ok {
		e.Cache = &b
	}
	if mode := parseFreezeMode(m["freeze"]); mode != nil {
		e.Freeze = mode
	}
	if d, ok := m["daemon"]; ok {
		switch val := d.(type) {
		case bool:
			if !val {
				zero := 0
				e.Daemon = &zero
			}
		case int:
			e.Daemon = &val
		case uint64:
			n := int(val)
			e.Daemon = &n
		case float64:
			n := int(val)
			e.Daemon = &n
		}
	}
	if b, ok := m.Bool("daemon-restart"); ok {
		e.DaemonRestart = b
	}
	if b, ok := m.Bool("debug"); ok {
		e.Debug = b
	}
	if b, ok := m.Bool("echo"); ok {
		e.Echo = &b
	}
}

func applyPandocValue(p *PandocOptions, key string, v any) {
	switch key {
	case "to":
		if s, ok := v.(string); ok {
			p.To = s
		}
	case "writer":
		if s, ok := v.(string); ok {
			p.Writer = s
		}
	case "self-contained", "embed-resources":
		if b, ok := v.(bool); ok {
			p.SelfContained = b
		}
	case "include-in-header":
		p.IncludeInHeader = append(p.IncludeInHeader, toStringList(v)...)
	case "include-before-body":
		p.IncludeBeforeBody = append(p.IncludeBeforeBody, toStringList(v)...)
	case "include-after-body":
		p.IncludeAfterBody = append(p.IncludeAfterBody, toStringList(v)...)
	case "pandoc-args":
		p.Args = append(p.Args, toStringList(v)...)
	}
}

func applyRenderValue(r *RenderOptions, key string, v any) {
	switch key {
	case "output-ext":
		if s, ok := v.(string); ok {
			r.OutputExt = strings.TrimPrefix(s, ".")
		}
	case "keep-md":
		if b, ok := v.(bool); ok {
			r.KeepMd = b
		}
	}
}

// mergeFormats combines two formats with over taking precedence per key.
// Include lists and extra args concatenate (base first); pointer directives
// are replaced only when set in over. Neither argument is mutated.
func mergeFormats(base, over Format) Format {
	out := Format{
		Metadata: mergeMetadata(base.Metadata, over.Metadata),
		Execute:  base.Execute,
		Pandoc:   base.Pandoc,
		Render:   base.Render,
	}

	if over.Execute.Enabled != nil {
		out.Execute.Enabled = over.Execute.Enabled
	}
	if over.Execute.Cache != nil {
		out.Execute.Cache = over.Execute.Cache
	}
	if over.Execute.Freeze != nil {
		out.Execute.Freeze = over.Execute.Freeze
	}
	if over.Execute.Daemon != nil {
		out.Execute.Daemon = over.Execute.Daemon
	}
	if over.Execute.DaemonRestart {
		out.Execute.DaemonRestart = true
	}
	if over.Execute.Debug {
		out.Execute.Debug = true
	}
	if over.Execute.Echo != nil {
		out.Execute.Echo = over.Execute.Echo
	}

	if over.Pandoc.To != "" {
		out.Pandoc.To = over.Pandoc.To
	}
	if over.Pandoc.Writer != "" {
		out.Pandoc.Writer = over.Pandoc.Writer
	}
	if over.Pandoc.SelfContained {
		out.Pandoc.SelfContained = true
	}
	out.Pandoc.IncludeInHeader = appendStrings(base.Pandoc.IncludeInHeader, over.Pandoc.IncludeInHeader)
	out.Pandoc.IncludeBeforeBody = appendStrings(base.Pandoc.IncludeBeforeBody, over.Pandoc.IncludeBeforeBody)
	out.Pandoc.IncludeAfterBody = appendStrings(base.Pandoc.IncludeAfterBody, over.Pandoc.IncludeAfterBody)
	out.Pandoc.Args = appendStrings(base.Pandoc.Args, over.Pandoc.Args)

	if over.Render.OutputExt != "" {
		out.Render.OutputExt = over.Render.OutputExt
	}
	if over.Render.KeepMd {
		out.Render.KeepMd = true
	}

	return out
}

func appendStrings(base, over []string) []string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make([]string, 0, len(base)+len(over))
	out = append(out, base...)
	return append(out, over...)
}

// OutputFileFor computes the output path for an input rendered to this
// format: the input path with the format's output extension, beside the
// source.
func (f Format) OutputFileFor(input string) string {
	ext := f.Render.OutputExt
	if ext == "" {
		ext = "html"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + ext
}
