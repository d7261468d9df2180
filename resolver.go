package renderkit

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ResolvedFormat pairs a format name with its fully resolved configuration.
// Order matters: `--to default` renders the first resolved format.
type ResolvedFormat struct {
	Name   string
	Format Format
}

// To flag keywords.
const (
	ToAll     = "all"
	ToDefault = "default"
)

// resolveFormats merges project, directory, and input metadata with CLI
// overrides and built-in defaults into the per-format configurations a
// render of target should produce.
func resolveFormats(target *Target, engine Engine, opts *RunOptions, project *Project) ([]ResolvedFormat, error) {
	now := time.Now()
	logger := opts.logger()

	inputMeta := target.Metadata
	var projMeta, dirMeta Metadata
	var projOrder, dirOrder []string
	if project != nil {
		projMeta = project.Metadata
		projOrder = project.FormatOrder
		var err error
		dirMeta, dirOrder, err = project.DirMetadata(filepath.Dir(target.Input))
		if err != nil {
			return nil, err
		}
	}

	projKeys := formatKeysOf(projMeta, projOrder)
	dirKeys := formatKeysOf(dirMeta, dirOrder)
	inputKeys := formatKeysOf(inputMeta, target.FormatOrder)

	// Candidate names: a formats-only project type renders exactly the
	// project's list; otherwise input/directory declarations completely
	// override the project's list when present.
	var candidates []string
	switch {
	case project != nil && project.Type.FormatsOnly():
		candidates = projKeys
	case len(inputKeys) > 0 || len(dirKeys) > 0:
		candidates = unionOrdered(inputKeys, dirKeys)
	default:
		candidates = projKeys
	}

	// An input-level permissible-formats list intersects the candidates
	// and cancels any explicit --to override.
	to := opts.To
	if allowed := inputMeta.StringList(MetaFormats); len(allowed) > 0 {
		candidates = intersectOrdered(candidates, allowed)
		to = ""
	}

	// An explicit comma list renders exactly those names, order preserved.
	switch to {
	case "", ToAll, ToDefault:
	default:
		candidates = splitFormatList(to)
	}

	// Zero candidates defaults to a single implicit format inferred from
	// the base converter target.
	if len(candidates) == 0 {
		candidates = []string{baseFormatName(projMeta, dirMeta, inputMeta)}
	}

	pinProjectTheme := project != nil && project.Type.Name() == "website"

	var resolved []ResolvedFormat
	for _, name := range candidates {
		projRaw := layerFormatMetadata(name, projMeta)
		dirRaw := layerFormatMetadata(name, dirMeta)
		inputRaw := layerFormatMetadata(name, inputMeta)

		// A website project's Bootstrap-bearing theme always wins for
		// HTML outputs; lower layers cannot override it.
		if pinProjectTheme && htmlFormatName(name) && themeUsesBootstrap(projRaw[MetaTheme]) {
			delete(dirRaw, MetaTheme)
			delete(inputRaw, MetaTheme)
		}

		projFormat := resolveLayerFormat(projRaw, opts, now)
		dirFormat := resolveLayerFormat(dirRaw, opts, now)
		inputFormat := resolveLayerFormat(inputRaw, opts, now)

		merged := mergeFormats(mergeFormats(projFormat, dirFormat), inputFormat)
		format := mergeFormats(DefaultFormat(name), merged)

		// Interactive documents default to hiding code unless echo was
		// set explicitly somewhere.
		if format.Execute.Echo == nil && format.Metadata[MetaServer] != nil {
			off := false
			format.Execute.Echo = &off
		}

		if project != nil && !project.Type.SupportsFormat(name) {
			logUnsupportedFormat(logger, name, project.Type.Name())
			continue
		}

		if filter, ok := engine.(FormatFilter); ok {
			format = filter.FilterFormat(target.Source, opts, format)
		}

		resolved = append(resolved, ResolvedFormat{Name: name, Format: format})
	}

	if len(resolved) == 0 {
		return nil, ErrNoFormats
	}

	// Without --to all (or an explicit list) only the first format renders.
	if to == "" || to == ToDefault {
		resolved = resolved[:1]
	}

	return resolved, nil
}

// resolveLayerFormat resolves one metadata layer and applies CLI overrides.
func resolveLayerFormat(raw Metadata, opts *RunOptions, now time.Time) Format {
	f := formatFromMetadata(raw, now)
	if opts.Execute != nil {
		f.Execute.Enabled = opts.Execute
	}
	if opts.Cache != nil {
		f.Execute.Cache = opts.Cache
	}
	if opts.NoDaemon {
		zero := 0
		f.Execute.Daemon = &zero
	}
	if opts.Debug {
		f.Execute.Debug = true
	}
	return f
}

// layerFormatMetadata builds the raw option map one layer contributes to a
// named format: the layer's global keys overlaid by its format-specific
// submap.
func layerFormatMetadata(name string, layer Metadata) Metadata {
	if layer == nil {
		return Metadata{}
	}
	global := make(Metadata, len(layer))
	for k, v := range layer {
		if k == MetaFormat || k == MetaFormats {
			continue
		}
		global[k] = v
	}
	sub := layer.SubMap(MetaFormat).SubMap(name)
	return mergeMetadata(global, sub)
}

// formatKeysOf returns a layer's declared format names. The parse-time
// order is used when captured; otherwise names sort alphabetically so
// resolution stays deterministic.
func formatKeysOf(meta Metadata, order []string) []string {
	if meta == nil {
		return nil
	}
	if len(order) > 0 {
		return order
	}
	if s, ok := meta.String(MetaFormat); ok {
		return []string{s}
	}
	sub := meta.SubMap(MetaFormat)
	if len(sub) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sub))
	for k := range sub {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// baseFormatName infers the implicit format from the merged base converter
// target.
func baseFormatName(layers ...Metadata) string {
	var merged Metadata
	for _, layer := range layers {
		merged = mergeMetadata(merged, layer)
	}
	if to, ok := merged.String("to"); ok && to != "" {
		return to
	}
	if writer, ok := merged.String("writer"); ok && writer != "" {
		return writer
	}
	return "html"
}

// themeUsesBootstrap reports whether a theme value pulls in the Bootstrap
// framework. Every built-in HTML theme does except the bare pandoc ones; a
// theme list is Bootstrap-bearing if any element is.
func themeUsesBootstrap(theme any) bool {
	switch v := theme.(type) {
	case string:
		return v != "" && v != "none" && v != "pandoc"
	case []any:
		for _, item := range v {
			if themeUsesBootstrap(item) {
				return true
			}
		}
	}
	return false
}

func splitFormatList(to string) []string {
	parts := strings.Split(to, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func unionOrdered(lists ...[]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, list := range lists {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func intersectOrdered(names, allowed []string) []string {
	keep := map[string]bool{}
	for _, name := range allowed {
		keep[name] = true
	}
	var out []string
	for _, name := range names {
		if keep[name] {
			out = append(out, name)
		}
	}
	return out
}

// unsupportedFormats tracks per-name warnings so a format rejected by the
// project type is logged once per process, not once per input.
var (
	unsupportedMu     sync.Mutex
	unsupportedLogged = map[string]bool{}
)

func logUnsupportedFormat(logger *slog.Logger, name, projectType string) {
	unsupportedMu.Lock()
	defer unsupportedMu.Unlock()
	if unsupportedLogged[name] {
		return
	}
	unsupportedLogged[name] = true
	logger.Warn("format not supported by project type, skipping",
		"format", name,
		"projectType", projectType)
}
