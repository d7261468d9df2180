package renderkit

import "errors"

// Sentinel errors for render operations.
var (
	// Configuration errors. Fatal per input file.
	ErrInvalidFrontMatter = errors.New("invalid YAML front matter")
	ErrProjectNotFound    = errors.New("project configuration not found")
	ErrProjectParse       = errors.New("failed to parse project configuration")
	ErrNoFormats          = errors.New("no output formats resolved")

	// Converter invocation failure. Aborts the current render context.
	ErrConverterFailed = errors.New("converter invocation failed")

	// Contract violations. Indicate engine/format misconfiguration and are
	// never silently dropped.
	ErrNonHTMLPostprocess = errors.New("HTML postprocessors registered for non-HTML output")

	// Engine dispatch errors.
	ErrEngineNotFound = errors.New("no execution engine for input")
)
