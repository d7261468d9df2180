package renderkit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Target is a resolved (engine, source file, front matter) triple for one
// input document. Immutable once computed for a render pass.
type Target struct {
	Source      string   // path as given by the caller
	Input       string   // path the engine executes (usually Source)
	Markdown    string   // document body with front matter stripped
	Metadata    Metadata // parsed front matter
	FormatOrder []string // declaration order of front matter format keys
}

// Includes are converter fragments contributed by execution.
type Includes struct {
	InHeader   []string
	BeforeBody []string
	AfterBody  []string
}

// Append concatenates another include set onto this one, order-preserving.
func (i *Includes) Append(other Includes) {
	i.InHeader = append(i.InHeader, other.InHeader...)
	i.BeforeBody = append(i.BeforeBody, other.BeforeBody...)
	i.AfterBody = append(i.AfterBody, other.AfterBody...)
}

// Empty reports whether no fragments are present.
func (i Includes) Empty() bool {
	return len(i.InHeader) == 0 && len(i.BeforeBody) == 0 && len(i.AfterBody) == 0
}

// ExecuteResult is the output of running an execution engine. It is
// consumed immediately by the executor (or persisted by the freezer).
type ExecuteResult struct {
	Markdown           string                `json:"markdown"`
	Supporting         []string              `json:"supporting,omitempty"`
	Includes           Includes              `json:"includes"`
	EngineDependencies map[string][]Metadata `json:"engineDependencies,omitempty"`
	Preserve           map[string]string     `json:"preserve,omitempty"`
	PostProcess        bool                  `json:"postProcess,omitempty"`
}

// ExecuteRequest carries everything an engine needs to run a target's
// embedded computations.
type ExecuteRequest struct {
	Target       *Target
	Format       Format
	FormatName   string
	ResourceDir  string
	TempDir      string
	LibDir       string
	Cwd          string
	Params       Metadata
	Dependencies bool
	Quiet        bool
}

// DependenciesRequest asks an engine to resolve dependencies that were
// deferred past execution (e.g. restored from a freeze snapshot).
type DependenciesRequest struct {
	Target       *Target
	Format       Format
	Output       string
	TempDir      string
	LibDir       string
	Dependencies []Metadata
	Quiet        bool
}

// DependenciesResult holds the includes produced by dependency resolution.
type DependenciesResult struct {
	Includes Includes
}

// PostProcessRequest asks an engine to post-process converter output,
// typically restoring preserved raw regions.
type PostProcessRequest struct {
	Target   *Target
	Format   Format
	Output   string
	Preserve map[string]string
	Quiet    bool
}

// Engine runs a document's embedded computations. Implementations are
// registered once at startup and looked up by name, never mutated mid-run.
type Engine interface {
	Name() string
	// CanFreeze reports whether results may be persisted and reused.
	CanFreeze() bool
	// Languages lists the executable cell languages this engine claims.
	Languages() []string
	// ValidExtensions lists source extensions this engine can target.
	ValidExtensions() []string
	// Target parses an input file into an execution target.
	Target(input string) (*Target, error)
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error)
}

// DependenciesResolver is implemented by engines supporting deferred
// dependency resolution.
type DependenciesResolver interface {
	Dependencies(ctx context.Context, req *DependenciesRequest) (*DependenciesResult, error)
}

// OutputPostProcessor is implemented by engines that post-process
// converter output.
type OutputPostProcessor interface {
	PostProcess(ctx context.Context, req *PostProcessRequest) error
}

// SkipObserver is implemented by engines that want notification when
// execution was skipped in favor of a frozen result.
type SkipObserver interface {
	ExecuteTargetSkipped(target *Target, format Format)
}

// FormatFilter is implemented by engines that adjust resolved formats with
// engine-specific constraints.
type FormatFilter interface {
	FilterFormat(source string, opts *RunOptions, format Format) Format
}

// EngineRegistry maps engine names to implementations. Registration order
// decides dispatch priority; the markdown engine is the fallback.
type EngineRegistry struct {
	order   []string
	engines map[string]Engine
}

// NewEngineRegistry returns a registry with the built-in markdown engine
// registered.
func NewEngineRegistry() *EngineRegistry {
	r := &EngineRegistry{engines: map[string]Engine{}}
	r.Register(NewMarkdownEngine())
	return r
}

// Register adds an engine. A later registration under the same name
// replaces the earlier one without changing priority.
func (r *EngineRegistry) Register(e Engine) {
	if _, exists := r.engines[e.Name()]; !exists {
		r.order = append(r.order, e.Name())
	}
	r.engines[e.Name()] = e
}

// Lookup returns the engine registered under name.
func (r *EngineRegistry) Lookup(name string) (Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// ForFile selects the engine for an input: the first registered non-markdown
// engine claiming one of the document's executable cell languages wins,
// falling back to extension claims, then to the markdown engine.
func (r *EngineRegistry) ForFile(input string) (Engine, error) {
	langs, err := cellLanguages(input)
	if err != nil {
		return nil, err
	}
	for _, name := range r.order {
		e := r.engines[name]
		if name == markdownEngineName {
			continue
		}
		if claimsLanguage(e, langs) {
			return e, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(input))
	var fallback Engine
	for _, name := range r.order {
		e := r.engines[name]
		for _, valid := range e.ValidExtensions() {
			if valid != ext {
				continue
			}
			if name == markdownEngineName {
				fallback = e
				continue
			}
			return e, nil
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, input)
}

func claimsLanguage(e Engine, langs []string) bool {
	for _, claimed := range e.Languages() {
		for _, lang := range langs {
			if strings.EqualFold(claimed, lang) {
				return true
			}
		}
	}
	return false
}
