package renderkit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-renderkit/internal/fileutil"
	"github.com/alnah/go-renderkit/internal/yamlutil"
)

// Project file names searched in order.
var projectConfigFiles = []string{"_project.yml", "_project.yaml"}

// Directory metadata file names searched in order.
var dirMetadataFiles = []string{"_metadata.yml", "_metadata.yaml"}

// defaultLibDir is the project library directory when lib-dir is unset.
const defaultLibDir = "site_libs"

// ProjectConfig is the typed `project:` block of a project file.
type ProjectConfig struct {
	Type      string `yaml:"type"`
	Title     string `yaml:"title"`
	OutputDir string `yaml:"output-dir"`
	LibDir    string `yaml:"lib-dir"`
}

// Project is the directory-scoped configuration context for renders. The
// project-level metadata includes the `format:` mapping applied to every
// input, with declaration order preserved for default-format selection.
type Project struct {
	Dir         string
	Config      ProjectConfig
	Metadata    Metadata
	FormatOrder []string
	Type        ProjectType
}

// ProjectType is the project-type plugin surface consumed by the resolver.
type ProjectType interface {
	Name() string
	// FormatsOnly restricts rendering to project-declared formats.
	FormatsOnly() bool
	// SupportsFormat accepts or rejects a resolved format name.
	SupportsFormat(name string) bool
}

type defaultProjectType struct{}

func (defaultProjectType) Name() string               { return "default" }
func (defaultProjectType) FormatsOnly() bool          { return false }
func (defaultProjectType) SupportsFormat(string) bool { return true }

// websiteProjectType renders HTML output only and pins the project theme
// for Bootstrap-bearing HTML formats.
type websiteProjectType struct{}

func (websiteProjectType) Name() string      { return "website" }
func (websiteProjectType) FormatsOnly() bool { return false }
func (websiteProjectType) SupportsFormat(name string) bool {
	return htmlFormatName(name)
}

// bookProjectType renders exactly the formats the project declares.
type bookProjectType struct{}

func (bookProjectType) Name() string               { return "book" }
func (bookProjectType) FormatsOnly() bool          { return true }
func (bookProjectType) SupportsFormat(string) bool { return true }

func projectTypeFor(name string) ProjectType {
	switch name {
	case "website":
		return websiteProjectType{}
	case "book":
		return bookProjectType{}
	default:
		return defaultProjectType{}
	}
}

// LoadProject reads a project configuration from dir. Returns
// ErrProjectNotFound when no project file exists there.
func LoadProject(dir string) (*Project, error) {
	var path string
	for _, name := range projectConfigFiles {
		candidate := filepath.Join(dir, name)
		if fileutil.FileExists(candidate) {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, dir)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- project file inside user-selected dir
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var file struct {
		Project ProjectConfig `yaml:"project"`
	}
	if err := yamlutil.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProjectParse, path, err)
	}

	var meta Metadata
	if err := yamlutil.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProjectParse, path, err)
	}
	delete(meta, "project")

	return &Project{
		Dir:         fileutil.CanonicalPath(dir),
		Config:      file.Project,
		Metadata:    meta,
		FormatOrder: yamlutil.MappingKeys(data, MetaFormat),
		Type:        projectTypeFor(file.Project.Type),
	}, nil
}

// FindProject walks up from an input path looking for a project file.
// Returns (nil, nil) when the input is not inside a project; a standalone
// render is not an error.
func FindProject(input string) (*Project, error) {
	dir := filepath.Dir(fileutil.CanonicalPath(input))
	for {
		project, err := LoadProject(dir)
		if err == nil {
			return project, nil
		}
		if !errors.Is(err, ErrProjectNotFound) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// DirMetadata resolves directory-level metadata for an input's directory.
// Missing metadata files yield an empty layer.
func (p *Project) DirMetadata(dir string) (Metadata, []string, error) {
	for _, name := range dirMetadataFiles {
		path := filepath.Join(dir, name)
		if !fileutil.FileExists(path) {
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 -- metadata file inside the project
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var meta Metadata
		if err := yamlutil.Unmarshal(data, &meta); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontMatter, path, err)
		}
		return meta, yamlutil.MappingKeys(data, MetaFormat), nil
	}
	return Metadata{}, nil, nil
}

// LibDir returns the project library directory name.
func (p *Project) LibDir() string {
	if p.Config.LibDir != "" {
		return p.Config.LibDir
	}
	return defaultLibDir
}

// RelPath rewrites a path relative to the project root, canonicalizing
// first so symlinked paths compare consistently. Paths outside the project
// are returned unchanged.
func (p *Project) RelPath(path string) string {
	rel, err := fileutil.RelativeTo(p.Dir, path)
	if err != nil {
		return path
	}
	return rel
}
