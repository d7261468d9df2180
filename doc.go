// Package renderkit renders markdown documents to publishable outputs
// through pluggable execution engines and an external converter.
//
// # Quick Start
//
// Resolve a project, build a registry, and render:
//
//	project, err := renderkit.FindProject("docs/report.qmd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engines := renderkit.NewEngineRegistry()
//	converter := renderkit.NewPandocConverter()
//
//	result, err := renderkit.RenderFiles(ctx,
//	    []string{"docs/report.qmd"},
//	    &renderkit.RunOptions{To: "html"},
//	    engines, converter, project)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range result.Files {
//	    fmt.Println(f.File)
//	}
//
// # Render Pipeline
//
// Each (input, format) pair moves through these stages:
//
//  1. Engine selection and front matter parsing
//  2. Format resolution (project, directory, and input metadata merged
//     with CLI overrides and built-in defaults)
//  3. Execution, or reuse of a frozen result from the project cache
//  4. Conversion via pandoc
//  5. HTML postprocessing and output cleanup
//
// # Projects
//
// A directory containing _project.yml becomes a project: its metadata
// applies to every input below it, execution results freeze under the
// project cache, and the project type (default, website, book) constrains
// which formats render. Inputs outside a project render standalone.
package renderkit
