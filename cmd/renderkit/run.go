package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	renderkit "github.com/alnah/go-renderkit"
)

// run wires the library together for one invocation: locate the project,
// render the inputs, and optionally keep watching them.
func run(flags *renderFlags, inputs []string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project, err := renderkit.FindProject(inputs[0])
	if err != nil {
		return err
	}
	if project != nil {
		logger.Debug("project detected", "dir", project.Dir, "type", project.Type.Name())
	}

	opts := &renderkit.RunOptions{
		To:           flags.format.to,
		Execute:      boolPtr(flags.exec.execute, flags.exec.noExecute),
		Cache:        boolPtr(flags.exec.cache, flags.exec.noCache),
		CacheRefresh: flags.exec.cacheRefresh,
		NoDaemon:     flags.exec.noDaemon,
		UseFreezer:   flags.exec.useFreezer,
		Debug:        flags.common.debug,
		Quiet:        flags.common.quiet,
		Logger:       logger,
	}

	engines := renderkit.NewEngineRegistry()
	converter := renderkit.NewPandocConverter()

	render := func(files []string) error {
		result, err := renderkit.RenderFiles(ctx, files, opts, engines, converter, project)
		for _, f := range result.Files {
			if !flags.common.quiet {
				fmt.Println(f.File)
			}
		}
		return err
	}

	if err := render(inputs); err != nil {
		return err
	}
	if flags.common.watch {
		return watchAndRender(ctx, inputs, render, logger)
	}
	return nil
}
