package main

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	flags, inputs, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if flags.version {
		fmt.Println("renderkit", Version)
		return
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: renderkit [flags] <input>...")
		os.Exit(1)
	}

	logger := newLogger(flags.common)
	slog.SetDefault(logger)

	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS env,
	// in which case runtime defaults apply and the program continues.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	if err := run(flags, inputs, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from verbosity flags. Quiet still
// surfaces warnings; silence about real problems helps nobody.
func newLogger(common commonFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case common.debug:
		level = slog.LevelDebug
	case common.quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
