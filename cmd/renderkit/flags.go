package main

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

// formatFlags select and override output formats.
type formatFlags struct {
	to string
}

// executeFlags control the execution stage.
type executeFlags struct {
	execute      bool
	noExecute    bool
	cache        bool
	noCache      bool
	cacheRefresh bool
	noDaemon     bool
	useFreezer   bool
}

// commonFlags are shared run controls.
type commonFlags struct {
	quiet bool
	debug bool
	watch bool
}

// renderFlags holds every flag of the render command.
type renderFlags struct {
	format  formatFlags
	exec    executeFlags
	common  commonFlags
	version bool
}

func parseFlags(args []string) (*renderFlags, []string, error) {
	flags := &renderFlags{}
	fs := flag.NewFlagSet("renderkit", flag.ContinueOnError)

	fs.StringVarP(&flags.format.to, "to", "t", "",
		"format(s) to render: a name, comma list, \"all\", or \"default\"")

	fs.BoolVar(&flags.exec.execute, "execute", false, "force execution of computations")
	fs.BoolVar(&flags.exec.noExecute, "no-execute", false, "skip execution of computations")
	fs.BoolVar(&flags.exec.cache, "cache", false, "force the engine execution cache on")
	fs.BoolVar(&flags.exec.noCache, "no-cache", false, "force the engine execution cache off")
	fs.BoolVar(&flags.exec.cacheRefresh, "cache-refresh", false, "execute even when a frozen result exists")
	fs.BoolVar(&flags.exec.noDaemon, "no-daemon", false, "disable engine daemons")
	fs.BoolVar(&flags.exec.useFreezer, "use-freezer", false, "reuse frozen results for formats that did not opt in")

	fs.BoolVarP(&flags.common.quiet, "quiet", "q", false, "suppress progress output")
	fs.BoolVar(&flags.common.debug, "debug", false, "verbose diagnostics")
	fs.BoolVarP(&flags.common.watch, "watch", "w", false, "re-render when inputs change")

	fs.BoolVarP(&flags.version, "version", "v", false, "print version and exit")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, nil, err
	}
	if flags.exec.execute && flags.exec.noExecute {
		return nil, nil, fmt.Errorf("--execute and --no-execute are mutually exclusive")
	}
	if flags.exec.cache && flags.exec.noCache {
		return nil, nil, fmt.Errorf("--cache and --no-cache are mutually exclusive")
	}
	return flags, fs.Args(), nil
}

// boolPtr folds paired on/off flags into the tri-state the library
// expects: nil means "not given on the command line".
func boolPtr(on, off bool) *bool {
	switch {
	case on:
		v := true
		return &v
	case off:
		v := false
		return &v
	default:
		return nil
	}
}
