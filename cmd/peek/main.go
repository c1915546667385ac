package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/peek/config"
	"github.com/sambeau/peek/pkg/peek/display"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/parser"
	"github.com/sambeau/peek/pkg/peek/repl"
	"github.com/sambeau/peek/pkg/peek/shell"

	// registers the stdx extension
	_ "github.com/sambeau/peek/pkg/peek/ext/stdx"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

// exitError ends the process with a status and no further message; what
// went wrong has already been printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) > 0 && args[0] == "fmt" {
		return runFmtCommand(args[1:], stdin, stdout, stderr)
	}

	flags := flag.NewFlagSet("peek", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		eval        = flags.String("e", "", "Run statements from a string")
		check       = flags.Bool("check", false, "Check syntax without executing")
		echo        = flags.Bool("echo", false, "Print each statement before running it")
		noHistory   = flags.Bool("no-history", false, "Do not read or record history")
		noConnect   = flags.Bool("no-connect", false, "Start without a connection")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	flags.StringVar(eval, "eval", "", "Alias for -e")
	flags.BoolVar(showVersion, "V", false, "Alias for --version")

	overrides := map[string]any{}
	flags.Func("set", "Override a config value, e.g. display.format=yaml", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return fmt.Errorf("--set wants key=value, got %q", s)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return fmt.Errorf("--set %s: %w", key, err)
		}
		overrides[key] = v
		return nil
	})

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return nil
		}
		printUsage(stderr)
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "peek version %s (%s)\n", Version, Commit)
		return nil
	}

	if *check {
		if flags.NArg() == 0 {
			return errors.New("--check requires at least one file")
		}
		return checkFiles(flags.Args(), stderr)
	}

	cfg, err := config.Load(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(overrides) > 0 {
		if cfg, err = config.Merge(cfg, overrides); err != nil {
			return err
		}
	}

	interactive := *eval == "" && flags.NArg() == 0 && isTerminal(stdin)

	sh, err := shell.New(shell.Options{
		Config:    cfg,
		Stdout:    stdout,
		Stderr:    stderr,
		Getenv:    getenv,
		NoHistory: *noHistory || !interactive,
		NoConnect: *noConnect,
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer sh.Close()

	sigs := []os.Signal{syscall.SIGTERM}
	if !interactive {
		sigs = append(sigs, os.Interrupt)
	}
	ctx, cancel := signal.NotifyContext(ctx, sigs...)
	defer cancel()

	if cfg.Watch {
		if err := sh.Watch(ctx); err != nil {
			sh.Logger().Warnf("%v", err)
		}
	}

	switch {
	case *eval != "":
		sh.ProcessInput(ctx, *eval, *echo)
	case flags.NArg() > 0:
		for _, path := range flags.Args() {
			sh.RunFile(ctx, path, *echo)
		}
	case interactive:
		repl.Start(ctx, sh, stdout, Version)
		return nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		sh.ProcessInput(ctx, string(data), *echo)
	}

	if sh.Failures() > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && display.IsTerminal(f)
}

// checkFiles parses each file and reports syntax errors.
func checkFiles(files []string, stderr io.Writer) error {
	failed := false
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if _, err := parser.Parse(string(content)); err != nil {
			fmt.Fprintln(stderr, prettyError(err, path))
			failed = true
		}
	}
	if failed {
		return &exitError{code: 1}
	}
	return nil
}

// runFmtCommand prints the canonical rendering of each file, or of stdin
// when no file is named.
func runFmtCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		return formatSource(string(data), "<stdin>", stdout, stderr)
	}

	var failed error
	for _, path := range args {
		if strings.HasPrefix(path, "-") {
			printFmtUsage(stderr)
			return fmt.Errorf("unknown fmt option %s", path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := formatSource(string(content), path, stdout, stderr); err != nil {
			failed = err
		}
	}
	return failed
}

func formatSource(src, name string, stdout, stderr io.Writer) error {
	program, err := parser.Parse(src)
	if err != nil {
		fmt.Fprintln(stderr, prettyError(err, name))
		return &exitError{code: 1}
	}
	fmt.Fprint(stdout, program.String())
	return nil
}

func prettyError(err error, file string) string {
	var pe *perrors.PeekError
	if errors.As(err, &pe) {
		return pe.WithFile(file).PrettyString()
	}
	return err.Error()
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `peek - An interactive shell for search clusters

Usage:
  peek [options]                 Start the REPL (or read statements from stdin)
  peek [options] FILE...         Run script files
  peek -e "get /_cat/indices"    Run statements from a string
  peek --check FILE...           Check syntax without executing
  peek fmt [FILE...]             Print the canonical form of statements

Options:
  --config PATH      Path to config file (default: auto-detect)
  --set KEY=VALUE    Override a config value (repeatable)
  -e, --eval CODE    Run statements from a string
  --check            Check syntax without executing
  --echo             Print each statement before running it
  --no-history       Do not read or record history
  --no-connect       Start without the configured connection
  -V, --version      Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. PEEK_CONFIG environment variable
  3. ./peek.yaml
  4. ~/.config/peek/peek.yaml

Environment:
  PEEK_PASSWORD      Password used when a connection needs one

Examples:
  peek --set connection.hosts=es1:9200,es2:9200
  peek -e 'get /_cluster/health'
  peek --set display.format=yaml bulk.es
  cat queries.es | peek --echo
`)
}

func printFmtUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: peek fmt [FILE...]

Prints each statement in canonical form. Reads stdin when no file is given.`)
}
