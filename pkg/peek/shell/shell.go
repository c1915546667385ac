// Package shell wires a peek session together: configuration, display,
// connections, the function registry, history and the evaluator.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/sambeau/peek/config"
	"github.com/sambeau/peek/pkg/peek/client"
	"github.com/sambeau/peek/pkg/peek/display"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/ext"
	"github.com/sambeau/peek/pkg/peek/history"
	"github.com/sambeau/peek/pkg/peek/logging"
	"github.com/sambeau/peek/pkg/peek/natives"
	"github.com/sambeau/peek/pkg/peek/parser"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// Prompter asks the user for a line of input.
type Prompter interface {
	Prompt(message string, secret bool) (string, error)
}

// Options configures a Shell.
type Options struct {
	Config    *config.Config
	Stdout    io.Writer
	Stderr    io.Writer
	Getenv    func(string) string
	Prompter  Prompter       // nil disables prompting
	Logger    logging.Logger // nil builds one from the logging config
	NoHistory bool
	NoConnect bool // skip the connection from the config
}

// Shell is one peek session.
type Shell struct {
	mu  sync.Mutex
	cfg *config.Config

	display  *display.Display
	manager  *client.Manager
	registry *vm.Registry
	logger   logging.Logger
	history  *history.Store
	prompter Prompter
	getenv   func(string) string

	closers  []func() error
	failures int
	source   string // name of the input being processed, for errors
}

// ErrFailed is returned by ProcessInput when a statement failed. The
// failure itself has already been displayed.
var ErrFailed = vm.ErrReported

// New creates a session from its options.
func New(opts Options) (*Shell, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	s := &Shell{
		cfg:      cfg,
		manager:  client.NewManager(),
		registry: vm.NewRegistry(natives.Builtins()),
		prompter: opts.Prompter,
		getenv:   opts.Getenv,
		logger:   opts.Logger,
	}

	if s.logger == nil {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		w, closeLog, err := logging.Open(cfg.Logging.Output)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closeLog)
		s.logger = logging.NewWriterLogger(w, level, cfg.Logging.Format)
	}

	s.display = display.New(opts.Stdout, opts.Stderr, displayOptions(cfg))

	if err := s.applyExtensions(cfg); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.History.Enabled && !opts.NoHistory {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			// history is a convenience; the session still works without it
			s.logger.Warnf("history disabled: %v", err)
		} else {
			s.history = store
			s.closers = append(s.closers, store.Close)
			s.logger.Debugf("history opened at %s", store.Path())
		}
	}

	if cfg.Connection.Connect && !opts.NoConnect {
		c, err := s.configuredClient(cfg.Connection)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.manager.Add(c)
		s.logger.Debugf("connection: %s", c)
	}

	return s, nil
}

func displayOptions(cfg *config.Config) display.Options {
	return display.Options{
		Format: cfg.Display.Format,
		Pretty: cfg.Display.Pretty,
		Footer: cfg.Display.Footer,
	}
}

// configuredClient builds the startup connection. It never prompts.
func (s *Shell) configuredClient(cc config.ConnectionConfig) (*client.Client, error) {
	timeout, err := cc.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	password := cc.Password.Value()
	if cc.Username != "" && password == "" {
		password = s.getenv("PEEK_PASSWORD")
	}
	return client.New(client.Options{
		Name:        cc.Name,
		Hosts:       cc.Hosts,
		Username:    cc.Username,
		Password:    password,
		APIKey:      cc.APIKey.Value(),
		UseSSL:      cc.UseSSL,
		Timeout:     timeout,
		Compression: cc.Compression,
		Cookies:     cc.Cookies,
		Headers:     cc.Headers,
	}, s.logger)
}

func (s *Shell) applyExtensions(cfg *config.Config) error {
	exports, err := ext.Exports(cfg.Extensions.Names)
	if err != nil {
		return err
	}
	s.registry.SetExtensions(exports)
	if len(cfg.Extensions.Names) > 0 {
		s.logger.Debugf("extensions enabled: %s", strings.Join(cfg.Extensions.Names, ", "))
	}
	return nil
}

func (s *Shell) Connections() vm.Connections { return s.manager }

func (s *Shell) Display() vm.Display { return s.display }

func (s *Shell) Registry() *vm.Registry { return s.registry }

func (s *Shell) Manager() *client.Manager { return s.manager }

func (s *Shell) Logger() logging.Logger { return s.logger }

func (s *Shell) History() *history.Store { return s.history }

func (s *Shell) Getenv(key string) string { return s.getenv(key) }

func (s *Shell) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig applies a new configuration to the running session: display
// settings and enabled extensions change immediately. Connection settings
// apply to connections opened afterwards.
func (s *Shell) SetConfig(cfg *config.Config) error {
	if err := s.applyExtensions(cfg); err != nil {
		return err
	}
	s.display.SetOptions(displayOptions(cfg))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

// Prompt asks the user through the configured prompter.
func (s *Shell) Prompt(message string, secret bool) (string, error) {
	if s.prompter == nil {
		return "", perrors.New("STATE-0004", nil)
	}
	return s.prompter.Prompt(message, secret)
}

// SetPrompter replaces the prompter, e.g. once a terminal is available.
func (s *Shell) SetPrompter(p Prompter) {
	s.prompter = p
}

// Failures returns the number of failed inputs and statements so far.
func (s *Shell) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Shell) fail() {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
}

// ProcessInput parses src and, when it parses, runs every statement in
// order. Nothing runs when any part of src fails to parse. A failing
// statement does not stop the ones after it. Results and errors go to the
// display; ErrFailed reports that something failed.
func (s *Shell) ProcessInput(ctx context.Context, src string, echo bool) error {
	program, err := parser.Parse(src)
	if err != nil {
		var pe *perrors.PeekError
		if s.source != "" && errors.As(err, &pe) {
			err = pe.WithFile(s.source)
		}
		s.display.Error(err)
		s.fail()
		return ErrFailed
	}

	machine := vm.New(s)
	var result error
	for _, stmt := range program.Statements {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if echo {
			s.display.Info(strings.TrimRight(stmt.String(), "\n"))
		}
		if err := machine.Execute(ctx, stmt); err != nil {
			s.logger.Debugf("statement failed: %v", err)
			s.fail()
			result = ErrFailed
		}
	}
	return result
}

// RunFile runs a script file, naming it in syntax errors.
func (s *Shell) RunFile(ctx context.Context, path string, echo bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		err = perrors.New("IO-0001", map[string]any{"Operation": "read", "Path": path, "GoError": err.Error()})
		s.display.Error(err)
		s.fail()
		return ErrFailed
	}

	s.logger.Debugf("running %s (%s)", path, humanize.Bytes(uint64(len(data))))

	prev := s.source
	s.source = path
	defer func() { s.source = prev }()
	return s.ProcessInput(ctx, string(data), echo)
}

// Execute runs one interactive input and records it in history.
func (s *Shell) Execute(ctx context.Context, src string) error {
	if s.history != nil && strings.TrimSpace(src) != "" {
		if _, err := s.history.Append(src); err != nil {
			s.logger.Warnf("%v", err)
		}
	}
	return s.ProcessInput(ctx, src, false)
}

// Watch reloads the configuration whenever its file changes, until ctx
// is done. It does nothing for a session without a config file.
func (s *Shell) Watch(ctx context.Context) error {
	path := s.Config().Path
	if path == "" {
		return nil
	}
	w, err := config.NewWatcher(path, s.getenv, s.logger, func(cfg *config.Config) {
		if err := s.SetConfig(cfg); err != nil {
			s.logger.Errorf("[WATCH] config not applied: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return err
	}
	s.closers = append(s.closers, w.Close)
	return nil
}

// Close releases the history store, log file and config watcher.
func (s *Shell) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
