// Package natives provides the built-in functions of a peek session.
package natives

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/peek/config"
	"github.com/sambeau/peek/pkg/peek/client"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/history"
	"github.com/sambeau/peek/pkg/peek/logging"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// App is the session the built-in functions act on.
type App interface {
	vm.Host
	Manager() *client.Manager
	Config() *config.Config
	// SetConfig replaces the configuration and applies it to the session.
	SetConfig(cfg *config.Config) error
	Logger() logging.Logger
	// History returns the history store, nil when history is disabled.
	History() *history.Store
	Prompt(message string, secret bool) (string, error)
	Getenv(key string) string
	// ProcessInput runs source text as a sequence of statements. Errors
	// are reported through the display, and vm.ErrReported is returned
	// when anything failed.
	ProcessInput(ctx context.Context, src string, echo bool) error
	// RunFile is ProcessInput over the contents of a file, with the path
	// named in syntax errors.
	RunFile(ctx context.Context, path string, echo bool) error
}

// Builtins returns the built-in tier of the registry.
func Builtins() map[string]any {
	return map[string]any{
		"connect": &vm.Builtin{
			Fn:          Connect,
			Description: "Open a connection and make it current",
			Options: vm.DictOf(
				"hosts", client.DefaultHost,
				"username", nil,
				"password", nil,
				"api_key", nil,
				"use_ssl", false,
				"name", nil,
				"headers", nil,
				"no_prompt", false,
				"force_prompt", false,
			),
		},
		"config": &vm.Builtin{
			Fn:          Config,
			Description: "Show the configuration, or set dotted keys in it",
		},
		"session": &vm.Builtin{
			Fn:          Session,
			Description: "List connections, switch, remove, rename or query one",
			Options:     vm.DictOf("current", nil, "remove", nil, "rename", nil, "info", nil),
		},
		"run": &vm.Builtin{
			Fn:          Run,
			Description: "Run the statements in a file",
			Options:     vm.DictOf("echo", false),
		},
		"history": &vm.Builtin{
			Fn:          History,
			Description: "List recent inputs, or run the input with the given id",
			Options:     vm.DictOf("since", nil, "limit", int64(defaultHistoryLimit)),
		},
		"help": &vm.Builtin{
			Fn:          Help,
			Description: "List functions, or describe one",
		},
	}
}

func app(host vm.Host) (App, error) {
	a, ok := host.(App)
	if !ok {
		return nil, fmt.Errorf("built-in functions need a full session, got %T", host)
	}
	return a, nil
}

// Connect opens a connection from its options, falling back to the
// connection settings of the configuration for transport options.
func Connect(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	a, err := app(host)
	if err != nil {
		return nil, err
	}
	if err := checkArgs("connect", args, 0); err != nil {
		return nil, err
	}
	if err := checkOptions("connect", kwargs, "hosts", "username", "password", "api_key",
		"use_ssl", "name", "headers", "no_prompt", "force_prompt"); err != nil {
		return nil, err
	}

	opts, err := connectOptions(a, kwargs)
	if err != nil {
		return nil, err
	}
	c, err := client.New(opts, a.Logger())
	if err != nil {
		return nil, err
	}
	a.Manager().Add(c)
	a.Logger().Infof("connected: %s", c)
	return a.Manager().String(), nil
}

func connectOptions(a App, kwargs *vm.Dict) (client.Options, error) {
	base := a.Config().Connection
	timeout, _ := base.TimeoutDuration()
	opts := client.Options{
		Timeout:     timeout,
		Compression: base.Compression,
		Cookies:     base.Cookies,
	}

	hosts, err := stringOption("connect", kwargs, "hosts", client.DefaultHost)
	if err != nil {
		return opts, err
	}
	opts.Hosts = client.SplitHosts(hosts)

	for name, dst := range map[string]*string{
		"username": &opts.Username,
		"password": &opts.Password,
		"api_key":  &opts.APIKey,
		"name":     &opts.Name,
	} {
		if *dst, err = stringOption("connect", kwargs, name, ""); err != nil {
			return opts, err
		}
	}
	if opts.UseSSL, err = boolOption("connect", kwargs, "use_ssl", false); err != nil {
		return opts, err
	}
	noPrompt, err := boolOption("connect", kwargs, "no_prompt", false)
	if err != nil {
		return opts, err
	}
	forcePrompt, err := boolOption("connect", kwargs, "force_prompt", false)
	if err != nil {
		return opts, err
	}

	if v, ok := kwargs.Get("headers"); ok && v != nil {
		d, ok := v.(*vm.Dict)
		if !ok {
			return opts, typeError("connect", "headers", "dict", v)
		}
		opts.Headers = make(map[string]string, d.Len())
		for _, k := range d.Keys() {
			hv, _ := d.Get(k)
			opts.Headers[k] = vm.Stringify(hv)
		}
	}

	if opts.APIKey != "" {
		return opts, nil
	}

	if opts.Username == "" && opts.Password != "" {
		return opts, perrors.New("USAGE-0004", nil)
	}
	if forcePrompt {
		if opts.Password, err = a.Prompt("Please enter password: ", true); err != nil {
			return opts, err
		}
	}
	if opts.Username != "" && opts.Password == "" {
		opts.Password = a.Getenv("PEEK_PASSWORD")
	}
	if opts.Username != "" && opts.Password == "" {
		if noPrompt {
			return opts, perrors.New("STATE-0004", nil)
		}
		if opts.Password, err = a.Prompt("Please enter password: ", true); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Config shows the effective configuration when called without options,
// and otherwise merges the options into it as dotted keys.
func Config(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	a, err := app(host)
	if err != nil {
		return nil, err
	}
	if err := checkArgs("config", args, 0); err != nil {
		return nil, err
	}

	if kwargs.Len() == 0 {
		doc, err := a.Config().Document()
		if err != nil {
			return nil, err
		}
		return fromNode(doc)
	}

	merged, err := config.Merge(a.Config(), kwargs.Map())
	if err != nil {
		return nil, err
	}
	return nil, a.SetConfig(merged)
}

// fromNode converts a YAML document to evaluated values.
func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.MappingNode:
		d := vm.NewDict()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			d.Set(n.Content[i].Value, v)
		}
		return d, nil
	case yaml.SequenceNode:
		arr := []any{}
		for _, el := range n.Content {
			v, err := fromNode(el)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	if i, ok := v.(int); ok {
		return int64(i), nil
	}
	return v, nil
}

// Session manages the open connections. A positional argument is the
// same as current=. Indexes are integers, names are strings.
func Session(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	a, err := app(host)
	if err != nil {
		return nil, err
	}
	if err := checkArgs("session", args, 1); err != nil {
		return nil, err
	}
	if err := checkOptions("session", kwargs, "current", "remove", "rename", "info"); err != nil {
		return nil, err
	}
	m := a.Manager()

	current, _ := kwargs.Get("current")
	if len(args) == 1 {
		current = args[0]
	}
	if current != nil {
		i, err := connectionIndex(m, "current", current)
		if err != nil {
			return nil, err
		}
		if err := m.SetCurrent(i); err != nil {
			return nil, err
		}
	}

	if remove, _ := kwargs.Get("remove"); remove != nil {
		i, err := connectionIndex(m, "remove", remove)
		if err != nil {
			return nil, err
		}
		if err := m.Remove(i); err != nil {
			return nil, err
		}
	}

	if rename, _ := kwargs.Get("rename"); rename != nil {
		if m.Index() < 0 {
			return nil, perrors.New("STATE-0001", nil)
		}
		if err := m.Rename(m.Index(), vm.Stringify(rename)); err != nil {
			return nil, err
		}
	}

	if info, _ := kwargs.Get("info"); info != nil {
		i, err := connectionIndex(m, "info", info)
		if err != nil {
			return nil, err
		}
		c, err := m.Client(i)
		if err != nil {
			return nil, err
		}
		return c.Execute(ctx, &vm.Request{Method: "GET", Path: "/", Headers: map[string]string{}})
	}

	return m.String(), nil
}

func connectionIndex(m *client.Manager, arg string, v any) (int, error) {
	if name, ok := v.(string); ok {
		return m.IndexOf(name)
	}
	if i, ok := asInt(v); ok {
		return i, nil
	}
	return 0, typeError("session", arg, "integer or string", v)
}

// Run executes the statements of a file.
func Run(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	a, err := app(host)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, perrors.New("USAGE-0002", map[string]any{"Function": "run", "Want": 1, "Got": len(args)})
	}
	if err := checkOptions("run", kwargs, "echo"); err != nil {
		return nil, err
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, typeError("run", "file", "string", args[0])
	}
	echo, err := boolOption("run", kwargs, "echo", false)
	if err != nil {
		return nil, err
	}

	return nil, a.RunFile(ctx, path, echo)
}

const defaultHistoryLimit = 100

// History lists recent inputs, newest first, or replays one by id.
func History(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	a, err := app(host)
	if err != nil {
		return nil, err
	}
	if err := checkArgs("history", args, 1); err != nil {
		return nil, err
	}
	if err := checkOptions("history", kwargs, "since", "limit"); err != nil {
		return nil, err
	}
	store := a.History()
	if store == nil {
		return nil, perrors.NewSimple(perrors.ClassState, "history is disabled")
	}

	if len(args) == 1 {
		id, ok := asInt(args[0])
		if !ok {
			return nil, typeError("history", "index", "integer", args[0])
		}
		entry, err := store.Get(int64(id))
		if err != nil {
			return nil, err
		}
		return nil, a.ProcessInput(ctx, entry.Content, false)
	}

	limit := defaultHistoryLimit
	if v, ok := kwargs.Get("limit"); ok {
		if limit, ok = asInt(v); !ok {
			return nil, typeError("history", "limit", "integer", v)
		}
	}

	var entries []history.Entry
	since, err := stringOption("history", kwargs, "since", "")
	if err != nil {
		return nil, err
	}
	if since != "" {
		t, err := dateparse.ParseLocal(since)
		if err != nil {
			return nil, perrors.New("TYPE-0002", map[string]any{
				"Function": "history", "Expected": "a date", "Arg": "since", "Got": since,
			})
		}
		entries, err = store.Since(t, limit)
		if err != nil {
			return nil, err
		}
	} else if entries, err = store.Recent(limit); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%6d %q  %s", e.ID, e.Content, humanize.RelTime(e.Timestamp, now(), "ago", "from now")))
	}
	return strings.Join(lines, "\n"), nil
}

// now is replaced in tests.
var now = time.Now

// Help lists the callable names, or describes one function.
func Help(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	if err := checkArgs("help", args, 1); err != nil {
		return nil, err
	}
	reg := host.Registry()
	if len(args) == 0 {
		return strings.Join(reg.Functions(), "\n"), nil
	}

	var name string
	var fn vm.Callable
	switch v := args[0].(type) {
	case string:
		resolved, ok := reg.Resolve(v)
		if c, isCallable := resolved.(vm.Callable); ok && isCallable {
			name, fn = v, c
		}
	case vm.Callable:
		if n, ok := reg.NameOf(v); ok {
			name, fn = n, v
		}
	}
	if fn == nil {
		return nil, perrors.New("UNDEF-0002", map[string]any{"Name": vm.Stringify(args[0])})
	}

	var sb strings.Builder
	sb.WriteString(name)
	if d, ok := fn.(vm.Describer); ok {
		meta := d.Describe()
		if meta.Description != "" {
			sb.WriteString("\n  ")
			sb.WriteString(meta.Description)
		}
		if meta.Options.Len() > 0 {
			sb.WriteString("\n  options: ")
			sb.WriteString(meta.Options.String())
		}
	}
	return sb.String(), nil
}
