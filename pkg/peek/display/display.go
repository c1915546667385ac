// Package display renders results and errors for the terminal.
package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatRaw  = "raw"
)

// Options controls rendering.
type Options struct {
	Format string // json, yaml or raw
	Pretty bool   // indent JSON
	Footer bool   // print a size footer after structured results
}

// Display writes results to out and errors to errOut.
type Display struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	opts   Options
}

// New creates a display. An empty format means JSON.
func New(out, errOut io.Writer, opts Options) *Display {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &Display{out: out, errOut: errOut, opts: opts}
}

// SetOptions replaces the rendering options, e.g. after a config reload.
func (d *Display) SetOptions(opts Options) {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = opts
}

func (d *Display) Options() Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

// Info writes a result. Strings are written as they are.
func (d *Display) Info(v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := v.(string); ok {
		fmt.Fprintln(d.out, s)
		return
	}

	text, err := d.render(v)
	if err != nil {
		fmt.Fprintf(d.errOut, "Error:\n  %v\n", err)
		return
	}
	fmt.Fprintln(d.out, text)

	if d.opts.Footer {
		if _, structured := v.(*vm.Dict); structured {
			fmt.Fprintf(d.out, "# %s\n", humanize.Bytes(uint64(len(text))))
		} else if arr, ok := v.([]any); ok {
			fmt.Fprintf(d.out, "# %s items, %s\n", humanize.Comma(int64(len(arr))), humanize.Bytes(uint64(len(text))))
		}
	}
}

// Error writes a failure. Peek errors get their multi-line form.
func (d *Display) Error(v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pe *perrors.PeekError
	switch e := v.(type) {
	case *perrors.PeekError:
		fmt.Fprintln(d.errOut, e.PrettyString())
	case error:
		if errors.As(e, &pe) {
			fmt.Fprintln(d.errOut, pe.PrettyString())
			return
		}
		fmt.Fprintf(d.errOut, "Error:\n  %v\n", e)
	case string:
		fmt.Fprintln(d.errOut, e)
	default:
		text, err := d.render(v)
		if err != nil {
			text = fmt.Sprint(v)
		}
		fmt.Fprintln(d.errOut, text)
	}
}

func (d *Display) render(v any) (string, error) {
	switch d.opts.Format {
	case FormatYAML:
		return RenderYAML(v)
	case FormatRaw:
		return vm.Encode(v)
	}
	if d.opts.Pretty {
		return vm.EncodeIndent(v, "  ")
	}
	return vm.Encode(v)
}

// RenderYAML renders a value as a YAML document, keeping Dict order.
func RenderYAML(v any) (string, error) {
	node, err := toNode(v)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func toNode(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case *vm.Dict:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			child, err := toNode(val)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, el := range v {
			child, err := toNode(el)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case bool, int64, int, float64, json.Number:
		text, err := vm.Encode(v)
		if err != nil {
			return nil, err
		}
		tag := "!!int"
		switch v.(type) {
		case bool:
			tag = "!!bool"
		case float64:
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: text}, nil
	}
	return nil, perrors.New("TYPE-0004", map[string]any{"Got": vm.TypeName(v)})
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
