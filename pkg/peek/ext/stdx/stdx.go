// Package stdx is the standard peek extension. Importing it registers
// the "stdx" extension:
//
//	echo "a" 1        prints its arguments
//	yaml {...}        renders a value as YAML
//	epoch_millis "2021-02-03T10:00:00Z"
package stdx

import (
	"context"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sambeau/peek/pkg/peek/display"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/ext"
	"github.com/sambeau/peek/pkg/peek/vm"
)

func init() {
	ext.Register(ext.Extension{
		Name:        "stdx",
		Description: "echo, yaml and date helpers",
		Exports:     Exports,
	})
}

// now is replaced in tests.
var now = time.Now

// Exports returns the functions of the extension.
func Exports() map[string]any {
	return map[string]any{
		"echo": &vm.Builtin{
			Fn:          echo,
			Description: "Print the arguments, separated by spaces",
		},
		"yaml": &vm.Builtin{
			Fn:          toYAML,
			Description: "Render a value as YAML",
		},
		"epoch_millis": &vm.Builtin{
			Fn:          epochMillis,
			Description: "Milliseconds since the epoch for a date string, or for now",
			Options:     vm.DictOf("location", "UTC"),
		},
	}
}

func echo(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.Stringify(a)
	}
	return strings.Join(parts, " "), nil
}

func toYAML(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	if len(args) != 1 {
		return nil, perrors.New("USAGE-0002", map[string]any{"Function": "yaml", "Want": 1, "Got": len(args)})
	}
	return display.RenderYAML(args[0])
}

func epochMillis(ctx context.Context, host vm.Host, args []any, kwargs *vm.Dict) (any, error) {
	loc := time.UTC
	if v, ok := kwargs.Get("location"); ok {
		name, isString := v.(string)
		if !isString {
			return nil, argTypeError("location", "string", v)
		}
		l, err := time.LoadLocation(name)
		if err != nil {
			return nil, perrors.New("TYPE-0002", map[string]any{
				"Function": "epoch_millis", "Expected": "a time zone name", "Arg": "location", "Got": name,
			})
		}
		loc = l
	}
	for _, k := range kwargs.Keys() {
		if k != "location" {
			return nil, perrors.New("USAGE-0003", map[string]any{"Function": "epoch_millis", "Option": k})
		}
	}

	switch len(args) {
	case 0:
		return now().UnixMilli(), nil
	case 1:
	default:
		return nil, perrors.New("USAGE-0002", map[string]any{"Function": "epoch_millis", "Want": "0 or 1", "Got": len(args)})
	}

	s, ok := args[0].(string)
	if !ok {
		return nil, argTypeError("date", "string", args[0])
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return nil, perrors.New("TYPE-0002", map[string]any{
			"Function": "epoch_millis", "Expected": "a date", "Arg": "date", "Got": s,
		})
	}
	return t.UnixMilli(), nil
}

func argTypeError(arg, expected string, got any) error {
	return perrors.New("TYPE-0002", map[string]any{
		"Function": "epoch_millis", "Expected": expected, "Arg": arg, "Got": vm.TypeName(got),
	})
}
