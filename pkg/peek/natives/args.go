package natives

import (
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// checkOptions rejects keyword arguments that fn does not take.
func checkOptions(fn string, kwargs *vm.Dict, allowed ...string) error {
	for _, k := range kwargs.Keys() {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return perrors.New("USAGE-0003", map[string]any{"Function": fn, "Option": k})
		}
	}
	return nil
}

func checkArgs(fn string, args []any, max int) error {
	if len(args) > max {
		want := "no"
		if max == 1 {
			want = "at most 1"
		}
		return perrors.New("USAGE-0002", map[string]any{"Function": fn, "Want": want, "Got": len(args)})
	}
	return nil
}

func typeError(fn, arg, expected string, got any) error {
	return perrors.New("TYPE-0002", map[string]any{
		"Function": fn,
		"Expected": expected,
		"Arg":      arg,
		"Got":      vm.TypeName(got),
	})
}

func stringOption(fn string, kwargs *vm.Dict, name, def string) (string, error) {
	v, ok := kwargs.Get(name)
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(fn, name, "string", v)
	}
	return s, nil
}

func boolOption(fn string, kwargs *vm.Dict, name string, def bool) (bool, error) {
	v, ok := kwargs.Get(name)
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(fn, name, "true or false", v)
	}
	return b, nil
}

// asInt accepts integers and floats with no fractional part.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
