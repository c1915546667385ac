// Package ext holds the extensions that can be enabled in a peek session.
//
// An extension registers itself from an init function, the way database
// drivers do, and is enabled by name in the configuration:
//
//	extensions:
//	  names: [stdx]
package ext

import (
	"fmt"
	"sort"
	"sync"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

// Extension is a named bundle of exports.
type Extension struct {
	Name        string
	Description string
	Exports     func() map[string]any
}

// All enables every registered extension when given as a name.
const All = "*"

var (
	mu         sync.RWMutex
	extensions = make(map[string]Extension)
)

// Register makes an extension available. It panics when the name is
// taken or the extension has no exports.
func Register(e Extension) {
	mu.Lock()
	defer mu.Unlock()
	if e.Exports == nil {
		panic("ext: Register of extension without exports: " + e.Name)
	}
	if _, dup := extensions[e.Name]; dup {
		panic("ext: Register called twice for extension " + e.Name)
	}
	extensions[e.Name] = e
}

func Lookup(name string) (Extension, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := extensions[name]
	return e, ok
}

// Names returns the registered extension names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(extensions))
	for name := range extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exports merges the exports of the named extensions. Later names win on
// conflicts; All enables every registered extension in name order.
func Exports(enabled []string) (map[string]any, error) {
	var names []string
	for _, name := range enabled {
		if name == All {
			names = append(names, Names()...)
			continue
		}
		names = append(names, name)
	}

	exports := make(map[string]any)
	for _, name := range names {
		e, ok := Lookup(name)
		if !ok {
			err := perrors.New("UNDEF-0005", map[string]any{"Name": name})
			if match := perrors.FindClosestMatch(name, Names()); match != "" {
				err.Hints = []string{fmt.Sprintf("Did you mean `%s`?", match)}
			}
			return nil, err
		}
		for k, v := range e.Exports() {
			exports[k] = v
		}
	}
	return exports, nil
}
