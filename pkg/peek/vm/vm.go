// Package vm evaluates peek statements.
//
// Evaluation walks the AST once. Composite values are built through a
// stack of accumulation targets: a dict or array pushes a target, each
// child delivers its value to the target on top, and the finished value is
// delivered to the target below once the composite is popped.
package vm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sambeau/peek/pkg/peek/ast"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

// Request is one outbound API call.
type Request struct {
	Method  string
	Path    string
	Body    string // newline-delimited JSON documents, empty for none
	Headers map[string]string
}

// Executor performs requests against one connection.
type Executor interface {
	Execute(ctx context.Context, req *Request) (any, error)
}

// Connections selects the executor for an API call.
type Connections interface {
	Current() (Executor, error)
	Get(index int) (Executor, error)
	Lookup(name string) (Executor, error)
}

// Display receives results and errors.
type Display interface {
	Info(v any)
	Error(v any)
}

// StructuredError is an error that carries a diagnostic payload, such as
// the decoded body of an error response, to be shown instead of the error.
type StructuredError interface {
	error
	Info() any
}

// Host is what the evaluator and the callables it invokes run against.
type Host interface {
	Connections() Connections
	Display() Display
	Registry() *Registry
}

const (
	// OptionRunAs names the option that becomes the run-as header.
	OptionRunAs = "runas"
	// OptionConn names the option that selects a connection.
	OptionConn = "conn"

	RunAsHeader = "es-security-runas-user"
)

type targetKind int

const (
	captureTarget targetKind = iota
	listTarget
	dictTarget
)

// target accumulates the values delivered by child nodes.
type target struct {
	kind   targetKind
	value  any
	list   []any
	dict   *Dict
	key    string
	hasKey bool
}

func (t *target) consume(v any) error {
	switch t.kind {
	case captureTarget:
		t.value = v
	case listTarget:
		t.list = append(t.list, v)
	case dictTarget:
		if !t.hasKey {
			key, err := keyString(v)
			if err != nil {
				return err
			}
			t.key, t.hasKey = key, true
			return nil
		}
		t.dict.Set(t.key, v)
		t.hasKey = false
	}
	return nil
}

func (t *target) result() any {
	switch t.kind {
	case listTarget:
		return t.list
	case dictTarget:
		return t.dict
	}
	return t.value
}

// keyString turns an evaluated dict key into its string form.
func keyString(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case nil, bool, int64, float64, json.Number:
		return Encode(k)
	}
	return "", perrors.New("TYPE-0003", map[string]any{"Got": TypeName(v)})
}

// ErrReported marks a failure that has already been shown. Execute
// returns it without displaying it again.
var ErrReported = errors.New("statement failed")

// VM evaluates statements one at a time.
type VM struct {
	host  Host
	stack []*target
}

// New creates an evaluator bound to host.
func New(host Host) *VM {
	return &VM{host: host}
}

// Execute evaluates one statement. Results and errors go to the host's
// display; the error is also returned so callers can track failures.
func (vm *VM) Execute(ctx context.Context, stmt ast.Statement) error {
	vm.stack = vm.stack[:0]

	var err error
	switch s := stmt.(type) {
	case *ast.ApiCall:
		err = vm.execApiCall(ctx, s)
	case *ast.FuncCall:
		err = vm.execFuncCall(ctx, s)
	default:
		err = fmt.Errorf("cannot execute %T", stmt)
	}

	if err != nil {
		vm.report(err)
	}
	return err
}

func (vm *VM) report(err error) {
	if errors.Is(err, ErrReported) {
		return
	}
	var se StructuredError
	if errors.As(err, &se) {
		if info := se.Info(); info != nil {
			vm.host.Display().Info(info)
			return
		}
	}
	vm.host.Display().Error(err)
}

func (vm *VM) push(kind targetKind) {
	t := &target{kind: kind}
	switch kind {
	case listTarget:
		t.list = []any{}
	case dictTarget:
		t.dict = NewDict()
	}
	vm.stack = append(vm.stack, t)
}

func (vm *VM) pop() *target {
	t := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return t
}

func (vm *VM) consume(v any) error {
	return vm.stack[len(vm.stack)-1].consume(v)
}

// evaluate runs n against a fresh capture target and returns its value.
func (vm *VM) evaluate(ctx context.Context, n ast.Expression) (any, error) {
	base := len(vm.stack)
	vm.push(captureTarget)
	if err := vm.visit(ctx, n); err != nil {
		vm.stack = vm.stack[:base]
		return nil, err
	}
	return vm.pop().value, nil
}

func (vm *VM) visit(ctx context.Context, n ast.Expression) error {
	switch n := n.(type) {
	case *ast.String:
		v, err := n.Value()
		if err != nil {
			return literalError(n.String(), err)
		}
		return vm.consume(v)

	case *ast.Number:
		v, err := n.Value()
		if err != nil {
			return literalError(n.String(), err)
		}
		return vm.consume(v)

	case *ast.Name:
		v, err := vm.resolveValue(n.Value())
		if err != nil {
			return err
		}
		return vm.consume(v)

	case *ast.Text:
		return vm.consume(n.String())

	case *ast.Array:
		vm.push(listTarget)
		for _, el := range n.Elements {
			if err := vm.visit(ctx, el); err != nil {
				return err
			}
		}
		return vm.consume(vm.pop().result())

	case *ast.Dict:
		vm.push(dictTarget)
		for _, e := range n.Entries {
			// bare-word keys are literal strings
			if name, ok := e.Key.(*ast.Name); ok {
				if err := vm.consume(name.Value()); err != nil {
					return err
				}
			} else if err := vm.visit(ctx, e.Key); err != nil {
				return err
			}
			if err := vm.visit(ctx, e.Value); err != nil {
				return err
			}
		}
		return vm.consume(vm.pop().result())
	}

	return fmt.Errorf("cannot evaluate %T", n)
}

func literalError(raw string, err error) error {
	return perrors.New("TYPE-0005", map[string]any{"Literal": raw, "GoError": err.Error()})
}

// resolveValue evaluates a bare name used as a value.
func (vm *VM) resolveValue(name string) (any, error) {
	switch name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}

	reg := vm.host.Registry()
	if v, ok := reg.Resolve(name); ok {
		return v, nil
	}
	return nil, perrors.NewUnknownName(name, reg.Names())
}

func (vm *VM) execApiCall(ctx context.Context, call *ast.ApiCall) error {
	v, err := vm.evaluate(ctx, call.Options)
	if err != nil {
		return err
	}
	options := v.(*Dict)

	vm.push(listTarget)
	for _, p := range call.Payloads {
		if err := vm.visit(ctx, p); err != nil {
			return err
		}
	}
	payloads := vm.pop().list

	lines := make([]string, 0, len(payloads))
	for _, p := range payloads {
		line, err := Encode(p)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	var body string
	if len(lines) > 0 {
		body = strings.Join(lines, "\n") + "\n"
	}

	headers := map[string]string{}
	// runas=null is left in place and rejected as an unknown option
	if runas, ok := options.Get(OptionRunAs); ok && runas != nil {
		options.Pop(OptionRunAs)
		headers[RunAsHeader] = Stringify(runas)
	}

	conn, _ := options.Pop(OptionConn)
	exec, err := vm.selectConnection(conn)
	if err != nil {
		return err
	}

	if options.Len() > 0 {
		return perrors.New("USAGE-0001", map[string]any{"Options": options.String()})
	}

	result, err := exec.Execute(ctx, &Request{
		Method:  call.Verb(),
		Path:    call.Path.String(),
		Body:    body,
		Headers: headers,
	})
	if err != nil {
		return err
	}
	vm.host.Display().Info(result)
	return nil
}

// selectConnection picks the executor named by a conn option: an index,
// a connection name, or the current connection when absent.
func (vm *VM) selectConnection(conn any) (Executor, error) {
	conns := vm.host.Connections()
	switch c := conn.(type) {
	case nil:
		return conns.Current()
	case int64:
		return conns.Get(int(c))
	case float64:
		if c == float64(int(c)) {
			return conns.Get(int(c))
		}
	case string:
		return conns.Lookup(c)
	}
	return nil, perrors.New("TYPE-0002", map[string]any{
		"Function": "api call",
		"Expected": "integer or string",
		"Arg":      OptionConn,
		"Got":      TypeName(conn),
	})
}

func (vm *VM) execFuncCall(ctx context.Context, call *ast.FuncCall) error {
	name := call.Name.Value()
	reg := vm.host.Registry()

	v, ok := reg.Resolve(name)
	if !ok {
		return perrors.NewUnknownName(name, reg.Names())
	}
	fn, ok := v.(Callable)
	if !ok {
		return perrors.New("TYPE-0001", map[string]any{"Name": name, "Got": TypeName(v)})
	}

	argsV, err := vm.evaluate(ctx, call.Args)
	if err != nil {
		return err
	}
	kwargsV, err := vm.evaluate(ctx, call.Kwargs)
	if err != nil {
		return err
	}

	result, err := fn.Call(ctx, vm.host, argsV.([]any), kwargsV.(*Dict))
	if err != nil {
		return err
	}
	if result != nil {
		vm.host.Display().Info(result)
	}
	return nil
}

// Stringify renders a value for places that need plain text: strings
// as themselves, everything else as compact JSON.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if c, ok := v.(Callable); ok {
		return fmt.Sprintf("<function %T>", c)
	}
	s, err := Encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
