package ast

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement represents a top-level statement: an API call or a function call
type Statement interface {
	Node
	statementNode()
}

// Expression represents value nodes
type Expression interface {
	Node
	expressionNode()
}

// Program represents the statements of one parse
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer

	for _, s := range p.Statements {
		out.WriteString(s.String())
	}

	return out.String()
}

// ApiCall represents 'METHOD PATH [name=value ...]' followed by zero or
// more payload blocks
type ApiCall struct {
	Token    lexer.Token // the lexer.HTTPMethod token, case preserved
	Path     *Text
	Options  *Dict
	Payloads []*Dict
}

func (ac *ApiCall) statementNode()       {}
func (ac *ApiCall) TokenLiteral() string { return ac.Token.Text }

// Verb returns the method upper-cased for dispatch.
func (ac *ApiCall) Verb() string { return strings.ToUpper(ac.Token.Text) }

func (ac *ApiCall) String() string {
	var out bytes.Buffer

	out.WriteString(ac.Token.Text)
	out.WriteString(" ")
	out.WriteString(ac.Path.String())
	out.WriteString(" ")
	out.WriteString(ac.Options.String())
	out.WriteString("\n")
	for _, p := range ac.Payloads {
		out.WriteString(p.String())
		out.WriteString("\n")
	}

	return out.String()
}

// FuncCall represents 'name [value ...] [name=value ...]'
type FuncCall struct {
	Token  lexer.Token // the lexer.FuncName token
	Name   *Name
	Args   *Array
	Kwargs *Dict
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// NewFuncCall builds a function call node. Every keyword argument key must
// be a Name holding an identifier.
func NewFuncCall(tok lexer.Token, args *Array, kwargs *Dict) (*FuncCall, error) {
	for _, e := range kwargs.Entries {
		name, ok := e.Key.(*Name)
		if !ok || !identifierPattern.MatchString(name.Value()) {
			return nil, errors.New("SYNTAX-0003", map[string]any{"Got": e.Key.String()})
		}
	}
	return &FuncCall{
		Token:  tok,
		Name:   &Name{Token: tok},
		Args:   args,
		Kwargs: kwargs,
	}, nil
}

func (fc *FuncCall) statementNode()       {}
func (fc *FuncCall) TokenLiteral() string { return fc.Token.Text }
func (fc *FuncCall) String() string {
	var out bytes.Buffer

	out.WriteString(fc.Name.String())
	for _, a := range fc.Args.Elements {
		out.WriteString(" ")
		out.WriteString(a.String())
	}
	for _, e := range fc.Kwargs.Entries {
		out.WriteString(" ")
		out.WriteString(e.Key.String())
		out.WriteString("=")
		out.WriteString(e.Value.String())
	}
	out.WriteString("\n")

	return out.String()
}

// Entry is one key/value pair of a Dict
type Entry struct {
	Key   Expression
	Value Expression
}

// Dict represents '{key: value, ...}' and option lists; order is kept
type Dict struct {
	Token   lexer.Token // the opening brace, zero for option lists
	Entries []*Entry
}

func (d *Dict) expressionNode()      {}
func (d *Dict) TokenLiteral() string { return d.Token.Text }
func (d *Dict) String() string {
	var out bytes.Buffer

	out.WriteString("{")
	for i, e := range d.Entries {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString(e.Key.String())
		out.WriteString(":")
		out.WriteString(e.Value.String())
	}
	out.WriteString("}")

	return out.String()
}

// Array represents '[value, ...]' and positional argument lists
type Array struct {
	Token    lexer.Token // the '[' token, zero for argument lists
	Elements []Expression
}

func (a *Array) expressionNode()      {}
func (a *Array) TokenLiteral() string { return a.Token.Text }
func (a *Array) String() string {
	var out bytes.Buffer

	out.WriteString("[")
	for i, el := range a.Elements {
		if i > 0 {
			out.WriteString(",")
		}
		out.WriteString(el.String())
	}
	out.WriteString("]")

	return out.String()
}

// String is a quoted literal; the token text keeps quotes and escapes
type String struct {
	Token lexer.Token
}

func (s *String) expressionNode()      {}
func (s *String) TokenLiteral() string { return s.Token.Text }
func (s *String) String() string       { return s.Token.Text }

// Value decodes the literal.
func (s *String) Value() (string, error) {
	return Unquote(s.Token.Text)
}

// Number is a numeric literal; the token text keeps its formatting
type Number struct {
	Token lexer.Token
}

func (n *Number) expressionNode()      {}
func (n *Number) TokenLiteral() string { return n.Token.Text }
func (n *Number) String() string       { return n.Token.Text }

// Value parses the literal to an int64 or float64.
func (n *Number) Value() (any, error) {
	return ParseNumber(n.Token.Text)
}

// Name is a bare identifier, including true, false and null
type Name struct {
	Token lexer.Token
}

func (n *Name) expressionNode()      {}
func (n *Name) TokenLiteral() string { return n.Token.Text }
func (n *Name) String() string       { return n.Token.Text }
func (n *Name) Value() string        { return n.Token.Text }

// Text is raw source text such as a URL path
type Text struct {
	Token lexer.Token
}

func (t *Text) expressionNode()      {}
func (t *Text) TokenLiteral() string { return t.Token.Text }
func (t *Text) String() string       { return t.Token.Text }
