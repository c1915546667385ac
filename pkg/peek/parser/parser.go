// Package parser builds peek ASTs from source text.
//
// Parsing is all-or-nothing: the first token that does not fit the grammar
// aborts the whole parse with a syntax error carrying its line and column.
package parser

import (
	"strconv"
	"strings"

	"github.com/sambeau/peek/pkg/peek/ast"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/lexer"
)

// Parser consumes the normalized token stream with one token of lookahead.
type Parser struct {
	src    string
	tokens []lexer.Token
	pos    int

	curToken  lexer.Token
	peekToken lexer.Token
}

// New tokenizes and normalizes src and returns a parser ready at the
// first token.
func New(src string) *Parser {
	tokens := lexer.Normalize(lexer.Tokenize(src))
	tokens = append(tokens, lexer.Token{Offset: len(src), Kind: lexer.EOF})

	p := &Parser{src: src, tokens: tokens}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses every statement in src.
func Parse(src string) (*ast.Program, error) {
	return New(src).ParseProgram()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.pos < len(p.tokens) {
		p.peekToken = p.tokens[p.pos]
		p.pos++
	}
}

func (p *Parser) curTokenIs(k lexer.Kind) bool {
	return p.curToken.Kind == k
}

func (p *Parser) peekTokenIs(k lexer.Kind) bool {
	return p.peekToken.Kind == k
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	program := &ast.Program{}

	for !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.Newline) {
			p.nextToken()
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program.Statements = append(program.Statements, stmt)
	}

	return program, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.curToken.Kind {
	case lexer.HTTPMethod:
		return p.parseApiCall()
	case lexer.FuncName:
		return p.parseFuncCall()
	default:
		return nil, p.unexpected("Keyword")
	}
}

func (p *Parser) parseApiCall() (*ast.ApiCall, error) {
	call := &ast.ApiCall{Token: p.curToken, Options: &ast.Dict{}}
	p.nextToken()

	if !p.curTokenIs(lexer.URLPath) {
		return nil, p.unexpected("Literal")
	}
	call.Path = &ast.Text{Token: p.curToken}
	p.nextToken()

	for p.curTokenIs(lexer.Name) {
		key := &ast.Name{Token: p.curToken}
		if !p.peekTokenIs(lexer.Assign) {
			p.nextToken()
			return nil, p.unexpected("Operator")
		}
		p.nextToken()
		p.nextToken()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		call.Options.Entries = append(call.Options.Entries, &ast.Entry{Key: key, Value: value})
	}

	for p.curTokenIs(lexer.PayloadLeft) {
		payload, err := p.parseDict(lexer.PayloadRight)
		if err != nil {
			return nil, err
		}
		call.Payloads = append(call.Payloads, payload)
	}

	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseFuncCall() (*ast.FuncCall, error) {
	tok := p.curToken
	args := &ast.Array{}
	kwargs := &ast.Dict{}
	p.nextToken()

	for !p.curTokenIs(lexer.Newline) && !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.Name) && p.peekTokenIs(lexer.Assign) {
			key := &ast.Name{Token: p.curToken}
			p.nextToken()
			p.nextToken()
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			kwargs.Entries = append(kwargs.Entries, &ast.Entry{Key: key, Value: value})
			continue
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args.Elements = append(args.Elements, value)
	}

	call, err := ast.NewFuncCall(tok, args, kwargs)
	if err != nil {
		return nil, p.wrap(tok, err)
	}
	return call, nil
}

// endStatement requires the statement to stop at a newline or EOF.
func (p *Parser) endStatement() error {
	switch p.curToken.Kind {
	case lexer.Newline:
		p.nextToken()
		return nil
	case lexer.EOF:
		return nil
	}
	return p.unexpected("Text")
}

func (p *Parser) parseValue() (ast.Expression, error) {
	tok := p.curToken

	switch {
	case tok.Kind.IsString():
		p.nextToken()
		return &ast.String{Token: tok}, nil
	case tok.Kind == lexer.Number:
		p.nextToken()
		return &ast.Number{Token: tok}, nil
	case tok.Kind == lexer.Name, tok.Kind == lexer.Constant:
		p.nextToken()
		return &ast.Name{Token: tok}, nil
	case tok.Kind == lexer.BracketLeft:
		return p.parseArray()
	case tok.Kind == lexer.CurlyLeft:
		return p.parseDict(lexer.CurlyRight)
	case tok.Kind == lexer.Error && strings.ContainsAny(tok.Text[:1], `"'`):
		return nil, p.errorAt(tok, "SYNTAX-0002", map[string]any{"Text": strconv.Quote(tok.Text)})
	case tok.Kind == lexer.Error:
		return nil, p.errorAt(tok, "SYNTAX-0004", map[string]any{"Text": strconv.Quote(tok.Text)})
	}

	return nil, p.unexpected("Literal")
}

func (p *Parser) parseArray() (*ast.Array, error) {
	array := &ast.Array{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(lexer.BracketRight) {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		array.Elements = append(array.Elements, value)

		if p.curTokenIs(lexer.Comma) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(lexer.BracketRight) {
			return nil, p.unexpected("Punctuation")
		}
	}
	p.nextToken()

	return array, nil
}

// parseDict parses a payload block or a nested dict; closing is the kind
// of the matching brace.
func (p *Parser) parseDict(closing lexer.Kind) (*ast.Dict, error) {
	dict := &ast.Dict{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(closing) {
		key, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if !p.curTokenIs(lexer.Colon) {
			return nil, p.unexpected("Punctuation")
		}
		p.nextToken()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		dict.Entries = append(dict.Entries, &ast.Entry{Key: key, Value: value})

		if p.curTokenIs(lexer.Comma) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(closing) {
			return nil, p.unexpected("Punctuation")
		}
	}
	p.nextToken()

	return dict, nil
}

// unexpected reports the current token as not matching the expected category.
func (p *Parser) unexpected(expected string) error {
	data := map[string]any{
		"Expected": expected,
		"Got":      p.curToken.Kind.Category(),
	}
	if p.curToken.Text != "" {
		data["Text"] = strconv.Quote(p.curToken.Text)
	}
	return p.errorAt(p.curToken, "SYNTAX-0001", data)
}

func (p *Parser) errorAt(tok lexer.Token, code string, data map[string]any) error {
	line, col := lexer.Position(p.src, tok.Offset)
	return perrors.NewWithPosition(code, line, col, data).WithSource(p.src)
}

// wrap positions an error raised while building a node.
func (p *Parser) wrap(tok lexer.Token, err error) error {
	pe, ok := err.(*perrors.PeekError)
	if !ok {
		pe = perrors.NewSimple(perrors.ClassSyntax, err.Error())
	}
	line, col := lexer.Position(p.src, tok.Offset)
	return pe.WithPosition(line, col).WithSource(p.src)
}
