// Package lexer turns peek source into positioned tokens.
//
// The scanner keeps an explicit stack of modes so that the same character
// can mean different things depending on where it appears: a '{' after an
// API call head opens a payload block, a '{' inside a function call opens
// a dict, and a '{' at the start of a statement is an error.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind identifies the type of a token.
type Kind int

const (
	// Special kinds
	Error Kind = iota
	EOF
	Whitespace
	Comment // // to end of line
	Newline // statement terminator

	// Statement heads
	HTTPMethod // GET, post, Put, ...
	URLPath    // /index/_doc/1?refresh=true
	FuncName   // connect, session, ...

	// Values
	Name               // bare identifier
	Constant           // true, false, null
	Number             // 42, -4.2, .42, 42e+1
	StringDouble       // "..."
	StringSingle       // '...'
	StringTripleDouble // """..."""
	StringTripleSingle // '''...'''

	// Punctuation
	Assign       // =
	Colon        // :
	Comma        // ,
	PayloadLeft  // { opening a payload block
	PayloadRight // } closing a payload block
	CurlyLeft    // { opening a nested dict
	CurlyRight   // }
	BracketLeft  // [
	BracketRight // ]
)

var kindNames = map[Kind]string{
	Error:              "Error",
	EOF:                "EOF",
	Whitespace:         "Whitespace",
	Comment:            "Comment",
	Newline:            "Newline",
	HTTPMethod:         "HTTPMethod",
	URLPath:            "URLPath",
	FuncName:           "FuncName",
	Name:               "Name",
	Constant:           "Constant",
	Number:             "Number",
	StringDouble:       "StringDouble",
	StringSingle:       "StringSingle",
	StringTripleDouble: "StringTripleDouble",
	StringTripleSingle: "StringTripleSingle",
	Assign:             "Assign",
	Colon:              "Colon",
	Comma:              "Comma",
	PayloadLeft:        "PayloadLeft",
	PayloadRight:       "PayloadRight",
	CurlyLeft:          "CurlyLeft",
	CurlyRight:         "CurlyRight",
	BracketLeft:        "BracketLeft",
	BracketRight:       "BracketRight",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Category returns the coarse class of the kind as used in syntax
// highlighting and in parser error messages.
func (k Kind) Category() string {
	switch k {
	case Error:
		return "Error"
	case EOF:
		return "EOF"
	case Whitespace:
		return "Whitespace"
	case Comment:
		return "Comment"
	case Newline:
		return "Text"
	case HTTPMethod, Constant:
		return "Keyword"
	case FuncName, Name:
		return "Name"
	case URLPath, Number, StringDouble, StringSingle, StringTripleDouble, StringTripleSingle:
		return "Literal"
	case Assign:
		return "Operator"
	default:
		return "Punctuation"
	}
}

// IsString reports whether the kind is one of the string kinds.
func (k Kind) IsString() bool {
	switch k {
	case StringDouble, StringSingle, StringTripleDouble, StringTripleSingle:
		return true
	}
	return false
}

// Quote returns the delimiter of a string kind, or "" for other kinds.
func (k Kind) Quote() string {
	switch k {
	case StringDouble:
		return `"`
	case StringSingle:
		return `'`
	case StringTripleDouble:
		return `"""`
	case StringTripleSingle:
		return `'''`
	}
	return ""
}

// Token is a positioned slice of the source.
type Token struct {
	Offset int // byte offset into the source
	Kind   Kind
	Text   string
}

func (t Token) String() string {
	return fmt.Sprintf("(%d, %s, %q)", t.Offset, t.Kind, t.Text)
}

type mode int

const (
	modeRoot        mode = iota // between statements
	modeAPIPath                 // after the method, expecting the path
	modeAPIOptions              // after the path, name=value options
	modeAPIPayloads             // after the first payload block
	modeFuncArgs                // function call arguments
	modePayload                 // inside a payload block
	modeDict                    // inside a nested dict
	modeArray                   // inside an array
	modeInvalid                 // inside a block that cannot start a statement
	modeString                  // inside a quoted string
)

var httpMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"HEAD":    true,
	"PATCH":   true,
	"OPTIONS": true,
}

// IsHTTPMethod reports whether word is a method verb, ignoring case.
func IsHTTPMethod(word string) bool {
	return httpMethods[strings.ToUpper(word)]
}

// Lexer scans a source string one token at a time.
type Lexer struct {
	input string
	pos   int
	modes []mode
	quote string // delimiter of the string being scanned
	strK  Kind
	last  Kind // last significant token kind
}

// New creates a lexer positioned at the start of input.
func New(input string) *Lexer {
	return &Lexer{input: input, modes: []mode{modeRoot}}
}

// Tokenize scans the whole input. The returned slice does not include
// the EOF token. Whitespace and comments are kept.
func Tokenize(input string) []Token {
	l := New(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Kind == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// NeedsMore reports whether input stops in the middle of a statement: an
// open bracket or string, or an API call whose payload blocks may still
// continue on the next line.
func NeedsMore(input string) bool {
	l := New(input)
	for l.NextToken().Kind != EOF {
	}
	switch l.mode() {
	case modeRoot, modeAPIPath, modeAPIOptions, modeFuncArgs:
		return false
	}
	return true
}

func (l *Lexer) mode() mode {
	return l.modes[len(l.modes)-1]
}

func (l *Lexer) push(m mode) {
	l.modes = append(l.modes, m)
}

func (l *Lexer) pop() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

func (l *Lexer) replace(m mode) {
	l.modes[len(l.modes)-1] = m
}

// endStatement drops every mode above root.
func (l *Lexer) endStatement() {
	l.modes = l.modes[:1]
}

func (l *Lexer) emit(kind Kind, start int) Token {
	tok := Token{Offset: start, Kind: kind, Text: l.input[start:l.pos]}
	switch kind {
	case Whitespace, Comment:
	default:
		l.last = kind
	}
	return tok
}

// errorRune consumes one rune as an Error token.
func (l *Lexer) errorRune() Token {
	start := l.pos
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return l.emit(Error, start)
}

// NextToken returns the next token, or an EOF token at the end of input.
func (l *Lexer) NextToken() Token {
	if l.pos >= len(l.input) {
		return Token{Offset: len(l.input), Kind: EOF}
	}

	if l.mode() == modeString {
		return l.stringFragment()
	}

	ch := l.input[l.pos]
	switch {
	case ch == '\n':
		return l.newline()
	case isSpace(ch):
		return l.whitespace()
	case ch == '/' && l.peekByte(1) == '/':
		return l.comment()
	}

	switch l.mode() {
	case modeRoot:
		return l.statementStart()
	case modeInvalid:
		return l.invalid()
	case modeAPIPath:
		return l.path()
	case modeAPIOptions, modeAPIPayloads, modeFuncArgs:
		return l.argument()
	default:
		return l.value()
	}
}

func (l *Lexer) peekByte(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) whitespace() Token {
	start := l.pos
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	return l.emit(Whitespace, start)
}

func (l *Lexer) comment() Token {
	start := l.pos
	if i := strings.IndexByte(l.input[l.pos:], '\n'); i >= 0 {
		l.pos += i
	} else {
		l.pos = len(l.input)
	}
	return l.emit(Comment, start)
}

// newline decides whether a line break ends the current statement.
func (l *Lexer) newline() Token {
	start := l.pos
	l.pos++

	switch l.mode() {
	case modeAPIOptions, modeAPIPayloads:
		if l.continuesPayload(l.pos) {
			return l.emit(Whitespace, start)
		}
	case modeAPIPath, modeFuncArgs:
	default:
		return l.emit(Whitespace, start)
	}

	l.endStatement()
	return l.emit(Newline, start)
}

// continuesPayload reports whether the text from offset holds another
// payload block for the current API call: a '{' reached through
// whitespace and comment-only lines, without crossing a blank line.
func (l *Lexer) continuesPayload(offset int) bool {
	s := l.input
	i := offset
	for i < len(s) {
		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		switch {
		case j >= len(s):
			return false
		case s[j] == '{':
			return true
		case strings.HasPrefix(s[j:], "//"):
			nl := strings.IndexByte(s[j:], '\n')
			if nl < 0 {
				return false
			}
			i = j + nl + 1
		default:
			return false
		}
	}
	return false
}

// statementStart scans the first word of a statement.
func (l *Lexer) statementStart() Token {
	start := l.pos
	ch := l.input[l.pos]

	if ch == '{' {
		l.pos++
		l.push(modeInvalid)
		return l.emit(Error, start)
	}
	if !isLetter(ch) {
		return l.errorRune()
	}

	word := l.readIdentifier()
	next := l.peekByte(0)
	if IsHTTPMethod(word) && (l.pos >= len(l.input) || isSpace(next) || next == '\n') {
		l.push(modeAPIPath)
		return l.emit(HTTPMethod, start)
	}
	l.push(modeFuncArgs)
	return l.emit(FuncName, start)
}

// invalid marks everything inside a misplaced block as an error.
func (l *Lexer) invalid() Token {
	switch l.input[l.pos] {
	case '{':
		l.push(modeInvalid)
	case '}':
		l.pop()
	}
	return l.errorRune()
}

// path captures the URL path of an API call up to the next whitespace.
func (l *Lexer) path() Token {
	start := l.pos
	for l.pos < len(l.input) && !isSpace(l.input[l.pos]) && l.input[l.pos] != '\n' {
		l.pos++
	}
	l.replace(modeAPIOptions)
	return l.emit(URLPath, start)
}

// argument scans one token of an API call tail or of function arguments.
func (l *Lexer) argument() Token {
	start := l.pos
	ch := l.input[l.pos]
	m := l.mode()

	if m == modeAPIPayloads && ch != '{' {
		return l.errorRune()
	}

	switch ch {
	case '{':
		l.pos++
		if m != modeFuncArgs && l.last != Assign {
			l.push(modePayload)
			return l.emit(PayloadLeft, start)
		}
		l.push(modeDict)
		return l.emit(CurlyLeft, start)
	case '=':
		l.pos++
		return l.emit(Assign, start)
	case '}', ']', ':', ',':
		return l.errorRune()
	}
	return l.value()
}

// value scans literals and bracket punctuation.
func (l *Lexer) value() Token {
	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '"' || ch == '\'':
		return l.openString()
	case isDigit(ch) || (ch == '-' || ch == '.') && l.startsNumber():
		l.readNumber()
		return l.emit(Number, start)
	case isLetter(ch):
		word := l.readIdentifier()
		switch word {
		case "true", "false", "null":
			return l.emit(Constant, start)
		}
		return l.emit(Name, start)
	}

	m := l.mode()
	inBlock := m == modePayload || m == modeDict || m == modeArray
	switch ch {
	case '{':
		l.pos++
		l.push(modeDict)
		return l.emit(CurlyLeft, start)
	case '[':
		l.pos++
		l.push(modeArray)
		return l.emit(BracketLeft, start)
	case '}':
		switch m {
		case modePayload:
			l.pos++
			l.pop()
			l.replace(modeAPIPayloads)
			return l.emit(PayloadRight, start)
		case modeDict:
			l.pos++
			l.pop()
			return l.emit(CurlyRight, start)
		}
	case ']':
		if m == modeArray {
			l.pos++
			l.pop()
			return l.emit(BracketRight, start)
		}
	case ':':
		if inBlock {
			l.pos++
			return l.emit(Colon, start)
		}
	case ',':
		if inBlock {
			l.pos++
			return l.emit(Comma, start)
		}
	}
	return l.errorRune()
}

// startsNumber reports whether a '-' or '.' at the current position is
// the start of a numeric literal.
func (l *Lexer) startsNumber() bool {
	i := l.pos
	if l.input[i] == '-' {
		i++
	}
	if i < len(l.input) && l.input[i] == '.' {
		i++
	}
	return i < len(l.input) && isDigit(l.input[i])
}

// readNumber consumes -?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?
func (l *Lexer) readNumber() {
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		i := l.pos + 1
		if i < len(l.input) && (l.input[i] == '+' || l.input[i] == '-') {
			i++
		}
		if i < len(l.input) && isDigit(l.input[i]) {
			for i < len(l.input) && isDigit(l.input[i]) {
				i++
			}
			l.pos = i
		}
	}
}

// readIdentifier consumes a possibly dotted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isLetter(ch) || isDigit(ch) {
			l.pos++
			continue
		}
		if ch == '.' && isLetter(l.peekByte(1)) {
			l.pos++
			continue
		}
		break
	}
	return l.input[start:l.pos]
}

func (l *Lexer) openString() Token {
	start := l.pos
	rest := l.input[l.pos:]
	switch {
	case strings.HasPrefix(rest, `"""`):
		l.quote, l.strK = `"""`, StringTripleDouble
	case strings.HasPrefix(rest, `'''`):
		l.quote, l.strK = `'''`, StringTripleSingle
	case rest[0] == '"':
		l.quote, l.strK = `"`, StringDouble
	default:
		l.quote, l.strK = `'`, StringSingle
	}
	l.pos += len(l.quote)
	l.push(modeString)
	return l.emit(l.strK, start)
}

// stringFragment scans content, an escape, or the closing quote.
func (l *Lexer) stringFragment() Token {
	start := l.pos
	rest := l.input[l.pos:]
	single := len(l.quote) == 1

	switch {
	case strings.HasPrefix(rest, l.quote):
		l.pos += len(l.quote)
		l.pop()
		return l.emit(l.strK, start)
	case rest[0] == '\\':
		l.pos++
		if l.pos < len(l.input) {
			_, size := utf8.DecodeRuneInString(l.input[l.pos:])
			l.pos += size
		}
		return l.emit(l.strK, start)
	case rest[0] == '\n' && single:
		// unterminated; the enclosing mode decides what the newline means
		l.pop()
		return l.NextToken()
	}

	for l.pos < len(l.input) {
		rest = l.input[l.pos:]
		if rest[0] == '\\' || strings.HasPrefix(rest, l.quote) || (single && rest[0] == '\n') {
			break
		}
		l.pos++
	}
	return l.emit(l.strK, start)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Position maps a byte offset to a 1-based line and a 1-based column
// counted in runes.
func Position(src string, offset int) (line, column int) {
	if offset > len(src) {
		offset = len(src)
	}
	before := src[:offset]
	line = strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	column = utf8.RuneCountInString(before[lineStart:]) + 1
	return line, column
}
