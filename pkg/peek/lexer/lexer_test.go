package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// errorTokens returns only the Error tokens of the input.
func errorTokens(input string) []Token {
	var errs []Token
	for _, tok := range Tokenize(input) {
		if tok.Kind == Error {
			errs = append(errs, tok)
		}
	}
	return errs
}

func assertNoErrors(t *testing.T, input string) {
	t.Helper()
	if errs := errorTokens(input); len(errs) > 0 {
		t.Errorf("unexpected error tokens for %q: %v", input, errs)
	}
}

func TestNumbersInPayload(t *testing.T) {
	input := `get /numbers
{"numbers": [42, 4.2, 0.42, 42e+1, 4.2e-1, .42, -42, -4.2, -.42]}`
	assertNoErrors(t, input)

	var numbers []string
	for _, tok := range Tokenize(input) {
		if tok.Kind == Number {
			numbers = append(numbers, tok.Text)
		}
	}
	want := []string{"42", "4.2", "0.42", "42e+1", "4.2e-1", ".42", "-42", "-4.2", "-.42"}
	if diff := cmp.Diff(want, numbers); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
}

func TestValidInputs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"api calls", `get /some/path
{}

get /another/path a=b c=d
{"foo": "bar"}
{"ok": [42]}

get /yet/another // comment
// this comment is ok
{ // inner comment
  "ok": // trailing comment again
    [ // something
      42, // here
    ],
}
{"some": "other"}
`},
		{"api calls 2", `get abc

post abc/_doc
{ "foo":
         "bar"
}

conn foo=bar  // comment
get abc
`},
		{"payloads after comments", `get abc
  // comment is ok
 { }
    // another comment is fine
  {}
// yet another one
{ }

get xyz
{}
{}
`},
		{"func calls", `conn 1
conn "a" foo=1 c=bar

f a b c // this is ok

t 1 2 3 foo=bar // comment

g 1 b=[3,4] x={
"a": // inner
 1} // ok`},
		{"continuous statements", `get abc
get xyz
connect 1 2 3
put xyz/_doc
{}
post qwer/_doc
{
  "a": "b",
}`},
		{"api and func calls", ` // begining comment
get / conn=1 // first api call

connection 1 // set conneciton to 1
get / // this is the same as the first api call

f a b c q=42

put /
{}

g 42`},
		{"mixed", ` // some comments to start the day
get /some/path with=1.2 option=foo another="bar" // trailing comment
{ "hello": ["world", 1, '1'], }

connect 1 foo="bar" ok=good

put /here
{ 'some more': "things to do" }
{ 'even more': { "nest": "here", } }
`},
		{"minimal", `c 1 a=b`},
		{"connect", `connect hosts='https://localhost:9200' username='foo'`},
		{"dotted names", `config display.format="yaml" history.max_entries=10`},
		{"url query", `get /a/b/c?foo=bar&name&pretty=`},
		{"triple quotes", `post /x
{"q": """a "quoted" word""", 's': '''it's'''}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNoErrors(t, tt.input)
		})
	}
}

func TestInvalidTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "slash after keyword args",
			input: `conn 1 2 3 foo=bar /`,
			want:  []Token{{Offset: 19, Kind: Error, Text: "/"}},
		},
		{
			name:  "second path",
			input: `get / /`,
			want:  []Token{{Offset: 6, Kind: Error, Text: "/"}},
		},
		{
			name:  "free standing payload",
			input: "get /abc\n\n{}\n",
			want: []Token{
				{Offset: 10, Kind: Error, Text: "{"},
				{Offset: 11, Kind: Error, Text: "}"},
			},
		},
		{
			name:  "option after payload",
			input: "get /abc {} a=1",
			want:  []Token{{Offset: 12, Kind: Error, Text: "a"}, {Offset: 13, Kind: Error, Text: "="}, {Offset: 14, Kind: Error, Text: "1"}},
		},
		{
			name:  "stray closing bracket",
			input: `get /abc {"a": 1]}`,
			want:  []Token{{Offset: 16, Kind: Error, Text: "]"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, errorTokens(tt.input)); diff != "" {
				t.Errorf("error tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatementBoundaries(t *testing.T) {
	input := "get /abc\n{}\n// note\n{}\n\nsession\n"
	var kinds []Kind
	for _, tok := range Normalize(Tokenize(input)) {
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{
		HTTPMethod, URLPath, PayloadLeft, PayloadRight, PayloadLeft, PayloadRight, Newline,
		FuncName, Newline,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestHeadRecognition(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"get /", HTTPMethod},
		{"GET /", HTTPMethod},
		{"pUt /x", HTTPMethod},
		{"options /", HTTPMethod},
		{"get", HTTPMethod},
		{"getx /", FuncName},
		{"connect", FuncName},
		{"get=1", FuncName},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := Tokenize(tt.input)
			if toks[0].Kind != tt.want {
				t.Errorf("first token of %q = %s, want %s", tt.input, toks[0].Kind, tt.want)
			}
		})
	}
}

func TestStringFragments(t *testing.T) {
	input := `f "a\tb" '''x'y'''`
	want := []Token{
		{Offset: 0, Kind: FuncName, Text: "f"},
		{Offset: 1, Kind: Whitespace, Text: " "},
		{Offset: 2, Kind: StringDouble, Text: `"`},
		{Offset: 3, Kind: StringDouble, Text: "a"},
		{Offset: 4, Kind: StringDouble, Text: `\t`},
		{Offset: 6, Kind: StringDouble, Text: "b"},
		{Offset: 7, Kind: StringDouble, Text: `"`},
		{Offset: 8, Kind: Whitespace, Text: " "},
		{Offset: 9, Kind: StringTripleSingle, Text: `'''`},
		{Offset: 12, Kind: StringTripleSingle, Text: "x'y"},
		{Offset: 15, Kind: StringTripleSingle, Text: `'''`},
	}
	if diff := cmp.Diff(want, Tokenize(input)); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	tokens := []Token{
		{0, StringDouble, `"`}, {1, StringDouble, "str"}, {4, StringDouble, `"`},
		{5, CurlyLeft, "{"}, {6, CurlyLeft, "{"}, {7, Whitespace, "  "},
		{10, CurlyRight, "}"}, {11, Whitespace, " "}, {12, CurlyRight, "}"},
		{13, StringDouble, `"`}, {14, StringDouble, "d"}, {15, StringDouble, `"`},
		{16, StringSingle, "'"}, {17, StringSingle, "s"}, {18, StringSingle, "'"},
	}
	want := []Token{
		{0, StringDouble, `"str"`},
		{5, CurlyLeft, "{"}, {6, CurlyLeft, "{"},
		{10, CurlyRight, "}"}, {12, CurlyRight, "}"},
		{13, StringDouble, `"d"`},
		{16, StringSingle, "'s'"},
	}
	if diff := cmp.Diff(want, Normalize(tokens)); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeDropsComments(t *testing.T) {
	got := Normalize(Tokenize("conn 1 // pick the first\n"))
	want := []Token{
		{0, FuncName, "conn"},
		{5, Number, "1"},
		{24, Newline, "\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNeedsMore(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"get /abc", false},
		{"get /abc {", true},
		{`get /abc {"a": [1,`, true},
		{`get /abc {"a": 1}`, true},
		{"get /abc {\"a\": 1}\n{\"b\": 2}\n", false},
		{`session current="`, true},
		{`f '''abc`, true},
		{"f x={\"a\": 1}", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NeedsMore(tt.input); got != tt.want {
				t.Errorf("NeedsMore(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPosition(t *testing.T) {
	src := "get abc\n{\"a\": 1 2,\n \"b\": 5 }"
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{8, 2, 1},
		{16, 2, 9},
		{len(src), 3, 10},
	}
	for _, tt := range tests {
		line, col := Position(src, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}

	// columns count runes, not bytes
	line, col := Position("f \"é\" x", 6)
	if line != 1 || col != 6 {
		t.Errorf("Position with multibyte rune = %d:%d, want 1:6", line, col)
	}
}
