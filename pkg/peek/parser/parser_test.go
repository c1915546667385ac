package parser

import (
	"strings"
	"testing"

	"github.com/sambeau/peek/pkg/peek/ast"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

func mustParse(t *testing.T, input string) *ast.Program {
	t.Helper()
	program, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", input, err)
	}
	return program
}

func singleApiCall(t *testing.T, input string) *ast.ApiCall {
	t.Helper()
	program := mustParse(t, input)
	if len(program.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(program.Statements))
	}
	call, ok := program.Statements[0].(*ast.ApiCall)
	if !ok {
		t.Fatalf("statement is %T, want *ast.ApiCall", program.Statements[0])
	}
	return call
}

func TestSingleApiCall(t *testing.T) {
	call := singleApiCall(t, "get /abc")
	if call.Verb() != "GET" {
		t.Errorf("Verb() = %q, want GET", call.Verb())
	}
	if call.Path.String() != "/abc" {
		t.Errorf("Path = %q, want /abc", call.Path.String())
	}
	if len(call.Payloads) != 0 {
		t.Errorf("got %d payloads, want 0", len(call.Payloads))
	}
}

func TestMultipleStatements(t *testing.T) {
	input := `get abc

post abc/_doc
{ "foo":
         "bar"
}

conn foo=bar  // comment
get abc
post xyz/_doc
{"index": "asfa"}
// comment
{"again": [{"ok": 1}]}
get xyz/_doc/1 // comment
conn
get foo
`
	program := mustParse(t, input)
	if len(program.Statements) != 8 {
		t.Fatalf("got %d statements, want 8", len(program.Statements))
	}

	kinds := []string{}
	for _, s := range program.Statements {
		switch s.(type) {
		case *ast.ApiCall:
			kinds = append(kinds, "api")
		case *ast.FuncCall:
			kinds = append(kinds, "func")
		}
	}
	want := "api api func api api api func api"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("statement kinds = %q, want %q", got, want)
	}

	post := program.Statements[4].(*ast.ApiCall)
	if len(post.Payloads) != 2 {
		t.Errorf("payloads across a comment line = %d, want 2", len(post.Payloads))
	}
}

func TestRendering(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name: "normal payload",
			input: `// Comment
    pUt /somewhere //here
{
    "foo": "bar", // a comment
    "hello": 1.0,
    "world": [2.0, true, null, false], // more comment
    "nested": {
        "this is it": "orly?",
        "the end": [42, 'the', 'end', 'of', 'it']
    }
}`,
			want: `pUt /somewhere {}
{"foo":"bar","hello":1.0,"world":[2.0,true,null,false],"nested":{"this is it":"orly?","the end":[42,'the','end','of','it']}}
`,
		},
		{
			name: "string escapes",
			input: `geT out
{
    "'hello\tworld'": '"hello\tworld"',
    "foo\\\t\nbar": 'foo\\\t\nbar',
    "magic\\'\"": 'magic\\"\''
}`,
			want: `geT out {}
{"'hello\tworld'":'"hello\tworld"',"foo\\\t\nbar":'foo\\\t\nbar',"magic\\'\"":'magic\\"\''}
`,
		},
		{
			name: "triple double quotes",
			input: `post /away
    {
        "'hello\tworld'": """"hello\t
world\"""",
        "foo\\\t\nbar": """foo\\
\t\nbar""",
        "magic\\'\"": """magic\\"\''"""
    }`,
			want: `post /away {}
{"'hello\tworld'":""""hello\t
world\"""","foo\\\t\nbar":"""foo\\
\t\nbar""","magic\\'\"":"""magic\\"\''"""}
`,
		},
		{
			name: "triple single quotes",
			input: `delete it
{
        "'hello\tworld'": ''''hello\t
world\'''',
        "foo\\\t\nbar": '''foo\\
\t\nbar''',
        "magic\\'\"": '''magic\\"\'"'''
    }`,
			want: `delete it {}
{"'hello\tworld'":''''hello\t
world\'''',"foo\\\t\nbar":'''foo\\
\t\nbar''',"magic\\'\"":'''magic\\"\'"'''}
`,
		},
		{
			name: "bulk",
			input: `PUT _bulk
{ "index" : { "_index" : "test", "_id" : "1" } }
{ "field1" : "value1" }
{ "delete" : { "_index" : "test", "_id" : "2" } }
{ "create" : { "_index" : "test", "_id" : "3" } }
{ "field1" : "value3" }
{ "update" : {"_id" : "1", "_index" : "test"} }
{ "doc" : {"field2" : "value2"} }
`,
			want: `PUT _bulk {}
{"index":{"_index":"test","_id":"1"}}
{"field1":"value1"}
{"delete":{"_index":"test","_id":"2"}}
{"create":{"_index":"test","_id":"3"}}
{"field1":"value3"}
{"update":{"_id":"1","_index":"test"}}
{"doc":{"field2":"value2"}}
`,
		},
		{
			name:  "options and numbers",
			input: `get /x conn=1 runas="bob" size=-4.2e+1`,
			want:  "get /x {conn:1,runas:\"bob\",size:-4.2e+1}\n",
		},
		{
			name:  "trailing commas and bare keys",
			input: "get /x\n{a: [1, 2,], b: {c: .5,},}",
			want:  "get /x {}\n{a:[1,2],b:{c:.5}}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := singleApiCall(t, tt.input)
			if got := call.String(); got != tt.want {
				t.Errorf("String() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestBulkPayloadCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("post _bulk\n")
	for i := 0; i < 7; i++ {
		sb.WriteString(`{"n": 1}` + "\n")
	}
	call := singleApiCall(t, sb.String())
	if len(call.Payloads) != 7 {
		t.Errorf("got %d payloads, want 7", len(call.Payloads))
	}
	if lines := strings.Count(call.String(), "\n"); lines != 8 {
		t.Errorf("rendered %d lines, want 8", lines)
	}
}

func TestFuncCall(t *testing.T) {
	program := mustParse(t, "g 1 b=[3,4] x={\n\"a\": // inner\n 1} name 'str' // ok")
	call, ok := program.Statements[0].(*ast.FuncCall)
	if !ok {
		t.Fatalf("statement is %T, want *ast.FuncCall", program.Statements[0])
	}
	if call.Name.Value() != "g" {
		t.Errorf("Name = %q", call.Name.Value())
	}
	if len(call.Args.Elements) != 3 {
		t.Errorf("got %d positional args, want 3", len(call.Args.Elements))
	}
	if len(call.Kwargs.Entries) != 2 {
		t.Errorf("got %d keyword args, want 2", len(call.Kwargs.Entries))
	}
	want := "g 1 name 'str' b=[3,4] x={\"a\":1}\n"
	if got := call.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		line     int
		column   int
		contains string
	}{
		{
			name:     "missing comma",
			input:    "get abc\n{\"a\": 1 2,\n \"b\": 5 }",
			line:     2,
			column:   9,
			contains: "expected Punctuation, got Literal",
		},
		{
			name:     "missing comma in array",
			input:    "get abc\n{\"a\": [ 3 4 ]}",
			line:     2,
			column:   11,
			contains: "expected Punctuation, got Literal",
		},
		{
			name:     "missing path",
			input:    "get\n",
			line:     1,
			column:   4,
			contains: "expected Literal, got Text",
		},
		{
			name:     "missing path at end",
			input:    "get",
			line:     1,
			column:   4,
			contains: "expected Literal, got EOF",
		},
		{
			name:     "free standing payload",
			input:    "get /abc\n\n{}\n",
			line:     3,
			column:   1,
			contains: "expected Keyword, got Error",
		},
		{
			name:     "second path",
			input:    "get / /",
			line:     1,
			column:   7,
			contains: "expected Text, got Error",
		},
		{
			name:     "option without value",
			input:    "get / conn",
			line:     1,
			column:   11,
			contains: "expected Operator, got EOF",
		},
		{
			name:     "unterminated string",
			input:    "session current=\"abc\n",
			line:     1,
			column:   17,
			contains: "unterminated string",
		},
		{
			name:     "invalid character in payload",
			input:    "put /x\n{\"a\": @}",
			line:     2,
			column:   7,
			contains: "invalid token \"@\"",
		},
		{
			name:     "invalid character in array",
			input:    "session current=[1, #]",
			line:     1,
			column:   21,
			contains: "invalid token \"#\"",
		},
		{
			name:     "missing colon",
			input:    "put /x\n{\"a\" 1}",
			line:     2,
			column:   6,
			contains: "expected Punctuation, got Literal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
			pe, ok := err.(*perrors.PeekError)
			if !ok {
				t.Fatalf("error is %T, want *errors.PeekError", err)
			}
			if pe.Class != perrors.ClassSyntax {
				t.Errorf("Class = %q, want syntax", pe.Class)
			}
			if pe.Line != tt.line || pe.Column != tt.column {
				t.Errorf("position = %d:%d, want %d:%d (%v)", pe.Line, pe.Column, tt.line, tt.column, pe)
			}
			if !strings.Contains(pe.Message, tt.contains) {
				t.Errorf("Message = %q, should contain %q", pe.Message, tt.contains)
			}
		})
	}
}

func TestParseIsAllOrNothing(t *testing.T) {
	program, err := Parse("get /ok\nget / /\nget /also-ok\n")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if program != nil {
		t.Errorf("program = %v, want nil on error", program)
	}
}

func TestSnippetInPrettyString(t *testing.T) {
	_, err := Parse("get abc\n{\"a\": 1 2,\n \"b\": 5 }")
	pe := err.(*perrors.PeekError)
	if pe.Source != `{"a": 1 2,` {
		t.Errorf("Source = %q", pe.Source)
	}
	if !strings.Contains(pe.PrettyString(), "^") {
		t.Errorf("PrettyString() has no caret: %q", pe.PrettyString())
	}
}
