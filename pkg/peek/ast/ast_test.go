package ast

import (
	"encoding/json"
	"testing"

	"github.com/sambeau/peek/pkg/peek/lexer"
)

func tok(kind lexer.Kind, text string) lexer.Token {
	return lexer.Token{Kind: kind, Text: text}
}

func TestString(t *testing.T) {
	call := &ApiCall{
		Token: tok(lexer.HTTPMethod, "pUt"),
		Path:  &Text{Token: tok(lexer.URLPath, "/somewhere")},
		Options: &Dict{Entries: []*Entry{
			{Key: &Name{Token: tok(lexer.Name, "conn")}, Value: &Number{Token: tok(lexer.Number, "1")}},
		}},
		Payloads: []*Dict{
			{Entries: []*Entry{
				{Key: &String{Token: tok(lexer.StringSingle, "'a'")}, Value: &Array{Elements: []Expression{
					&Number{Token: tok(lexer.Number, "1.0")},
					&Name{Token: tok(lexer.Constant, "null")},
				}}},
			}},
			{},
		},
	}

	want := "pUt /somewhere {conn:1}\n{'a':[1.0,null]}\n{}\n"
	if got := call.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if call.Verb() != "PUT" {
		t.Errorf("Verb() = %q, want PUT", call.Verb())
	}
}

func TestNewFuncCall(t *testing.T) {
	args := &Array{Elements: []Expression{&Number{Token: tok(lexer.Number, "1")}}}
	kwargs := &Dict{Entries: []*Entry{
		{Key: &Name{Token: tok(lexer.Name, "display.format")}, Value: &String{Token: tok(lexer.StringDouble, `"yaml"`)}},
	}}

	fc, err := NewFuncCall(tok(lexer.FuncName, "config"), args, kwargs)
	if err != nil {
		t.Fatalf("NewFuncCall() error = %v", err)
	}
	if got, want := fc.String(), "config 1 display.format=\"yaml\"\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	bad := &Dict{Entries: []*Entry{
		{Key: &String{Token: tok(lexer.StringDouble, `"x"`)}, Value: &Number{Token: tok(lexer.Number, "1")}},
	}}
	if _, err := NewFuncCall(tok(lexer.FuncName, "f"), &Array{}, bad); err == nil {
		t.Error("expected an error for a string keyword key")
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"plain"`, "plain", false},
		{`'single'`, "single", false},
		{`""`, "", false},
		{`"hello\tworld"`, "hello\tworld", false},
		{`'foo\\\t\nbar'`, "foo\\\t\nbar", false},
		{`"magic\\'\""`, `magic\'"`, false},
		{`"""a "quoted" word"""`, `a "quoted" word`, false},
		{"'''line\\\njoined'''", "linejoined", false},
		{`"\x41é\U0001F600"`, "Aé😀", false},
		{`"\101\0"`, "A\x00", false},
		{`"\d"`, `\d`, false},
		{`"\x4"`, "", true},
		{`"open`, "", true},
		{`bare`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Unquote(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unquote(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Unquote(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"42", int64(42)},
		{"-42", int64(-42)},
		{"4.2", 4.2},
		{".42", 0.42},
		{"-.42", -0.42},
		{"42e+1", 420.0},
		{"1.0", 1.0},
		{"99999999999999999999", json.Number("99999999999999999999")},
		{"-18446744073709551615", json.Number("-18446744073709551615")},
		{"99999999999999999999.0", 1e20},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseNumber(tt.raw)
			if err != nil {
				t.Fatalf("ParseNumber(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
