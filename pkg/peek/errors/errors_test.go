package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPeekError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *PeekError
		expected string
	}{
		{
			name:     "message only",
			err:      &PeekError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name: "with line and column",
			err: &PeekError{
				Message: "expected Literal, got Text",
				Line:    1,
				Column:  4,
			},
			expected: "line 1, column 4: expected Literal, got Text",
		},
		{
			name: "with file",
			err: &PeekError{
				Message: "unterminated string",
				File:    "bulk.es",
				Line:    3,
				Column:  1,
			},
			expected: "bulk.es: line 3, column 1: unterminated string",
		},
		{
			name: "with hints",
			err: &PeekError{
				Message: "unknown name: conect",
				Hints:   []string{"Did you mean `connect`?"},
			},
			expected: "unknown name: conect\n  Did you mean `connect`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.String()
			if got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPeekError_PrettyString(t *testing.T) {
	tests := []struct {
		name     string
		err      *PeekError
		contains []string
	}{
		{
			name: "syntax error",
			err: &PeekError{
				Class:   ClassSyntax,
				Message: "expected Punctuation, got Literal \"2\"",
				Line:    2,
				Column:  9,
			},
			contains: []string{"Syntax error", "line 2, column 9", "got Literal"},
		},
		{
			name: "runtime error",
			err: &PeekError{
				Class:   ClassState,
				Message: "no connection is configured",
				Hints:   []string{"connect hosts=\"localhost:9200\""},
			},
			contains: []string{"Error:", "no connection", "Use: connect"},
		},
		{
			name: "with file",
			err: &PeekError{
				Class:   ClassSyntax,
				Message: "unterminated string",
				File:    "scripts/setup.es",
				Line:    10,
				Column:  5,
			},
			contains: []string{"in: scripts/setup.es", "at: line 10, column 5"},
		},
		{
			name: "undefined has no label",
			err: &PeekError{
				Class:   ClassUndefined,
				Message: "unknown name: sesion",
				Hints:   []string{"Did you mean `session`?"},
			},
			contains: []string{"\n  Did you mean `session`?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.PrettyString()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("PrettyString() = %q, should contain %q", got, want)
				}
			}
		})
	}
}

func TestPeekError_Snippet(t *testing.T) {
	src := "get abc\n{\"a\": 1 2,\n \"b\": 5 }"
	err := NewWithPosition("SYNTAX-0001", 2, 9, map[string]any{
		"Expected": "Punctuation",
		"Got":      "Literal",
		"Text":     `"2"`,
	}).WithSource(src)

	if err.Source != `{"a": 1 2,` {
		t.Fatalf("Source = %q", err.Source)
	}
	got := err.PrettyString()
	want := "   2 | {\"a\": 1 2,\n     |         ^"
	if !strings.Contains(got, want) {
		t.Errorf("PrettyString() = %q, should contain %q", got, want)
	}
}

func TestPeekError_ToJSON(t *testing.T) {
	err := NewWithPosition("SYNTAX-0001", 1, 4, map[string]any{
		"Expected": "Literal",
		"Got":      "Text",
		"Text":     `"\n"`,
	})

	data, jsonErr := err.ToJSON()
	if jsonErr != nil {
		t.Fatalf("ToJSON() error = %v", jsonErr)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if parsed["class"] != "syntax" {
		t.Errorf("class = %v, want syntax", parsed["class"])
	}
	if parsed["code"] != "SYNTAX-0001" {
		t.Errorf("code = %v, want SYNTAX-0001", parsed["code"])
	}
	if parsed["column"].(float64) != 4 {
		t.Errorf("column = %v, want 4", parsed["column"])
	}
}

func TestNew_WithCatalog(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		data      map[string]any
		wantClass ErrorClass
		want      string
	}{
		{
			name:      "syntax",
			code:      "SYNTAX-0001",
			data:      map[string]any{"Expected": "Literal", "Got": "Text", "Text": `"\n"`},
			wantClass: ClassSyntax,
			want:      `expected Literal, got Text "\n"`,
		},
		{
			name:      "missing text placeholder",
			code:      "SYNTAX-0001",
			data:      map[string]any{"Expected": "Literal", "Got": "EOF"},
			wantClass: ClassSyntax,
			want:      "expected Literal, got EOF",
		},
		{
			name:      "not callable",
			code:      "TYPE-0001",
			data:      map[string]any{"Name": "true", "Got": "bool"},
			wantClass: ClassType,
			want:      "true is not callable, but a bool",
		},
		{
			name:      "unknown options",
			code:      "USAGE-0001",
			data:      map[string]any{"Options": "{foo:1}"},
			wantClass: ClassUsage,
			want:      "unknown options: {foo:1}",
		},
		{
			name:      "unknown code",
			code:      "CUSTOM-0001",
			data:      map[string]any{"message": "custom message"},
			wantClass: ClassUsage,
			want:      "custom message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.data)
			if err.Class != tt.wantClass {
				t.Errorf("Class = %v, want %v", err.Class, tt.wantClass)
			}
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
		})
	}
}

func TestFindClosestMatch(t *testing.T) {
	candidates := []string{"config", "connect", "help", "history", "run", "session"}

	tests := []struct {
		input string
		want  string
	}{
		{"conect", "connect"},
		{"sesion", "session"},
		{"hlp", "help"},
		{"histroy", "history"},
		{"connect", ""}, // exact match is not a suggestion
		{"xyzzy", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FindClosestMatch(tt.input, candidates); got != tt.want {
				t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindTopMatches(t *testing.T) {
	got := FindTopMatches("con", []string{"conn", "cow", "config", "run"}, 2)
	if len(got) != 2 || got[0] != "conn" || got[1] != "cow" {
		t.Errorf("FindTopMatches() = %v", got)
	}
}

func TestNewUnknownName(t *testing.T) {
	err := NewUnknownName("conect", []string{"connect", "config"})
	if err.Code != "UNDEF-0001" {
		t.Errorf("Code = %q", err.Code)
	}
	if len(err.Hints) != 1 || err.Hints[0] != "Did you mean `connect`?" {
		t.Errorf("Hints = %v", err.Hints)
	}

	err = NewUnknownName("zzz", []string{"connect"})
	if len(err.Hints) != 0 {
		t.Errorf("unexpected hints %v", err.Hints)
	}
}
