// Package errors provides the structured error type shared by the peek
// parser, evaluator and built-in functions.
//
// PeekError carries a class, a catalog code, a rendered message and an
// optional source position so that callers can print a one-line form,
// a multi-line form with a caret under the culprit, or JSON.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode/utf8"
)

// ErrorClass categorizes errors for filtering and display.
type ErrorClass string

const (
	ClassSyntax    ErrorClass = "syntax"    // Tokenizer/parser errors
	ClassUndefined ErrorClass = "undefined" // Unknown names, functions, entries
	ClassType      ErrorClass = "type"      // Wrong kind of value
	ClassUsage     ErrorClass = "usage"     // Bad options or arguments
	ClassState     ErrorClass = "state"     // Connection/session state
	ClassIO        ErrorClass = "io"        // Files and history store
	ClassNetwork   ErrorClass = "network"   // HTTP transport
)

// PeekError represents any error surfaced to a peek user.
type PeekError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based, 0 if unknown
	Column  int            `json:"column"` // 1-based, 0 if unknown
	File    string         `json:"file,omitempty"`
	Source  string         `json:"source,omitempty"` // offending source line
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *PeekError) Error() string {
	return e.String()
}

// String returns a single-line form followed by any hints.
func (e *PeekError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line form for terminal display.
func (e *PeekError) PrettyString() string {
	var sb strings.Builder

	if e.Class == ClassSyntax {
		sb.WriteString("Syntax error")
	} else {
		sb.WriteString("Error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	if e.Source != "" && e.Column > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(e.snippet())
	}

	// "Did you mean" hints read as sentences and take no label
	labelled := e.Class != ClassUndefined
	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if labelled && i == 0 {
			sb.WriteString("Use: ")
		} else if labelled {
			sb.WriteString(" or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// snippet renders the offending line with a caret under the column.
func (e *PeekError) snippet() string {
	gutter := fmt.Sprintf("%4d | ", e.Line)
	var sb strings.Builder
	sb.WriteString(gutter)
	sb.WriteString(e.Source)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", len(gutter)-2))
	sb.WriteString("| ")
	// keep tabs so the caret lines up under tab-indented source
	col := 1
	for _, r := range e.Source {
		if col >= e.Column {
			break
		}
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
		col++
	}
	sb.WriteString("^")
	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *PeekError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *PeekError) WithFile(file string) *PeekError {
	cp := *e
	cp.File = file
	return &cp
}

// WithPosition returns a copy of the error with line and column set.
func (e *PeekError) WithPosition(line, column int) *PeekError {
	cp := *e
	cp.Line = line
	cp.Column = column
	return &cp
}

// WithSource returns a copy of the error carrying the text of the line it
// points at, taken from src.
func (e *PeekError) WithSource(src string) *PeekError {
	cp := *e
	if e.Line <= 0 {
		return &cp
	}
	lines := strings.Split(src, "\n")
	if e.Line <= len(lines) {
		line := strings.TrimRight(lines[e.Line-1], "\r")
		if utf8.ValidString(line) {
			cp.Source = line
		}
	}
	return &cp
}

// IsSyntaxError reports whether this error came from the parser.
func (e *PeekError) IsSyntaxError() bool {
	return e.Class == ClassSyntax
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string
	Hints    []string
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Syntax errors (SYNTAX-0xxx)
	"SYNTAX-0001": {
		Class:    ClassSyntax,
		Template: "expected {{.Expected}}, got {{.Got}} {{.Text}}",
	},
	"SYNTAX-0002": {
		Class:    ClassSyntax,
		Template: "unterminated string {{.Text}}",
	},
	"SYNTAX-0003": {
		Class:    ClassSyntax,
		Template: "keyword argument name must be an identifier, got {{.Got}}",
		Hints:    []string{"name=value"},
	},
	"SYNTAX-0004": {
		Class:    ClassSyntax,
		Template: "invalid token {{.Text}}",
	},

	// Undefined errors (UNDEF-0xxx)
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "unknown name: {{.Name}}",
		// "Did you mean" hint added by NewUnknownName
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "no such function: {{.Name}}",
	},
	"UNDEF-0003": {
		Class:    ClassUndefined,
		Template: "history not found for index: {{.Index}}",
	},
	"UNDEF-0004": {
		Class:    ClassUndefined,
		Template: "no connection named {{.Name}}",
	},
	"UNDEF-0005": {
		Class:    ClassUndefined,
		Template: "unknown extension: {{.Name}}",
	},

	// Type errors (TYPE-0xxx)
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Name}} is not callable, but a {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "{{.Function}} expected {{.Expected}} for {{.Arg}}, got {{.Got}}",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "cannot use {{.Got}} as a dict key",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "cannot encode {{.Got}} as JSON",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "invalid literal {{.Literal}}: {{.GoError}}",
	},

	// Usage errors (USAGE-0xxx)
	"USAGE-0001": {
		Class:    ClassUsage,
		Template: "unknown options: {{.Options}}",
		Hints:    []string{"runas=\"user\"", "conn=1"},
	},
	"USAGE-0002": {
		Class:    ClassUsage,
		Template: "`{{.Function}}` expects {{.Want}} argument(s), got {{.Got}}",
	},
	"USAGE-0003": {
		Class:    ClassUsage,
		Template: "`{{.Function}}` does not accept option {{.Option}}",
		Hints:    []string{"help {{.Function}}"},
	},
	"USAGE-0004": {
		Class:    ClassUsage,
		Template: "username is required for userpass authentication",
	},
	"USAGE-0005": {
		Class:    ClassUsage,
		Template: "config key {{.Key}} conflicts: {{.Component}} is not a mapping",
	},

	// State errors (STATE-0xxx)
	"STATE-0001": {
		Class:    ClassState,
		Template: "no connection is configured",
		Hints:    []string{"connect hosts=\"localhost:9200\""},
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "connection index {{.Index}} is out of range",
	},
	"STATE-0003": {
		Class:    ClassState,
		Template: "cannot remove the last connection",
	},
	"STATE-0004": {
		Class:    ClassState,
		Template: "password is not found and password prompt is disabled",
	},

	// I/O errors (IO-0xxx)
	"IO-0001": {
		Class:    ClassIO,
		Template: "failed to {{.Operation}} '{{.Path}}': {{.GoError}}",
	},
	"IO-0002": {
		Class:    ClassIO,
		Template: "history {{.Operation}} failed: {{.GoError}}",
	},

	// Network errors (NET-0xxx)
	"NET-0001": {
		Class:    ClassNetwork,
		Template: "{{.Method}} {{.URL}} failed: {{.GoError}}",
	},
	"NET-0002": {
		Class:    ClassNetwork,
		Template: "{{.Method}} {{.URL}} returned status {{.Status}}",
	},
}

// New creates a PeekError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *PeekError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &PeekError{
			Class:   ClassUsage,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := strings.TrimSpace(renderTemplate(def.Template, data))

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &PeekError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a PeekError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *PeekError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *PeekError {
	return &PeekError{
		Class:   class,
		Message: message,
	}
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return strings.ReplaceAll(buf.String(), "<no value>", "")
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}

// threshold is the largest edit distance worth suggesting for input.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch returns the candidate nearest to input, or "" when
// nothing is close enough to be a plausible typo.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	var bestMatch string
	bestDistance := -1

	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= 0 || bestDistance > threshold(input) {
		return ""
	}

	return bestMatch
}

// FindTopMatches returns up to n candidates within the typo threshold,
// nearest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type match struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)
	var matches []match
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 && dist <= threshold(input) {
			matches = append(matches, match{candidate, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < n; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// NewUnknownName creates an unknown name error, suggesting the closest of
// the known names when there is one.
func NewUnknownName(name string, known []string) *PeekError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, known); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}
