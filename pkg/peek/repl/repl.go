// Package repl runs an interactive peek session on a terminal.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/peek/pkg/peek/ast"
	"github.com/sambeau/peek/pkg/peek/lexer"
	"github.com/sambeau/peek/pkg/peek/parser"
	"github.com/sambeau/peek/pkg/peek/shell"
	"github.com/sambeau/peek/pkg/peek/vm"
)

const PROMPT = ">>> "
const CONTINUATION_PROMPT = "... "

const PEEK_LOGO = `
█▀█ █▀▀ █▀▀ █▄▀
█▀▀ ██▄ ██▄ █░█`

var methods = []string{"GET", "POST", "PUT", "DELETE", "HEAD", "PATCH", "OPTIONS"}

// apiOptions are the options every API call accepts.
var apiOptions = []string{vm.OptionConn, vm.OptionRunAs}

// prompter asks through the line editor, hiding secrets.
type prompter struct {
	line *liner.State
}

func (p prompter) Prompt(message string, secret bool) (string, error) {
	if secret {
		return p.line.PasswordPrompt(message)
	}
	return p.line.Prompt(message)
}

// Start runs the read-eval loop until the user exits or ctx is done.
func Start(ctx context.Context, sh *shell.Shell, out io.Writer, version string) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)
	line.SetWordCompleter(func(input string, pos int) (string, []string, string) {
		return complete(sh.Registry(), input, pos)
	})

	if store := sh.History(); store != nil {
		entries, err := store.Strings()
		if err != nil {
			sh.Logger().Warnf("loading history: %v", err)
		}
		for _, e := range entries {
			line.AppendHistory(e)
		}
	}

	sh.SetPrompter(prompter{line: line})
	defer sh.SetPrompter(nil)

	fmt.Fprintf(out, "%s\n", PEEK_LOGO)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	if sh.Manager().Len() > 0 {
		fmt.Fprintln(out, sh.Manager())
		fmt.Fprintln(out, "")
	}
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit, 'help' for functions")
	fmt.Fprintln(out, "Finish a request body with an empty line")
	fmt.Fprintln(out, "")

	var buf inputBuffer
	for ctx.Err() == nil {
		currentPrompt := PROMPT
		if buf.pending() {
			currentPrompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(currentPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				if buf.pending() {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				buf.reset()
				continue
			}
			if errors.Is(err, io.EOF) {
				for _, src := range buf.flush() {
					execute(ctx, sh, line, src)
				}
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if !buf.collecting() && (trimmed == "exit" || trimmed == "quit") {
			for _, src := range buf.flush() {
				execute(ctx, sh, line, src)
			}
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		for _, src := range buf.add(input) {
			execute(ctx, sh, line, src)
		}
	}
}

func execute(ctx context.Context, sh *shell.Shell, line *liner.State, src string) {
	line.AppendHistory(src)

	// Ctrl+C while a request runs cancels the request, not the session
	execCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	sh.Execute(execCtx, src)
}

// inputBuffer collects the lines of one statement. A one-line write call
// with no payload is held until the next line shows whether a payload
// follows it.
type inputBuffer struct {
	lines []string
	held  string
}

func (b *inputBuffer) pending() bool { return len(b.lines) > 0 || b.held != "" }

// collecting reports whether a statement is only partly entered.
func (b *inputBuffer) collecting() bool { return len(b.lines) > 0 }

func (b *inputBuffer) reset() {
	b.lines = b.lines[:0]
	b.held = ""
}

// flush returns the held call, if any.
func (b *inputBuffer) flush() []string {
	if b.held == "" {
		return nil
	}
	src := b.held
	b.held = ""
	return []string{src}
}

// add appends a line and returns the statements that are now complete,
// in the order they should run.
func (b *inputBuffer) add(input string) []string {
	var out []string
	if b.held != "" {
		switch trimmed := strings.TrimSpace(input); {
		case trimmed == "":
			return b.flush()
		case strings.HasPrefix(trimmed, "{"):
			b.lines = append(b.lines, b.held)
			b.held = ""
		default:
			out = b.flush()
		}
	}

	if len(b.lines) == 0 && strings.TrimSpace(input) == "" {
		return out
	}
	b.lines = append(b.lines, input)

	src := strings.Join(b.lines, "\n")
	if lexer.NeedsMore(src) {
		return out
	}
	single := len(b.lines) == 1
	b.lines = b.lines[:0]

	src = strings.TrimRight(src, "\n")
	if single && awaitsPayload(src) {
		b.held = src
		return out
	}
	return append(out, src)
}

// awaitsPayload reports whether src is a single API call that may still
// take a payload on the next line: one without a payload whose method
// usually sends one.
func awaitsPayload(src string) bool {
	program, err := parser.Parse(src)
	if err != nil || len(program.Statements) != 1 {
		return false
	}
	call, ok := program.Statements[0].(*ast.ApiCall)
	if !ok || len(call.Payloads) > 0 {
		return false
	}
	switch call.Verb() {
	case "GET", "HEAD":
		return false
	}
	return true
}

// complete offers the words that can follow the text before pos: method
// names and functions first, then option names.
func complete(reg *vm.Registry, input string, pos int) (head string, completions []string, tail string) {
	head, tail = input[:pos], input[pos:]

	start := strings.LastIndexAny(head, " \t") + 1
	word := head[start:]
	head = head[:start]

	var candidates []string
	fields := strings.Fields(head)
	switch {
	case strings.Contains(head, "\n"):
		return head + word, nil, tail
	case len(fields) == 0:
		for _, m := range methods {
			if strings.HasPrefix(m, strings.ToUpper(word)) {
				if word != "" && strings.ToLower(word) == word {
					m = strings.ToLower(m)
				}
				candidates = append(candidates, m)
			}
		}
		candidates = append(candidates, matching(reg.Functions(), word)...)
	case lexer.IsHTTPMethod(fields[0]):
		if len(fields) > 1 {
			candidates = matching(withEquals(apiOptions), word)
		}
	default:
		candidates = matching(withEquals(optionNames(reg, fields[0])), word)
	}

	if len(candidates) == 0 {
		return head + word, nil, tail
	}
	return head, candidates, tail
}

func matching(words []string, prefix string) []string {
	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			out = append(out, w)
		}
	}
	return out
}

func withEquals(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "="
	}
	return out
}

func optionNames(reg *vm.Registry, fn string) []string {
	v, ok := reg.Resolve(fn)
	if !ok {
		return nil
	}
	d, ok := v.(vm.Describer)
	if !ok {
		return nil
	}
	opts := d.Describe().Options
	if opts == nil {
		return nil
	}
	names := opts.Keys()
	sort.Strings(names)
	return names
}
