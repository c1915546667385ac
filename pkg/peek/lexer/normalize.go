package lexer

import "strings"

// Normalize prepares a token stream for the parser. Each run of string
// fragments from an opening quote to its closing quote becomes a single
// token at the offset of the opening quote; a run that never closes becomes
// an Error token. Whitespace and comments are dropped. Everything else
// passes through in order.
func Normalize(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))

	var (
		run     strings.Builder
		runTok  Token
		inRun   bool
		runOpen string
	)
	flush := func(closed bool) {
		if inRun {
			if !closed {
				runTok.Kind = Error
			}
			runTok.Text = run.String()
			out = append(out, runTok)
			run.Reset()
			inRun = false
		}
	}

	for _, tok := range tokens {
		if inRun {
			if tok.Kind == runTok.Kind {
				run.WriteString(tok.Text)
				if tok.Text == runOpen {
					flush(true)
				}
				continue
			}
			// an unterminated string ends at the first foreign token
			flush(false)
		}

		switch {
		case tok.Kind == Whitespace || tok.Kind == Comment:
		case tok.Kind.IsString() && tok.Text == tok.Kind.Quote():
			inRun = true
			runTok = Token{Offset: tok.Offset, Kind: tok.Kind}
			runOpen = tok.Text
			run.WriteString(tok.Text)
		default:
			out = append(out, tok)
		}
	}
	flush(false)

	return out
}
