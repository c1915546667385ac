package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unquote decodes a single, double or triple quoted literal.
//
// Escapes follow the usual rules: \n \t \r \b \f \v \a \0, octal \ooo,
// \xhh, \uhhhh and \Uhhhhhhhh, escaped quotes and backslashes, and a
// backslash before a newline joins the lines. Unrecognised escapes are
// kept as written.
func Unquote(raw string) (string, error) {
	var q string
	switch {
	case len(raw) >= 6 && (strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, `'''`)):
		q = raw[:3]
	case len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\''):
		q = raw[:1]
	default:
		return "", fmt.Errorf("not a string literal: %s", raw)
	}
	if !strings.HasSuffix(raw, q) {
		return "", fmt.Errorf("unterminated string: %s", raw)
	}

	body := raw[len(q) : len(raw)-len(q)]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var sb strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			i++
			continue
		}

		e := body[i+1]
		i += 2
		switch e {
		case '\n':
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case 'a':
			sb.WriteByte('\a')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i - 1
			end := min(j+3, len(body))
			for i < end && body[i] >= '0' && body[i] <= '7' {
				i++
			}
			v, _ := strconv.ParseUint(body[j:i], 8, 32)
			sb.WriteRune(rune(v))
		case 'x', 'u', 'U':
			n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+n > len(body) {
				return "", fmt.Errorf("truncated \\%c escape in %s", e, raw)
			}
			v, err := strconv.ParseUint(body[i:i+n], 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				return "", fmt.Errorf("invalid \\%c escape in %s", e, raw)
			}
			sb.WriteRune(rune(v))
			i += n
		default:
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}

	return sb.String(), nil
}

// ParseNumber converts a numeric literal to int64 when it is integral and
// fits, and to float64 otherwise. Integral literals beyond int64 are kept
// exactly as a json.Number.
func ParseNumber(raw string) (any, error) {
	if !strings.ContainsAny(raw, ".eE") {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return json.Number(raw), nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %s", raw)
	}
	return v, nil
}
