package vm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

// Encoder converts evaluated values to JSON text. Dict order is kept,
// floats always carry a decimal point or exponent, and non-ASCII text is
// written as is.
type Encoder struct {
	indent string // indent string for pretty printing
	depth  int    // current depth for indentation
	pretty bool   // whether to pretty print
}

// Encode renders v as one line of compact JSON.
func Encode(v any) (string, error) {
	var sb strings.Builder
	if err := (&Encoder{}).encode(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// EncodeIndent renders v as indented JSON.
func EncodeIndent(v any, indent string) (string, error) {
	var sb strings.Builder
	if err := (&Encoder{indent: indent, pretty: true}).encode(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *Encoder) encode(sb *strings.Builder, v any) error {
	switch v := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		sb.WriteString(strconv.FormatBool(v))
	case int64:
		sb.WriteString(strconv.FormatInt(v, 10))
	case int:
		sb.WriteString(strconv.Itoa(v))
	case float64:
		sb.WriteString(FormatFloat(v))
	case json.Number:
		sb.WriteString(v.String())
	case string:
		writeString(sb, v)
	case *Dict:
		return e.encodeDict(sb, v)
	case map[string]any:
		return e.encodeDict(sb, FromMap(v))
	case []any:
		return e.encodeArray(sb, v)
	default:
		return perrors.New("TYPE-0004", map[string]any{"Got": TypeName(v)})
	}
	return nil
}

func (e *Encoder) encodeDict(sb *strings.Builder, d *Dict) error {
	if d.Len() == 0 {
		sb.WriteString("{}")
		return nil
	}

	sb.WriteByte('{')
	e.depth++
	for i, k := range d.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		e.newline(sb)
		writeString(sb, k)
		sb.WriteByte(':')
		if e.pretty {
			sb.WriteByte(' ')
		}
		v, _ := d.Get(k)
		if err := e.encode(sb, v); err != nil {
			return err
		}
	}
	e.depth--
	e.newline(sb)
	sb.WriteByte('}')
	return nil
}

func (e *Encoder) encodeArray(sb *strings.Builder, arr []any) error {
	if len(arr) == 0 {
		sb.WriteString("[]")
		return nil
	}

	sb.WriteByte('[')
	e.depth++
	for i, el := range arr {
		if i > 0 {
			sb.WriteByte(',')
		}
		e.newline(sb)
		if err := e.encode(sb, el); err != nil {
			return err
		}
	}
	e.depth--
	e.newline(sb)
	sb.WriteByte(']')
	return nil
}

func (e *Encoder) newline(sb *strings.Builder) {
	if !e.pretty {
		return
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(e.indent, e.depth))
}

// FormatFloat renders f so that it reads back as a float: 1.0, 0.42,
// 1e+16, -4.2e-05.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

const hexDigits = "0123456789abcdef"

func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				sb.WriteString("\ufffd")
			} else {
				sb.WriteString(s[i : i+size])
			}
			i += size
			continue
		}
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if c < 0x20 || c == 0x7f {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[c>>4])
				sb.WriteByte(hexDigits[c&0xf])
			} else {
				sb.WriteByte(c)
			}
		}
		i++
	}
	sb.WriteByte('"')
}

// DecodeJSON parses a JSON document into evaluated values: objects become
// Dicts in document order, integral numbers become int64, or json.Number
// when they do not fit.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := NewDict()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				d.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return d, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if !strings.ContainsAny(t.String(), ".eE") {
			return t, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}
