package ai

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeLiteral reads a literal data expression that is looser than JSON:
// single or double quoted strings with backslash escapes, adjacent string
// concatenation, lists, tuples, maps and the True/False/None keywords.
// Maps decode to map[string]any, lists and tuples to []any.
func decodeLiteral(src string) (any, error) {
	l := &literalReader{src: src}
	l.skipSpace()
	v, err := l.value()
	if err != nil {
		return nil, err
	}
	l.skipSpace()
	if l.pos != len(l.src) {
		return nil, fmt.Errorf("literal: trailing data at offset %d", l.pos)
	}
	return v, nil
}

var errLiteralEOF = errors.New("literal: unexpected end of input")

type literalReader struct {
	src string
	pos int
}

func (l *literalReader) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *literalReader) value() (any, error) {
	if l.pos >= len(l.src) {
		return nil, errLiteralEOF
	}
	switch c := l.src[l.pos]; {
	case c == '\'' || c == '"':
		return l.strings()
	case c == '[':
		return l.sequence(']')
	case c == '(':
		return l.sequence(')')
	case c == '{':
		return l.mapping()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return l.number()
	default:
		return l.keyword()
	}
}

func (l *literalReader) strings() (string, error) {
	var b strings.Builder
	for {
		s, err := l.quoted()
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		save := l.pos
		l.skipSpace()
		if l.pos < len(l.src) && (l.src[l.pos] == '\'' || l.src[l.pos] == '"') {
			continue
		}
		l.pos = save
		return b.String(), nil
	}
}

func (l *literalReader) quoted() (string, error) {
	quote := l.src[l.pos]
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return b.String(), nil
		case c == '\\':
			if l.pos+1 >= len(l.src) {
				return "", errLiteralEOF
			}
			if err := l.escape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			b.WriteRune(r)
			l.pos += size
		}
	}
	return "", errLiteralEOF
}

func (l *literalReader) escape(b *strings.Builder) error {
	c := l.src[l.pos+1]
	l.pos += 2
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"', '/':
		b.WriteByte(c)
	case '\n':
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
		if l.pos+width > len(l.src) {
			return errLiteralEOF
		}
		n, err := strconv.ParseUint(l.src[l.pos:l.pos+width], 16, 32)
		if err != nil {
			return fmt.Errorf("literal: bad escape: %w", err)
		}
		b.WriteRune(rune(n))
		l.pos += width
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (l *literalReader) sequence(closer byte) ([]any, error) {
	l.pos++
	out := []any{}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, errLiteralEOF
		}
		if l.src[l.pos] == closer {
			l.pos++
			return out, nil
		}
		v, err := l.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, errLiteralEOF
		}
		switch l.src[l.pos] {
		case ',':
			l.pos++
		case closer:
		default:
			return nil, fmt.Errorf("literal: expected ',' or '%c' at offset %d", closer, l.pos)
		}
	}
}

func (l *literalReader) mapping() (map[string]any, error) {
	l.pos++
	out := map[string]any{}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, errLiteralEOF
		}
		if l.src[l.pos] == '}' {
			l.pos++
			return out, nil
		}
		key, err := l.value()
		if err != nil {
			return nil, err
		}
		l.skipSpace()
		if l.pos >= len(l.src) || l.src[l.pos] != ':' {
			return nil, fmt.Errorf("literal: expected ':' at offset %d", l.pos)
		}
		l.pos++
		l.skipSpace()
		val, err := l.value()
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(key)] = val
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, errLiteralEOF
		}
		switch l.src[l.pos] {
		case ',':
			l.pos++
		case '}':
		default:
			return nil, fmt.Errorf("literal: expected ',' or '}' at offset %d", l.pos)
		}
	}
}

func (l *literalReader) number() (float64, error) {
	start := l.pos
	for l.pos < len(l.src) && strings.IndexByte("+-.0123456789eE_", l.src[l.pos]) >= 0 {
		l.pos++
	}
	text := strings.ReplaceAll(l.src[start:l.pos], "_", "")
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("literal: bad number %q", text)
	}
	return n, nil
}

func (l *literalReader) keyword() (any, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			break
		}
		l.pos++
	}
	switch word := l.src[start:l.pos]; word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("literal: unexpected token %q at offset %d", word, start)
	}
}
