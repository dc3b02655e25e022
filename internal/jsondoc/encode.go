package jsondoc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Compact renders v without whitespace.
func Compact(v any) []byte {
	return appendCompact(nil, v)
}

// MarshalIndent renders v with two-space indentation and `"key": value`
// separators. Empty arrays and objects stay on one line.
func MarshalIndent(v any) []byte {
	var buf bytes.Buffer
	// Compact output is always valid JSON, so Indent cannot fail here.
	_ = json.Indent(&buf, Compact(v), "", "  ")
	return buf.Bytes()
}

func appendCompact(buf []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...)
	case bool:
		return strconv.AppendBool(buf, t)
	case json.Number:
		if t == "" {
			return append(buf, '0')
		}
		return append(buf, t...)
	case string:
		return appendQuoted(buf, t)
	case []any:
		buf = append(buf, '[')
		for i, item := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCompact(buf, item)
		}
		return append(buf, ']')
	case *Object:
		buf = append(buf, '{')
		i := 0
		for p := t.Oldest(); p != nil; p = p.Next() {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendQuoted(buf, p.Key)
			buf = append(buf, ':')
			buf = appendCompact(buf, p.Value)
			i++
		}
		return append(buf, '}')
	case int:
		return strconv.AppendInt(buf, int64(t), 10)
	case int64:
		return strconv.AppendInt(buf, t, 10)
	case float64:
		return strconv.AppendFloat(buf, t, 'f', -1, 64)
	case []string:
		return appendCompact(buf, Strings(t))
	}
	return append(buf, "null"...)
}

// appendQuoted escapes s the way browsers' JSON.stringify does: only the
// quote, the backslash and control characters are escaped, HTML-sensitive
// characters are left alone.
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"', '\\':
				buf = append(buf, '\\', c)
			case '\n':
				buf = append(buf, '\\', 'n')
			case '\r':
				buf = append(buf, '\\', 'r')
			case '\t':
				buf = append(buf, '\\', 't')
			case '\b':
				buf = append(buf, '\\', 'b')
			case '\f':
				buf = append(buf, '\\', 'f')
			default:
				if c < 0x20 {
					buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				} else {
					buf = append(buf, c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf = append(buf, "\ufffd"...)
		} else {
			buf = append(buf, s[i:i+size]...)
		}
		i += size
	}
	return append(buf, '"')
}
