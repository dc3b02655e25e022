package jsondoc

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
)

const (
	indentWidth    = 2
	inlineArrayMax = 60
)

// Format renders a template index document.
//
// Objects whose values are all primitives or arrays of primitives are written
// one property per line with each value kept on a single line. Arrays made
// only of such objects list them one per line in that form. Primitive arrays
// collapse to one line when their compact form is at most 60 characters.
// Everything else is indented two spaces per level.
func Format(v any) string {
	var b strings.Builder
	formatValue(&b, v, 0)
	return b.String()
}

// FormatFile is Format followed by a trailing newline, the form index files
// are committed in.
func FormatFile(v any) []byte {
	return []byte(Format(v) + "\n")
}

func formatValue(b *strings.Builder, v any, depth int) {
	next := depth + indentWidth
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			b.WriteString("[]")
			return
		}
		if allSimpleObjects(t) {
			b.WriteString("[\n")
			for i, item := range t {
				if i > 0 {
					b.WriteString(",\n")
				}
				b.WriteString(strings.Repeat(" ", next))
				formatSimpleObject(b, item.(*Object), next)
			}
			b.WriteString("\n" + strings.Repeat(" ", depth) + "]")
			return
		}
		if allPrimitives(t) {
			line := Compact(t)
			if utf16Len(string(line)) <= inlineArrayMax {
				b.Write(line)
				return
			}
		}
		b.WriteString("[\n")
		for i, item := range t {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString(strings.Repeat(" ", next))
			formatValue(b, item, next)
		}
		b.WriteString("\n" + strings.Repeat(" ", depth) + "]")
	case *Object:
		if t.Len() == 0 {
			b.WriteString("{}")
			return
		}
		if isSimpleObject(t) {
			formatSimpleObject(b, t, depth)
			return
		}
		b.WriteString("{\n")
		i := 0
		for p := t.Oldest(); p != nil; p = p.Next() {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString(strings.Repeat(" ", next))
			b.Write(appendQuoted(nil, p.Key))
			b.WriteString(": ")
			formatValue(b, p.Value, next)
			i++
		}
		b.WriteString("\n" + strings.Repeat(" ", depth) + "}")
	default:
		b.Write(Compact(v))
	}
}

func formatSimpleObject(b *strings.Builder, obj *Object, depth int) {
	prop := strings.Repeat(" ", depth+indentWidth)
	b.WriteString("{\n")
	i := 0
	for p := obj.Oldest(); p != nil; p = p.Next() {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(prop)
		b.Write(appendQuoted(nil, p.Key))
		b.WriteString(": ")
		b.Write(Compact(p.Value))
		i++
	}
	b.WriteString("\n" + strings.Repeat(" ", depth) + "}")
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, json.Number:
		return true
	}
	return false
}

func allPrimitives(arr []any) bool {
	for _, v := range arr {
		if !isPrimitive(v) {
			return false
		}
	}
	return true
}

func isSimpleObject(v any) bool {
	obj, ok := v.(*Object)
	if !ok {
		return false
	}
	for p := obj.Oldest(); p != nil; p = p.Next() {
		if p.Value == nil || isPrimitive(p.Value) {
			continue
		}
		if arr, ok := p.Value.([]any); ok && allPrimitives(arr) {
			continue
		}
		return false
	}
	return true
}

func allSimpleObjects(arr []any) bool {
	for _, v := range arr {
		if !isSimpleObject(v) {
			return false
		}
	}
	return true
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
