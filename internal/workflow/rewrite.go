// Package workflow reads and patches asset references inside workflow graph
// documents without disturbing the rest of their text.
package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrShape is returned when a document is not a workflow graph.
var ErrShape = errors.New("workflow: unexpected document shape")

type widgetValue struct {
	path  string
	value string
}

// References returns every non-empty string held in a widget value of any
// node, subgraph nodes included.
func References(doc []byte) (map[string]bool, error) {
	values, err := widgetStrings(doc)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(values))
	for _, v := range values {
		if v.value != "" {
			refs[v.value] = true
		}
	}
	return refs, nil
}

// Rewrite replaces every widget string value that is a key of mapping with
// the mapped name and reports how many values changed. On a shape error doc
// is returned unchanged.
func Rewrite(doc []byte, mapping map[string]string) ([]byte, int, error) {
	values, err := widgetStrings(doc)
	if err != nil {
		return doc, 0, err
	}
	out := doc
	changed := 0
	for _, v := range values {
		actual, ok := mapping[v.value]
		if !ok || actual == v.value {
			continue
		}
		next, err := sjson.SetBytes(out, v.path, actual)
		if err != nil {
			return doc, 0, fmt.Errorf("%w: set %s: %v", ErrShape, v.path, err)
		}
		out = next
		changed++
	}
	return out, changed, nil
}

func widgetStrings(doc []byte) ([]widgetValue, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%w: invalid json", ErrShape)
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrShape)
	}
	var out []widgetValue
	if err := collectGraph(root, "", &out); err != nil {
		return nil, err
	}
	subgraphs := root.Get("definitions.subgraphs")
	if subgraphs.Exists() {
		if !subgraphs.IsArray() {
			return nil, fmt.Errorf("%w: definitions.subgraphs is not an array", ErrShape)
		}
		i := 0
		var graphErr error
		subgraphs.ForEach(func(_, sg gjson.Result) bool {
			if sg.IsObject() {
				graphErr = collectGraph(sg, "definitions.subgraphs."+strconv.Itoa(i), &out)
			}
			i++
			return graphErr == nil
		})
		if graphErr != nil {
			return nil, graphErr
		}
	}
	return out, nil
}

// collectGraph gathers widget strings from graph.nodes, descending into any
// subgraph embedded in a node.
func collectGraph(graph gjson.Result, prefix string, out *[]widgetValue) error {
	nodes := graph.Get("nodes")
	if !nodes.Exists() {
		return nil
	}
	if !nodes.IsArray() {
		return fmt.Errorf("%w: %s is not an array", ErrShape, join(prefix, "nodes"))
	}
	i := 0
	var err error
	nodes.ForEach(func(_, node gjson.Result) bool {
		nodePath := join(prefix, "nodes."+strconv.Itoa(i))
		i++
		if !node.IsObject() {
			return true
		}
		collectWidgets(node.Get("widgets_values"), join(nodePath, "widgets_values"), out)
		if sg := node.Get("subgraph"); sg.IsObject() {
			err = collectGraph(sg, join(nodePath, "subgraph"), out)
		}
		return err == nil
	})
	return err
}

func collectWidgets(widgets gjson.Result, path string, out *[]widgetValue) {
	switch {
	case widgets.IsArray():
		i := 0
		widgets.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String {
				*out = append(*out, widgetValue{path: path + "." + strconv.Itoa(i), value: v.Str})
			}
			i++
			return true
		})
	case widgets.IsObject():
		widgets.ForEach(func(k, v gjson.Result) bool {
			if v.Type == gjson.String {
				*out = append(*out, widgetValue{path: path + "." + escapeKey(k.Str), value: v.Str})
			}
			return true
		})
	}
}

func join(prefix, rest string) string {
	if prefix == "" {
		return rest
	}
	return prefix + "." + rest
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`,
)

// escapeKey quotes characters that have meaning in gjson/sjson paths.
func escapeKey(k string) string {
	return pathEscaper.Replace(k)
}
