// Package catalog reads and edits template index documents: an ordered list
// of categories, each holding an ordered list of template entries.
package catalog

import (
	"errors"
	"fmt"

	"github.com/starford/raido/internal/jsondoc"
)

// ErrMalformed is returned when a document does not have the index shape.
var ErrMalformed = errors.New("catalog: malformed index")

// Index is a parsed template index document.
type Index struct {
	categories []any
}

// Parse decodes and shape-checks an index document.
func Parse(data []byte) (*Index, error) {
	v, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cats, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrMalformed)
	}
	for i, c := range cats {
		obj, ok := c.(*jsondoc.Object)
		if !ok {
			return nil, fmt.Errorf("%w: category %d is not an object", ErrMalformed, i)
		}
		if t, present := obj.Get("templates"); present {
			if _, ok := t.([]any); !ok {
				return nil, fmt.Errorf("%w: category %d templates is not an array", ErrMalformed, i)
			}
		}
	}
	return &Index{categories: cats}, nil
}

// Clone returns a deep copy of the index.
func (ix *Index) Clone() *Index {
	return &Index{categories: jsondoc.Clone(ix.categories).([]any)}
}

// Value returns the document form of the index.
func (ix *Index) Value() any { return ix.categories }

// Bytes renders the index the way it is committed.
func (ix *Index) Bytes() []byte { return jsondoc.FormatFile(ix.categories) }

// Len returns the number of categories.
func (ix *Index) Len() int { return len(ix.categories) }

// Category returns the category object at i.
func (ix *Index) Category(i int) (*jsondoc.Object, bool) {
	if i < 0 || i >= len(ix.categories) {
		return nil, false
	}
	return ix.categories[i].(*jsondoc.Object), true
}

// CategoryTitle returns the title of category i.
func (ix *Index) CategoryTitle(i int) string {
	c, ok := ix.Category(i)
	if !ok {
		return ""
	}
	return jsondoc.String(c, "title")
}

// CategoryByTitle returns the index of the first category with the title.
func (ix *Index) CategoryByTitle(title string) (int, bool) {
	for i := range ix.categories {
		if ix.CategoryTitle(i) == title {
			return i, true
		}
	}
	return -1, false
}

// Templates returns the template list of category i.
func (ix *Index) Templates(i int) []any {
	c, ok := ix.Category(i)
	if !ok {
		return nil
	}
	arr, _ := jsondoc.Array(c, "templates")
	return arr
}

func (ix *Index) setTemplates(i int, templates []any) {
	if c, ok := ix.Category(i); ok {
		c.Set("templates", templates)
	}
}

// FindIn returns the position of the named template inside category cat.
func (ix *Index) FindIn(cat int, name string) (int, bool) {
	for pos, t := range ix.Templates(cat) {
		if entryName(t) == name {
			return pos, true
		}
	}
	return -1, false
}

// Find returns the category and position of the named template.
func (ix *Index) Find(name string) (cat, pos int, ok bool) {
	for c := range ix.categories {
		if p, found := ix.FindIn(c, name); found {
			return c, p, true
		}
	}
	return -1, -1, false
}

// Entry returns the template object at the given position.
func (ix *Index) Entry(cat, pos int) (*jsondoc.Object, bool) {
	templates := ix.Templates(cat)
	if pos < 0 || pos >= len(templates) {
		return nil, false
	}
	obj, ok := templates[pos].(*jsondoc.Object)
	return obj, ok
}

// Names returns the template names of category cat in order.
func (ix *Index) Names(cat int) []string {
	templates := ix.Templates(cat)
	names := make([]string, 0, len(templates))
	for _, t := range templates {
		if n := entryName(t); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// AllNames returns every template name in the index.
func (ix *Index) AllNames() []string {
	var names []string
	for c := range ix.categories {
		names = append(names, ix.Names(c)...)
	}
	return names
}

// Replace stores entry at the given position.
func (ix *Index) Replace(cat, pos int, entry *jsondoc.Object) {
	templates := ix.Templates(cat)
	if pos >= 0 && pos < len(templates) {
		templates[pos] = entry
	}
}

// Remove splices the entry at the given position out of its category.
func (ix *Index) Remove(cat, pos int) *jsondoc.Object {
	templates := ix.Templates(cat)
	if pos < 0 || pos >= len(templates) {
		return nil
	}
	entry, _ := templates[pos].(*jsondoc.Object)
	out := make([]any, 0, len(templates)-1)
	out = append(out, templates[:pos]...)
	out = append(out, templates[pos+1:]...)
	ix.setTemplates(cat, out)
	return entry
}

// Append adds entry to the end of category cat.
func (ix *Index) Append(cat int, entry *jsondoc.Object) {
	if _, ok := ix.Category(cat); !ok {
		return
	}
	ix.setTemplates(cat, append(ix.Templates(cat), entry))
}

// Unplaced is a template Reorder appended after the ordered ones: either its
// name is missing from the order, or it repeats a name already placed.
type Unplaced struct {
	Name      string
	Duplicate bool
}

// Reorder sorts category cat so that templates named in order come first, in
// that order. The first entry of each named template is the one placed;
// every other entry keeps its relative order after them and is returned.
func (ix *Index) Reorder(cat int, order []string) []Unplaced {
	templates := ix.Templates(cat)
	byName := make(map[string]any, len(templates))
	for _, t := range templates {
		if n := entryName(t); n != "" {
			if _, dup := byName[n]; !dup {
				byName[n] = t
			}
		}
	}
	out := make([]any, 0, len(templates))
	placed := make(map[string]bool, len(order))
	for _, name := range order {
		if t, ok := byName[name]; ok && !placed[name] {
			out = append(out, t)
			placed[name] = true
		}
	}
	var rest []Unplaced
	for _, t := range templates {
		n := entryName(t)
		if n != "" && placed[n] && t == byName[n] {
			continue
		}
		out = append(out, t)
		rest = append(rest, Unplaced{Name: n, Duplicate: n != "" && placed[n]})
	}
	ix.setTemplates(cat, out)
	return rest
}

func entryName(v any) string {
	obj, ok := v.(*jsondoc.Object)
	if !ok {
		return ""
	}
	return jsondoc.String(obj, "name")
}
