package i18n

import (
	"fmt"

	"github.com/starford/raido/internal/jsondoc"
)

const (
	pendingComment  = "Pending translation tasks. Only templates with missing translations appear here."
	outdatedComment = "Templates with source-language updates that need translation review"
)

// Memory is the translation memory document:
//
//	templates[name].title[locale], templates[name].description[locale],
//	tags[tag][locale], categories[title][locale] and a _status block with
//	pending_templates and outdated_translations.templates.
type Memory struct {
	root *jsondoc.Object
}

// NewMemory returns an empty translation memory with its bookkeeping blocks.
func NewMemory() *Memory {
	m := &Memory{root: jsondoc.NewObject()}
	m.ensure()
	return m
}

// ParseMemory decodes a translation memory document. Missing sections are
// added so callers can write into them.
func ParseMemory(data []byte) (*Memory, error) {
	root, err := jsondoc.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse memory: %w", err)
	}
	m := &Memory{root: root}
	m.ensure()
	return m, nil
}

func (m *Memory) ensure() {
	status, ok := jsondoc.Child(m.root, "_status")
	if !ok {
		status = jsondoc.NewObject()
		status.Set("comment", pendingComment)
		m.root.Set("_status", status)
	}
	jsondoc.EnsureChild(status, "pending_templates")
	if _, ok := jsondoc.Child(status, "outdated_translations"); !ok {
		outdated := jsondoc.NewObject()
		outdated.Set("comment", outdatedComment)
		outdated.Set("templates", jsondoc.NewObject())
		status.Set("outdated_translations", outdated)
	}
	jsondoc.EnsureChild(jsondoc.EnsureChild(status, "outdated_translations"), "templates")
	jsondoc.EnsureChild(m.root, "templates")
	jsondoc.EnsureChild(m.root, "tags")
	jsondoc.EnsureChild(m.root, "categories")
}

// Clone returns a deep copy.
func (m *Memory) Clone() *Memory {
	return &Memory{root: jsondoc.CloneObject(m.root)}
}

// Value returns the document form.
func (m *Memory) Value() *jsondoc.Object { return m.root }

// Bytes renders the memory with two-space indentation and a trailing newline.
func (m *Memory) Bytes() []byte {
	return append(jsondoc.MarshalIndent(m.root), '\n')
}

// Equal reports whether two memories hold the same document.
func (m *Memory) Equal(o *Memory) bool {
	return jsondoc.Equal(m.root, o.root)
}

func (m *Memory) section(name string) *jsondoc.Object {
	return jsondoc.EnsureChild(m.root, name)
}

func (m *Memory) status() *jsondoc.Object {
	return jsondoc.EnsureChild(m.root, "_status")
}

// template returns templates[name], if present.
func (m *Memory) template(name string) (*jsondoc.Object, bool) {
	return jsondoc.Child(m.section("templates"), name)
}

func lookup(obj *jsondoc.Object, key, locale string) (string, bool) {
	child, ok := jsondoc.Child(obj, key)
	if !ok {
		return "", false
	}
	s := jsondoc.String(child, locale)
	return s, s != ""
}

// Title returns the stored title of a template in locale.
func (m *Memory) Title(name, locale string) (string, bool) {
	t, ok := m.template(name)
	if !ok {
		return "", false
	}
	return lookup(t, "title", locale)
}

// Description returns the stored description of a template in locale.
func (m *Memory) Description(name, locale string) (string, bool) {
	t, ok := m.template(name)
	if !ok {
		return "", false
	}
	return lookup(t, "description", locale)
}

// Tag returns the translation of tag in locale.
func (m *Memory) Tag(tag, locale string) (string, bool) {
	return lookup(m.section("tags"), tag, locale)
}

// Category returns the translation of a category title in locale.
func (m *Memory) Category(title, locale string) (string, bool) {
	return lookup(m.section("categories"), title, locale)
}

// TranslateTags maps tags into locale, keeping the source text for tags
// without a stored translation.
func (m *Memory) TranslateTags(tags []string, locale string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		if tr, ok := m.Tag(tag, locale); ok {
			out[i] = tr
		} else {
			out[i] = tag
		}
	}
	return out
}

// Pending reports whether the template is listed as awaiting translation.
func (m *Memory) Pending(name string) bool {
	pending := jsondoc.EnsureChild(m.status(), "pending_templates")
	_, ok := pending.Get(name)
	return ok
}

// OutdatedFields returns the fields flagged for review on a template.
func (m *Memory) OutdatedFields(name string) []string {
	outdated := jsondoc.EnsureChild(jsondoc.EnsureChild(m.status(), "outdated_translations"), "templates")
	entry, ok := jsondoc.Child(outdated, name)
	if !ok {
		return nil
	}
	fields, _ := jsondoc.Array(entry, "fields")
	return jsondoc.StringSlice(fields)
}
