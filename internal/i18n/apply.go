package i18n

import (
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/jsondoc"
)

// ApplyTranslations overwrites the titles, descriptions, tags and category
// titles of doc with the locale's entries from mem. Lookups use the
// source-language text of master, matched by template name and category
// position; master may be doc itself. Text without a stored translation is
// left as it is.
func ApplyTranslations(doc, master *catalog.Index, mem *Memory, locale string) {
	sourceTags := make(map[string][]string)
	for c := 0; c < master.Len(); c++ {
		for _, t := range master.Templates(c) {
			if entry, ok := t.(*jsondoc.Object); ok {
				if _, has := jsondoc.Array(entry, "tags"); has {
					sourceTags[jsondoc.String(entry, "name")] = catalog.Tags(entry)
				}
			}
		}
	}

	for c := 0; c < doc.Len(); c++ {
		for _, t := range doc.Templates(c) {
			entry, ok := t.(*jsondoc.Object)
			if !ok {
				continue
			}
			name := jsondoc.String(entry, "name")
			if name == "" {
				continue
			}
			if title, ok := mem.Title(name, locale); ok {
				entry.Set("title", title)
			}
			if desc, ok := mem.Description(name, locale); ok {
				entry.Set("description", desc)
			}
			tags, ok := sourceTags[name]
			if !ok {
				if _, has := jsondoc.Array(entry, "tags"); !has {
					continue
				}
				tags = catalog.Tags(entry)
			}
			entry.Set("tags", jsondoc.Strings(mem.TranslateTags(tags, locale)))
		}
		title := master.CategoryTitle(c)
		if title == "" {
			title = doc.CategoryTitle(c)
		}
		if tr, ok := mem.Category(title, locale); ok {
			cat, _ := doc.Category(c)
			cat.Set("title", tr)
		}
	}
}
