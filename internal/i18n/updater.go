package i18n

import (
	"time"

	"github.com/starford/raido/internal/jsondoc"
)

// Source is the source-language text of a template mutation.
type Source struct {
	Title       string
	Description string
	Category    string
	Tags        []string
}

// Updater maintains the translation memory.
type Updater struct {
	config *Config
	now    func() time.Time
}

// NewUpdater creates an updater for the configured locales. now defaults to
// time.Now.
func NewUpdater(cfg *Config, now func() time.Time) *Updater {
	if now == nil {
		now = time.Now
	}
	return &Updater{config: cfg, now: now}
}

// CreatePlaceholders returns a copy of mem seeded for a new template: every
// locale gets the source title and description unless it already holds a
// value, new tags and categories get identity translations, and the template
// is listed as pending translation.
func (u *Updater) CreatePlaceholders(mem *Memory, name string, src Source) *Memory {
	out := mem.Clone()
	def := u.config.Default().Code
	tpl := jsondoc.EnsureChild(out.section("templates"), name)
	title := jsondoc.EnsureChild(tpl, "title")
	desc := jsondoc.EnsureChild(tpl, "description")
	for _, code := range u.config.Codes() {
		if code == def || jsondoc.String(title, code) == "" {
			title.Set(code, src.Title)
		}
		if code == def || jsondoc.String(desc, code) == "" {
			desc.Set(code, src.Description)
		}
	}
	u.seedTags(out, src.Tags)
	if src.Category != "" {
		if !u.seedCategory(out, src.Category) {
			cat := jsondoc.EnsureChild(out.section("categories"), src.Category)
			if jsondoc.String(cat, def) == "" {
				cat.Set(def, src.Category)
			}
		}
	}
	pending := jsondoc.EnsureChild(out.status(), "pending_templates")
	if _, ok := pending.Get(name); !ok {
		missing := []any{}
		for _, code := range u.config.Codes() {
			if code != def {
				missing = append(missing, code)
			}
		}
		entry := jsondoc.NewObject()
		entry.Set("missing_fields", []any{"title", "description"})
		entry.Set("missing_languages", missing)
		pending.Set(name, entry)
	}
	return out
}

// MarkOutdated compares the stored source-language title and description of
// a template with the new values. Changed values are stored and flagged under
// _status.outdated_translations; other locales keep their text. New tags and
// categories are seeded as in CreatePlaceholders. It returns nil when the
// memory would not change.
func (u *Updater) MarkOutdated(mem *Memory, name string, src Source) *Memory {
	out := mem.Clone()
	def := u.config.Default().Code
	changed := false
	var fields []string

	if tpl, ok := out.template(name); ok {
		for _, f := range []struct {
			key   string
			value string
		}{{"title", src.Title}, {"description", src.Description}} {
			if f.value == "" {
				continue
			}
			texts := jsondoc.EnsureChild(tpl, f.key)
			stored := jsondoc.String(texts, def)
			if stored == f.value {
				continue
			}
			texts.Set(def, f.value)
			changed = true
			if stored != "" {
				fields = append(fields, f.key)
			}
		}
	}

	if len(fields) > 0 {
		outdated := jsondoc.EnsureChild(jsondoc.EnsureChild(out.status(), "outdated_translations"), "templates")
		fields = union(out.OutdatedFields(name), fields)
		entry := jsondoc.NewObject()
		entry.Set("fields", jsondoc.Strings(fields))
		entry.Set("lastUpdated", u.now().UTC().Format("2006-01-02T15:04:05.000Z"))
		outdated.Set(name, entry)
	}

	if u.seedTags(out, src.Tags) {
		changed = true
	}
	if src.Category != "" && u.seedCategory(out, src.Category) {
		changed = true
	}
	if !changed {
		return nil
	}
	return out
}

// seedTags adds identity translations for unknown tags.
func (u *Updater) seedTags(mem *Memory, tags []string) bool {
	added := false
	section := mem.section("tags")
	for _, tag := range tags {
		if _, ok := section.Get(tag); ok {
			continue
		}
		section.Set(tag, u.identity(tag))
		added = true
	}
	return added
}

// seedCategory adds identity translations for an unknown category.
func (u *Updater) seedCategory(mem *Memory, title string) bool {
	section := mem.section("categories")
	if _, ok := section.Get(title); ok {
		return false
	}
	section.Set(title, u.identity(title))
	return true
}

func (u *Updater) identity(text string) *jsondoc.Object {
	obj := jsondoc.NewObject()
	for _, code := range u.config.Codes() {
		obj.Set(code, text)
	}
	return obj
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
