package i18n

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/jsondoc"
)

// MutationKind names the template change being propagated.
type MutationKind string

const (
	MutationCreate  MutationKind = "create"
	MutationUpdate  MutationKind = "update"
	MutationMove    MutationKind = "move"
	MutationReorder MutationKind = "reorder"
)

// Mutation describes one change to the master index. Category is the
// template's category index after the change; OldCategory is its index
// before a move, or -1. Entry is the canonical master entry and is unused
// for reorders.
type Mutation struct {
	Kind        MutationKind
	Category    int
	OldCategory int
	Name        string
	Entry       *jsondoc.Object
}

// SyncStatus is the outcome for one locale document.
type SyncStatus string

const (
	SyncUpdated   SyncStatus = "updated"
	SyncUnchanged SyncStatus = "unchanged"
	SyncSkipped   SyncStatus = "skipped"
)

// LocaleResult is the computed document for one locale.
type LocaleResult struct {
	Locale   string
	Path     string
	Status   SyncStatus
	Reason   string
	Content  []byte
	Warnings []string
}

// ReadFunc reads a repository file at the branch being edited.
type ReadFunc func(ctx context.Context, path string) ([]byte, error)

// Engine propagates master index mutations to every non-default locale.
type Engine struct {
	config *Config
	logger *slog.Logger
}

// NewEngine creates a locale sync engine.
func NewEngine(cfg *Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: cfg, logger: logger}
}

// SyncTemplate computes the new index document of every non-default locale.
// master must already contain the mutation. A nil mem means the memory could
// not be read: translated fields already in a locale are kept and new
// entries carry the source text. A locale whose document cannot
// be read or has the wrong shape is skipped; the others are still produced.
// The default locale is never part of the result.
func (e *Engine) SyncTemplate(ctx context.Context, mut Mutation, master *catalog.Index, mem *Memory, read ReadFunc) []LocaleResult {
	var results []LocaleResult
	for _, loc := range e.config.SupportedLocales {
		if loc.IsDefault {
			continue
		}
		res := e.syncLocale(ctx, loc, mut, master, mem, read)
		if res.Status == SyncSkipped {
			e.logger.Warn("locale sync: skipped locale",
				slog.String("locale", loc.Code),
				slog.String("path", res.Path),
				slog.String("reason", res.Reason))
		}
		for _, w := range res.Warnings {
			e.logger.Warn("locale sync: "+w, slog.String("locale", loc.Code))
		}
		results = append(results, res)
	}
	return results
}

func (e *Engine) syncLocale(ctx context.Context, loc Locale, mut Mutation, master *catalog.Index, mem *Memory, read ReadFunc) LocaleResult {
	res := LocaleResult{Locale: loc.Code, Path: IndexPath(loc)}
	skip := func(format string, args ...any) LocaleResult {
		res.Status = SyncSkipped
		res.Reason = fmt.Sprintf(format, args...)
		return res
	}

	raw, err := read(ctx, res.Path)
	if err != nil {
		return skip("read: %v", err)
	}
	doc, err := catalog.Parse(raw)
	if err != nil {
		return skip("%v", err)
	}
	if _, ok := doc.Category(mut.Category); !ok {
		return skip("category %d does not exist (%d categories)", mut.Category, doc.Len())
	}

	if mut.Kind != MutationReorder && mut.Entry != nil {
		e.placeEntry(loc, mut, doc, mem)
	}

	for _, u := range doc.Reorder(mut.Category, master.Names(mut.Category)) {
		if u.Duplicate {
			res.Warnings = append(res.Warnings, fmt.Sprintf("duplicate entry for template %s in category %d, appended", u.Name, mut.Category))
			continue
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("template %s is not in master category %d, appended", u.Name, mut.Category))
	}
	if mut.OldCategory >= 0 && mut.OldCategory != mut.Category {
		if _, ok := doc.Category(mut.OldCategory); ok {
			doc.Reorder(mut.OldCategory, master.Names(mut.OldCategory))
		}
	}

	res.Content = doc.Bytes()
	if bytes.Equal(res.Content, raw) {
		res.Status = SyncUnchanged
	} else {
		res.Status = SyncUpdated
	}
	return res
}

// placeEntry updates or inserts the mutated template in one locale document.
func (e *Engine) placeEntry(loc Locale, mut Mutation, doc *catalog.Index, mem *Memory) {
	name := mut.Name
	if name == "" {
		name = jsondoc.String(mut.Entry, "name")
	}

	pos, found := doc.FindIn(mut.Category, name)
	if !found {
		from := -1
		if mut.OldCategory >= 0 && mut.OldCategory != mut.Category {
			if p, ok := doc.FindIn(mut.OldCategory, name); ok {
				from, pos = mut.OldCategory, p
			}
		}
		if from < 0 {
			if c, p, ok := doc.Find(name); ok {
				from, pos = c, p
			}
		}
		if from >= 0 {
			moved := doc.Remove(from, pos)
			doc.Append(mut.Category, moved)
			pos, found = len(doc.Templates(mut.Category))-1, true
		}
	}

	if found {
		existing, _ := doc.Entry(mut.Category, pos)
		doc.Replace(mut.Category, pos, e.mergeExisting(existing, mut.Entry, loc, mem))
		return
	}
	doc.Append(mut.Category, e.newLocaleEntry(mut.Entry, name, loc, mem))
}

// mergeExisting copies the auto-sync fields of entry onto the locale's copy,
// dropping those entry no longer has, and translates the tags. The locale's
// title and description are kept, and so are its tags when mem is nil.
func (e *Engine) mergeExisting(existing, entry *jsondoc.Object, loc Locale, mem *Memory) *jsondoc.Object {
	out := jsondoc.CloneObject(existing)
	for _, field := range e.config.AutoSyncFields.Fields {
		if e.config.translatable(field) {
			continue
		}
		if v, ok := entry.Get(field); ok {
			out.Set(field, jsondoc.Clone(v))
		} else {
			out.Delete(field)
		}
	}
	if mem == nil {
		return out
	}
	if _, ok := entry.Get("tags"); ok {
		out.Set("tags", jsondoc.Strings(mem.TranslateTags(catalog.Tags(entry), loc.Code)))
	}
	return out
}

// newLocaleEntry builds a locale copy of entry, using stored translations of
// the title and description when the memory has them.
func (e *Engine) newLocaleEntry(entry *jsondoc.Object, name string, loc Locale, mem *Memory) *jsondoc.Object {
	out := jsondoc.CloneObject(entry)
	if mem == nil {
		return out
	}
	if t, ok := mem.Title(name, loc.Code); ok {
		out.Set("title", t)
	}
	if d, ok := mem.Description(name, loc.Code); ok {
		out.Set("description", d)
	}
	if _, ok := entry.Get("tags"); ok {
		out.Set("tags", jsondoc.Strings(mem.TranslateTags(catalog.Tags(entry), loc.Code)))
	}
	return out
}
