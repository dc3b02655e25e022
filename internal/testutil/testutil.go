// Package testutil provides shared test helpers: a seeded in-memory template
// repository, a temporary journal and static config sources.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/raido/internal/bundles"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/storage"
)

// Branch is the branch the fixture repository is seeded on.
const Branch = "main"

// LocaleConfig lists English as the default plus French and Japanese.
const LocaleConfig = `{
  "supportedLocales": [
    {"code": "en", "name": "English", "indexFile": "index.json", "isDefault": true},
    {"code": "fr", "name": "Français", "indexFile": "index.fr.json"},
    {"code": "ja", "name": "日本語", "indexFile": "index.ja.json"}
  ],
  "i18nDataPath": {"default": "scripts/i18n.json"},
  "autoSyncFields": {"fields": ["mediaType", "mediaSubtype", "thumbnailVariant", "vram", "size", "usage", "io"]}
}`

// Master is the fixture master index. Template "a" owns input/input.png.
const Master = `[
  {"moduleName":"default","title":"Image","type":"image","templates":[
    {"name":"a","title":"Alpha","description":"First","mediaType":"image","mediaSubtype":"webp","tags":["Portrait"]},
    {"name":"b","title":"Beta","description":"Second","mediaType":"image","mediaSubtype":"webp","thumbnailVariant":"compareSlider"}
  ]},
  {"moduleName":"default","title":"Video","type":"video","templates":[
    {"name":"baz","title":"Baz","description":"Clip","mediaType":"video","mediaSubtype":"mp4","vram":8}
  ]}
]`

// French is the fixture French index.
const French = `[
  {"moduleName":"default","title":"Image FR","type":"image","templates":[
    {"name":"a","title":"Alpha fr","description":"Premier","mediaType":"image","mediaSubtype":"webp","tags":["Portrait fr"]},
    {"name":"b","title":"Beta fr","description":"Second fr","mediaType":"image","mediaSubtype":"webp","thumbnailVariant":"compareSlider"}
  ]},
  {"moduleName":"default","title":"Vidéo","type":"video","templates":[
    {"name":"baz","title":"Baz fr","description":"Clip fr","mediaType":"video","mediaSubtype":"mp4","vram":8}
  ]}
]`

// Japanese is the fixture Japanese index.
const Japanese = `[
  {"moduleName":"default","title":"画像","type":"image","templates":[
    {"name":"a","title":"アルファ","description":"First","mediaType":"image","mediaSubtype":"webp","tags":["Portrait"]},
    {"name":"b","title":"ベータ","description":"Second","mediaType":"image","mediaSubtype":"webp","thumbnailVariant":"compareSlider"}
  ]},
  {"moduleName":"default","title":"ビデオ","type":"video","templates":[
    {"name":"baz","title":"バズ","description":"Clip","mediaType":"video","mediaSubtype":"mp4","vram":8}
  ]}
]`

// Memory is the fixture translation memory.
const Memory = `{
  "_status": {"pending_templates": {}, "outdated_translations": {"templates": {}}},
  "templates": {
    "a": {"title": {"en": "Alpha", "fr": "Alpha fr", "ja": "アルファ"}, "description": {"en": "First", "fr": "Premier"}},
    "b": {"title": {"en": "Beta", "fr": "Beta fr", "ja": "ベータ"}, "description": {"en": "Second", "fr": "Second fr"}}
  },
  "tags": {"Portrait": {"fr": "Portrait fr", "ja": "Portrait"}},
  "categories": {"Image": {"fr": "Image FR", "ja": "画像"}, "Video": {"fr": "Vidéo", "ja": "ビデオ"}}
}`

// Bundles is the fixture bundle membership map.
const Bundles = `{
  "media-image": ["a", "b"],
  "media-video": ["baz"]
}
`

// Workflow is the fixture workflow of template "a".
const Workflow = `{"nodes":[{"id":1,"type":"LoadImage","widgets_values":["input.png","image"]}]}`

// Files returns the fixture repository contents. Index documents and the
// memory are stored in their formatted form, so an operation that changes
// nothing produces no writes.
func Files() map[string][]byte {
	return map[string][]byte{
		"templates/index.json":    formatIndex(Master),
		"templates/index.fr.json": formatIndex(French),
		"templates/index.ja.json": formatIndex(Japanese),
		"templates/a.json":        []byte(Workflow),
		"templates/a-1.webp":      []byte("thumb-a"),
		"templates/b-1.webp":      []byte("thumb-b1"),
		"templates/b-2.webp":      []byte("thumb-b2"),
		"input/input.png":         []byte("png-a"),
		"scripts/i18n.json":       formatMemory(Memory),
		"bundles.json":            []byte(Bundles),
	}
}

func formatIndex(s string) []byte {
	ix, err := catalog.Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return ix.Bytes()
}

func formatMemory(s string) []byte {
	m, err := i18n.ParseMemory([]byte(s))
	if err != nil {
		panic(err)
	}
	return m.Bytes()
}

// TestRepo returns an in-memory git repository seeded with Files on Branch
// and the sha of the seed commit.
func TestRepo(t *testing.T) (*storage.Git, string) {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	repo, err := storage.NewMemoryGit(storage.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	sha, err := repo.Seed(context.Background(), Branch, "seed", Files())
	if err != nil {
		t.Fatal(err)
	}
	return repo, sha
}

// ReadFile reads a file at the head of branch.
func ReadFile(t *testing.T, store storage.ObjectStore, branch, path string) string {
	t.Helper()
	c, err := store.GetContent(context.Background(), path, branch)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(c.Data)
}

// TestJournal creates a temporary SQLite journal that is automatically
// cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to name inside a temporary directory and
// returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Locales is a fixed LocaleSource.
type Locales struct{ Config *i18n.Config }

// Get returns the config.
func (l Locales) Get() (*i18n.Config, error) { return l.Config, nil }

// StaticLocales parses LocaleConfig.
func StaticLocales(t *testing.T) Locales {
	t.Helper()
	cfg, err := i18n.ParseConfig([]byte(LocaleConfig))
	if err != nil {
		t.Fatal(err)
	}
	return Locales{Config: cfg}
}

// Rules is a fixed RulesSource.
type Rules struct{ Rules *bundles.Rules }

// Get returns the rules.
func (r Rules) Get() (*bundles.Rules, error) { return r.Rules, nil }

// StaticRules maps Image and Video to their media bundles.
func StaticRules() Rules {
	return Rules{Rules: &bundles.Rules{
		Default: "media-other",
		Rules: []bundles.Rule{
			{Category: "Image", Bundle: "media-image"},
			{Category: "Video", Bundle: "media-video"},
		},
	}}
}

// Truncating is a store whose tree listings are always too large to return,
// like a big repository on the hosting service.
type Truncating struct{ *storage.Git }

// GetTree always fails with storage.ErrTreeTruncated.
func (Truncating) GetTree(context.Context, string) ([]storage.TreeEntry, error) {
	return nil, storage.ErrTreeTruncated
}

// Open implements storage.Opener.
func (t Truncating) Open(context.Context, string) (storage.ObjectStore, error) { return t, nil }
