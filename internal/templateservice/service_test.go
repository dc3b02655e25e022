package templateservice

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/testutil"
)

type capture struct {
	mu     sync.Mutex
	events []sse.CommitEvent
}

func (c *capture) PublishCommit(ev sse.CommitEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

type fixture struct {
	svc    *Service
	repo   *storage.Git
	seed   string
	db     *journal.DB
	events *capture
}

var editor = Actor{Credential: "token", UserID: "u1"}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo, seed := testutil.TestRepo(t)
	f := &fixture{repo: repo, seed: seed, db: testutil.TestJournal(t), events: &capture{}}
	base := []Option{
		WithRules(testutil.StaticRules()),
		WithJournal(f.db),
		WithPublisher(f.events),
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }),
	}
	f.svc = New(storage.GitOpener{Store: repo}, testutil.StaticLocales(t), append(base, opts...)...)
	return f
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	return testutil.ReadFile(t, f.repo, testutil.Branch, path)
}

func (f *fixture) head(t *testing.T) string {
	t.Helper()
	sha, err := f.repo.GetRef(context.Background(), testutil.Branch)
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	return sha
}

func names(doc string, cat int) string {
	var out []string
	for _, n := range gjson.Get(doc, strconv.Itoa(cat)+".templates.#.name").Array() {
		out = append(out, n.String())
	}
	return strings.Join(out, ",")
}

func outcome(r *Result, path string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return Outcome{}, false
}

func TestCreateTemplate_OneCommitAcrossDocuments(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateTemplate(context.Background(), editor, CreateRequest{
		Name: "foo",
		Metadata: catalog.Metadata{
			Title:    "Foo",
			Category: "Image",
			Tags:     []string{"new-tag"},
		},
		Workflow:   json.RawMessage(`{"nodes":[{"id":1,"widgets_values":["input.png","image"]}]}`),
		Thumbnails: []File{{Filename: "foo-1.png", Content: []byte("thumb")}},
		InputFiles: []File{{Filename: "input.png", Content: []byte("png-foo")}},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if res.NoOp || res.Commit == nil {
		t.Fatalf("expected a commit, got %+v", res)
	}

	head := f.head(t)
	if head != res.Commit.SHA {
		t.Errorf("head = %s, want %s", head, res.Commit.SHA)
	}
	c, err := f.repo.GetCommit(context.Background(), head)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != f.seed {
		t.Errorf("parents = %v, want [%s]", c.Parents, f.seed)
	}

	master := f.read(t, "templates/index.json")
	if got := names(master, 0); got != "a,b,foo" {
		t.Errorf("master Image = %q", got)
	}
	if got := gjson.Get(master, `0.templates.2.mediaSubtype`).String(); got != "png" {
		t.Errorf("mediaSubtype = %q, want png", got)
	}
	for _, p := range []string{"templates/index.fr.json", "templates/index.ja.json"} {
		doc := f.read(t, p)
		if got := names(doc, 0); got != "a,b,foo" {
			t.Errorf("%s Image = %q", p, got)
		}
		if got := gjson.Get(doc, `0.templates.2.tags.0`).String(); got != "new-tag" {
			t.Errorf("%s tag = %q", p, got)
		}
	}

	mem := f.read(t, "scripts/i18n.json")
	for _, loc := range []string{"en", "fr", "ja"} {
		if got := gjson.Get(mem, "tags.new-tag."+loc).String(); got != "new-tag" {
			t.Errorf("memory tag %s = %q", loc, got)
		}
	}
	if !gjson.Get(mem, "_status.pending_templates.foo").Exists() {
		t.Error("foo not pending translation")
	}

	bundles := f.read(t, "bundles.json")
	if got := gjson.Get(bundles, `media-image.#(=="foo")`).String(); got != "foo" {
		t.Errorf("bundles = %s", bundles)
	}

	if res.AssetMapping["input.png"] != "foo_input.png" {
		t.Errorf("mapping = %v", res.AssetMapping)
	}
	wf := f.read(t, "templates/foo.json")
	if got := gjson.Get(wf, "nodes.0.widgets_values.0").String(); got != "foo_input.png" {
		t.Errorf("workflow reference = %q", got)
	}
	if got := f.read(t, "input/foo_input.png"); got != "png-foo" {
		t.Errorf("asset = %q", got)
	}
	if got := f.read(t, "input/input.png"); got != "png-a" {
		t.Errorf("existing asset overwritten: %q", got)
	}
	if got := f.read(t, "templates/foo-1.png"); got != "thumb" {
		t.Errorf("thumbnail = %q", got)
	}

	entries, total, err := f.db.List(journal.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || entries[0].CommitSHA != head || entries[0].UserID != "u1" {
		t.Errorf("journal = %d %+v", total, entries)
	}
	if len(f.events.events) != 1 || f.events.events[0].SHA != head {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestCreateTemplate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf := json.RawMessage(`{"nodes":[]}`)

	_, err := f.svc.CreateTemplate(ctx, editor, CreateRequest{Name: "a", Workflow: wf, Metadata: catalog.Metadata{Title: "A", Category: "Image"}})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate: err = %v, want ErrAlreadyExists", err)
	}
	_, err = f.svc.CreateTemplate(ctx, editor, CreateRequest{Name: "x", Workflow: wf, Metadata: catalog.Metadata{Title: "X", Category: "Audio"}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown category: err = %v, want ErrInvalid", err)
	}
	_, err = f.svc.CreateTemplate(ctx, editor, CreateRequest{Name: "bad name", Workflow: wf, Metadata: catalog.Metadata{Title: "X", Category: "Image"}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad name: err = %v, want ErrInvalid", err)
	}
	_, err = f.svc.CreateTemplate(ctx, Actor{}, CreateRequest{Name: "x", Workflow: wf, Metadata: catalog.Metadata{Title: "X", Category: "Image"}})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("anonymous: err = %v, want ErrUnauthorized", err)
	}
	if head := f.head(t); head != f.seed {
		t.Errorf("head moved to %s", head)
	}
}

func TestUpdateTemplate_TitleMarksOutdated(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{
		Name:     "a",
		Metadata: catalog.Metadata{Title: "Alpha 2"},
	})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	mem := f.read(t, "scripts/i18n.json")
	if got := gjson.Get(mem, "templates.a.title.en").String(); got != "Alpha 2" {
		t.Errorf("title.en = %q", got)
	}
	if got := gjson.Get(mem, "templates.a.title.fr").String(); got != "Alpha fr" {
		t.Errorf("title.fr = %q", got)
	}
	if got := gjson.Get(mem, `_status.outdated_translations.templates.a.fields.#(=="title")`).String(); got != "title" {
		t.Errorf("outdated fields missing title: %s", mem)
	}
	if got := gjson.Get(f.read(t, "templates/index.fr.json"), "0.templates.0.title").String(); got != "Alpha fr" {
		t.Errorf("fr title = %q", got)
	}
	if got := gjson.Get(f.read(t, "templates/index.json"), "0.templates.0.title").String(); got != "Alpha 2" {
		t.Errorf("master title = %q", got)
	}
	if o, _ := outcome(res, "templates/index.ja.json"); o.Status != StatusUnchanged {
		t.Errorf("ja outcome = %+v", o)
	}
	if o, _ := outcome(res, "bundles.json"); o.Status != StatusUnchanged {
		t.Errorf("bundles outcome = %+v", o)
	}
}

func TestUpdateTemplate_MoveCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{
		Name:     "baz",
		Metadata: catalog.Metadata{Category: "Image"},
	})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	for _, p := range []string{"templates/index.json", "templates/index.fr.json", "templates/index.ja.json"} {
		doc := f.read(t, p)
		if got := names(doc, 0); got != "a,b,baz" {
			t.Errorf("%s Image = %q", p, got)
		}
		if got := names(doc, 1); got != "" {
			t.Errorf("%s Video = %q", p, got)
		}
	}
	if got := gjson.Get(f.read(t, "templates/index.fr.json"), "0.templates.2.title").String(); got != "Baz fr" {
		t.Errorf("fr title lost on move: %q", got)
	}
	bundles := f.read(t, "bundles.json")
	if got := gjson.Get(bundles, `media-image.#(=="baz")`).String(); got != "baz" {
		t.Errorf("bundles = %s", bundles)
	}
	if gjson.Get(bundles, `media-video.#(=="baz")`).Exists() {
		t.Errorf("baz still in media-video: %s", bundles)
	}
}

func TestUpdateTemplate_VariantDropRemovesSecondThumbnail(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{
		Name:     "b",
		Metadata: catalog.Metadata{ThumbnailVariant: catalog.VariantNone},
	})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if _, err := f.repo.GetContent(context.Background(), "templates/b-2.webp", testutil.Branch); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second thumbnail: err = %v, want ErrNotFound", err)
	}
	if o, _ := outcome(res, "templates/b-2.webp"); o.Status != StatusUpdated {
		t.Errorf("outcome = %+v", o)
	}
	if gjson.Get(f.read(t, "templates/index.fr.json"), "0.templates.1.thumbnailVariant").Exists() {
		t.Error("fr thumbnailVariant not cleared")
	}
}

func TestUpdateTemplate_ReplacesOwnedAsset(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{
		Name:       "a",
		InputFiles: []File{{Filename: "new.png", Content: []byte("png-new"), DeleteOldFile: "input.png"}},
	})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if got := f.read(t, "input/new.png"); got != "png-new" {
		t.Errorf("new asset = %q", got)
	}
	if _, err := f.repo.GetContent(context.Background(), "input/input.png", testutil.Branch); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old asset: err = %v, want ErrNotFound", err)
	}
	if len(res.AssetMapping) != 0 {
		t.Errorf("mapping = %v", res.AssetMapping)
	}
}

func TestUpdateTemplate_TruncatedTreeStillSeesTakenNames(t *testing.T) {
	f := newFixture(t)
	svc := New(testutil.Truncating{Git: f.repo}, testutil.StaticLocales(t), WithRules(testutil.StaticRules()))

	res, err := svc.UpdateTemplate(context.Background(), editor, UpdateRequest{
		Name:       "b",
		InputFiles: []File{{Filename: "input.png", Content: []byte("png-b")}},
	})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if got := res.AssetMapping["input.png"]; got != "b_input.png" {
		t.Errorf("mapping = %v", res.AssetMapping)
	}
	if got := f.read(t, "input/input.png"); got != "png-a" {
		t.Errorf("input.png of a overwritten: %q", got)
	}
	if got := f.read(t, "input/b_input.png"); got != "png-b" {
		t.Errorf("b_input.png = %q", got)
	}
}

func TestUpdateTemplate_NothingChangedIsNoOp(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{Name: "a"})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if !res.NoOp || res.Commit != nil {
		t.Errorf("expected no-op, got %+v", res)
	}
	if head := f.head(t); head != f.seed {
		t.Errorf("head moved to %s", head)
	}
	for _, o := range res.Outcomes {
		if o.Status == StatusUpdated {
			t.Errorf("outcome %+v, want none updated", o)
		}
	}
	if len(f.events.events) != 0 {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestUpdateTemplate_BadLocaleIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.repo.Seed(ctx, testutil.Branch, "break ja", map[string][]byte{"templates/index.ja.json": []byte("{")}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	vram := json.Number("12")
	res, err := f.svc.UpdateTemplate(ctx, editor, UpdateRequest{Name: "baz", Metadata: catalog.Metadata{VRAM: &vram}})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if o, _ := outcome(res, "templates/index.ja.json"); o.Status != StatusSkipped || o.Reason == "" {
		t.Errorf("ja outcome = %+v", o)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the skipped locale")
	}
	if got := gjson.Get(f.read(t, "templates/index.fr.json"), "1.templates.0.vram").Int(); got != 12 {
		t.Errorf("fr vram = %d", got)
	}
	if got := f.read(t, "templates/index.ja.json"); got != "{" {
		t.Errorf("ja rewritten: %q", got)
	}
}

func TestUpdateTemplate_UnreadableMemoryKeepsLocaleTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.repo.Seed(ctx, testutil.Branch, "break memory", map[string][]byte{"scripts/i18n.json": []byte("{not json")}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	vram := json.Number("16")
	res, err := f.svc.UpdateTemplate(ctx, editor, UpdateRequest{Name: "a", Metadata: catalog.Metadata{VRAM: &vram}})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if o, _ := outcome(res, "scripts/i18n.json"); o.Status != StatusSkipped {
		t.Errorf("memory outcome = %+v", o)
	}
	fr := f.read(t, "templates/index.fr.json")
	if tags := gjson.Get(fr, "0.templates.0.tags").Array(); len(tags) != 1 || tags[0].String() != "Portrait fr" {
		t.Errorf("fr tags = %v", tags)
	}
	if got := gjson.Get(fr, "0.templates.0.vram").Int(); got != 16 {
		t.Errorf("fr vram = %d", got)
	}
	if got := f.read(t, "scripts/i18n.json"); got != "{not json" {
		t.Errorf("memory rewritten: %q", got)
	}
}

func TestUpdateTemplate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateTemplate(context.Background(), editor, UpdateRequest{Name: "missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReorderTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.ReorderTemplates(ctx, editor, ReorderRequest{Category: 0, Order: []string{"b", "a"}}); err != nil {
		t.Fatalf("ReorderTemplates: %v", err)
	}
	for _, p := range []string{"templates/index.json", "templates/index.fr.json", "templates/index.ja.json"} {
		if got := names(f.read(t, p), 0); got != "b,a" {
			t.Errorf("%s = %q", p, got)
		}
	}
	_, err := f.svc.ReorderTemplates(ctx, editor, ReorderRequest{Category: 0, Order: []string{"baz"}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("foreign name: err = %v, want ErrInvalid", err)
	}
	_, err = f.svc.ReorderTemplates(ctx, editor, ReorderRequest{Category: 9, Order: []string{"a"}})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad category: err = %v, want ErrInvalid", err)
	}
}

func TestApplyTranslations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mem := `{"templates":{"a":{"title":{"en":"Alpha","fr":"Alpha traduit"}}},"tags":{"Portrait":{"ja":"ポートレート"}},"categories":{"Image":{"fr":"Images"}}}`
	res, err := f.svc.ApplyTranslations(ctx, editor, TranslationsRequest{Memory: json.RawMessage(mem)})
	if err != nil {
		t.Fatalf("ApplyTranslations: %v", err)
	}
	fr := f.read(t, "templates/index.fr.json")
	if got := gjson.Get(fr, "0.templates.0.title").String(); got != "Alpha traduit" {
		t.Errorf("fr title = %q", got)
	}
	if got := gjson.Get(fr, "0.title").String(); got != "Images" {
		t.Errorf("fr category = %q", got)
	}
	if got := gjson.Get(f.read(t, "templates/index.ja.json"), "0.templates.0.tags.0").String(); got != "ポートレート" {
		t.Errorf("ja tag = %q", got)
	}
	if got := gjson.Get(f.read(t, "scripts/i18n.json"), "templates.a.title.fr").String(); got != "Alpha traduit" {
		t.Errorf("memory not stored")
	}
	if o, _ := outcome(res, "templates/index.json"); o.Status != StatusUnchanged {
		t.Errorf("master outcome = %+v", o)
	}

	raw, err := f.svc.ReadTranslations(ctx, Actor{}, "")
	if err != nil {
		t.Fatalf("ReadTranslations: %v", err)
	}
	if !gjson.GetBytes(raw, "tags.Portrait.ja").Exists() {
		t.Errorf("ReadTranslations = %s", raw)
	}
}

func TestUpdateUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.UpdateUsage(ctx, editor, UsageRequest{Usage: map[string]json.Number{"a": "42", "ghost": "1"}})
	if err != nil {
		t.Fatalf("UpdateUsage: %v", err)
	}
	for _, p := range []string{"templates/index.json", "templates/index.fr.json", "templates/index.ja.json"} {
		if got := gjson.Get(f.read(t, p), "0.templates.0.usage").Int(); got != 42 {
			t.Errorf("%s usage = %d", p, got)
		}
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "ghost") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	_, err = f.svc.UpdateUsage(ctx, editor, UsageRequest{Usage: map[string]json.Number{"ghost": "1"}})
	if !errors.Is(err, apperr.ErrNoChanges) {
		t.Errorf("err = %v, want ErrNoChanges", err)
	}
}

func TestBranches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateBranch(ctx, editor, BranchRequest{Name: "draft"}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if _, err := f.svc.CreateBranch(ctx, editor, BranchRequest{Name: "draft"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second CreateBranch: err = %v, want ErrAlreadyExists", err)
	}
	if _, err := f.svc.UpdateTemplate(ctx, editor, UpdateRequest{Branch: "draft", Name: "a", Metadata: catalog.Metadata{Title: "Draft"}}); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	draft, _ := f.repo.GetRef(ctx, "draft")

	_, err := f.svc.ResetBranch(ctx, editor, ResetRequest{Branch: "main", To: "draft"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("disabled reset: err = %v, want ErrForbidden", err)
	}

	settings := DefaultSettings()
	settings.BranchResetEnabled = true
	f.svc.settings = settings
	res, err := f.svc.ResetBranch(ctx, editor, ResetRequest{Branch: "main", To: "draft", Backup: true})
	if err != nil {
		t.Fatalf("ResetBranch: %v", err)
	}
	if head := f.head(t); head != draft {
		t.Errorf("main = %s, want %s", head, draft)
	}
	backup, err := f.repo.GetRef(ctx, "main-backup-20260302-093000")
	if err != nil || backup != f.seed {
		t.Errorf("backup = %s, %v", backup, err)
	}
	if res.Commit == nil || res.Commit.SHA != draft {
		t.Errorf("result = %+v", res)
	}
}

func TestReadIndexAndLocales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw, err := f.svc.ReadIndex(ctx, Actor{}, "", "fr")
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if got := gjson.GetBytes(raw, "0.title").String(); got != "Image FR" {
		t.Errorf("fr category = %q", got)
	}
	if _, err := f.svc.ReadIndex(ctx, Actor{}, "", "de"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown locale: err = %v", err)
	}
	if _, err := f.svc.ReadIndex(ctx, Actor{}, "nope", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown branch: err = %v", err)
	}
	locales, err := f.svc.Locales(ctx, Actor{}, "")
	if err != nil {
		t.Fatalf("Locales: %v", err)
	}
	if len(locales) != 3 || !locales[0].IsDefault {
		t.Errorf("locales = %+v", locales)
	}
}

func TestRepositoryLocaleConfigWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repoCfg := `{"supportedLocales":[{"code":"en","indexFile":"index.json","isDefault":true},{"code":"fr","indexFile":"index.fr.json"}]}`
	if _, err := f.repo.Seed(ctx, testutil.Branch, "config", map[string][]byte{"config/i18n-config.json": []byte(repoCfg)}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	locales, err := f.svc.Locales(ctx, Actor{}, "")
	if err != nil {
		t.Fatalf("Locales: %v", err)
	}
	if len(locales) != 2 {
		t.Errorf("locales = %+v", locales)
	}
}

func TestTranslate(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Translate(context.Background(), editor, []string{"Hello"}, "en", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(out) != 1 || out[0] != "Hello" {
		t.Errorf("out = %v", out)
	}
	if _, err := f.svc.Translate(context.Background(), Actor{}, []string{"x"}, "en", "fr"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("anonymous: err = %v", err)
	}
}
