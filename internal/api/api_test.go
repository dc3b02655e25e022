package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/templateservice"
	"github.com/starford/raido/internal/testutil"
)

// testEnv builds a router over a seeded in-memory repository.
func testEnv(t *testing.T, auth Auth, opts ...templateservice.Option) (*storage.Git, http.Handler) {
	t.Helper()
	repo, _ := testutil.TestRepo(t)
	opts = append([]templateservice.Option{
		templateservice.WithRules(testutil.StaticRules()),
		templateservice.WithJournal(testutil.TestJournal(t)),
	}, opts...)
	svc := templateservice.New(storage.GitOpener{Store: repo}, testutil.StaticLocales(t), opts...)
	return repo, NewRouter(svc, auth, nil, 1<<20)
}

func do(t *testing.T, h http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var asUser = map[string]string{"Authorization": "Bearer user-token", UserHeader: "u1"}

func TestCreateTemplate_JSON(t *testing.T) {
	repo, router := testEnv(t, Auth{Mode: "passthrough"})
	body := map[string]any{
		"templateName": "foo",
		"metadata":     map[string]any{"title": "Foo", "category": "Image"},
		"workflow":     json.RawMessage(`{"nodes":[]}`),
		"thumbnails":   []map[string]any{{"filename": "foo-1.webp", "content": []byte("img")}},
	}
	w := do(t, router, http.MethodPost, "/templates", body, asUser)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !gjson.Get(w.Body.String(), "success").Bool() {
		t.Errorf("body = %s", w.Body.String())
	}
	sha := gjson.Get(w.Body.String(), "result.commit.sha").String()
	head, _ := repo.GetRef(context.Background(), testutil.Branch)
	if sha == "" || sha != head {
		t.Errorf("commit = %q, head = %q", sha, head)
	}
	if got := testutil.ReadFile(t, repo, testutil.Branch, "templates/foo-1.webp"); got != "img" {
		t.Errorf("thumbnail = %q", got)
	}

	w = do(t, router, http.MethodPost, "/templates", body, asUser)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
	if gjson.Get(w.Body.String(), "success").Bool() || gjson.Get(w.Body.String(), "message").String() == "" {
		t.Errorf("error body = %s", w.Body.String())
	}
}

func TestCreateTemplate_Multipart(t *testing.T) {
	repo, router := testEnv(t, Auth{Mode: "passthrough"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	payload := `{"templateName":"foo","metadata":{"title":"Foo","category":"Image"},"workflow":{"nodes":[{"id":1,"widgets_values":["input.png"]}]}}`
	if err := mw.WriteField("payload", payload); err != nil {
		t.Fatal(err)
	}
	part, _ := mw.CreateFormFile("inputFiles", "input.png")
	_, _ = part.Write([]byte("png-foo"))
	part, _ = mw.CreateFormFile("thumbnails", "foo-1.jpg")
	_, _ = part.Write([]byte("jpg"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/templates", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := gjson.Get(w.Body.String(), "result.assetMapping.input\\.png").String(); got != "foo_input.png" {
		t.Errorf("mapping = %q", got)
	}
	if got := testutil.ReadFile(t, repo, testutil.Branch, "input/foo_input.png"); got != "png-foo" {
		t.Errorf("asset = %q", got)
	}
	master := testutil.ReadFile(t, repo, testutil.Branch, "templates/index.json")
	if got := gjson.Get(master, "0.templates.2.mediaSubtype").String(); got != "jpg" {
		t.Errorf("mediaSubtype = %q", got)
	}
}

func TestAnonymousWriteRejected(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "passthrough"})
	w := do(t, router, http.MethodPost, "/usage", map[string]any{"usageData": map[string]int{"a": 1}}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	w = do(t, router, http.MethodGet, "/templates?locale=fr", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous read status = %d", w.Code)
	}
	if got := gjson.Get(w.Body.String(), "result.0.title").String(); got != "Image FR" {
		t.Errorf("fr index = %s", w.Body.String())
	}
}

func TestTokenMode(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "token", Token: "secret"})
	w := do(t, router, http.MethodGet, "/locales", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	w = do(t, router, http.MethodPost, "/usage", map[string]any{"usageData": map[string]int{"a": 7}},
		map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Errorf("token status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestUpdateTemplate_NotFoundAndInvalid(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodPut, "/templates/missing", map[string]any{"metadata": map[string]any{"title": "X"}}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPut, "/templates/a", map[string]any{"metadata": map[string]any{"category": "Nope"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad category status = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPut, "/templates/a", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}

func TestUsageNoChanges(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodPost, "/usage", map[string]any{"usageData": map[string]int{"ghost": 1}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestReorderAndCommits(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodPost, "/categories/0/order", map[string]any{"order": []string{"b", "a"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/categories/x/order", map[string]any{"order": []string{"a"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad index status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/commits?limit=10", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("commits status = %d", w.Code)
	}
	if got := gjson.Get(w.Body.String(), "result.total").Int(); got != 1 {
		t.Errorf("total = %d, body = %s", got, w.Body.String())
	}
	if got := gjson.Get(w.Body.String(), "result.entries.0.operation").String(); got != "reorder" {
		t.Errorf("operation = %q", got)
	}
}

func TestBranchReset_Gated(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodPost, "/branches", map[string]any{"name": "draft"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create branch status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/branches/main/reset", map[string]any{"to": "draft"}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("reset status = %d, want 403", w.Code)
	}
}

func TestTranslations(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodGet, "/i18n", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read status = %d", w.Code)
	}
	if got := gjson.Get(w.Body.String(), "result.templates.a.title.fr").String(); got != "Alpha fr" {
		t.Errorf("memory = %s", w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/translate", TranslateRequest{Texts: []string{"Hi"}, From: "en", To: "fr"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("translate status = %d", w.Code)
	}
	if got := gjson.Get(w.Body.String(), "result.translations.0").String(); got != "Hi" {
		t.Errorf("translations = %s", w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/translate", TranslateRequest{From: "en", To: "fr"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty texts status = %d", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	big := bytes.Repeat([]byte("a"), 2<<20)
	w := do(t, router, http.MethodPost, "/templates", map[string]any{"templateName": "big", "workflow": json.RawMessage(`{}`), "thumbnails": []map[string]any{{"filename": "x.png", "content": big}}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodGet, "/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUpdateLogos(t *testing.T) {
	repo, router := testEnv(t, Auth{Mode: "disabled"})
	w := do(t, router, http.MethodPut, "/logos", map[string]any{
		"logoMapping": map[string]string{"OpenAI": "logo/openai.png"},
		"files":       map[string][]byte{"logo/openai.png": []byte("png")},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := gjson.Get(w.Body.String(), "result.operation").String(); got != "update_logos" {
		t.Errorf("operation = %q", got)
	}
	if got := testutil.ReadFile(t, repo, testutil.Branch, "templates/logo/openai.png"); got != "png" {
		t.Errorf("logo = %q", got)
	}

	w = do(t, router, http.MethodPut, "/logos", map[string]any{
		"logoMapping":  map[string]string{},
		"deletedFiles": []string{"../bundles.json"},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("escaping delete status = %d", w.Code)
	}
}

func TestHostingRoutesWithoutHosting(t *testing.T) {
	_, router := testEnv(t, Auth{Mode: "disabled"})
	for _, c := range []struct{ method, target string }{
		{http.MethodGet, "/pulls"},
		{http.MethodGet, "/fork"},
		{http.MethodPost, "/fork/sync"},
		{http.MethodGet, "/fork/compare"},
	} {
		w := do(t, router, c.method, c.target, nil, nil)
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s %s status = %d, want 501", c.method, c.target, w.Code)
		}
	}
	w := do(t, router, http.MethodPatch, "/pulls/abc", map[string]any{"title": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad number status = %d", w.Code)
	}
}
