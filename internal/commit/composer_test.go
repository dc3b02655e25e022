package commit

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/testutil"
)

func seeded(t *testing.T) *storage.Git {
	t.Helper()
	g, err := storage.NewMemoryGit()
	if err != nil {
		t.Fatalf("NewMemoryGit: %v", err)
	}
	_, err = g.Seed(context.Background(), "main", "initial", map[string][]byte{
		"templates/index.json": []byte("[]\n"),
		"templates/old.webp":   []byte("old"),
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return g
}

func read(t *testing.T, g *storage.Git, path string) string {
	t.Helper()
	c, err := g.GetContent(context.Background(), path, "main")
	if err != nil {
		t.Fatalf("GetContent %s: %v", path, err)
	}
	return string(c.Data)
}

func TestComposeWritesOneCommit(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()
	before, _ := g.GetRef(ctx, "main")

	res, err := New(g).Compose(ctx, Request{
		Branch:  "main",
		Message: "Add foo",
		Writes: []Write{
			{Path: "templates/index.json", Content: []byte("[{}]\n")},
			{Path: "templates/foo-1.webp", Content: []byte{0xff, 0xd8}, Blob: true},
			{Path: "templates/old.webp", Delete: true},
			{Path: "templates/ghost.webp", Delete: true},
		},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if res.NoOp {
		t.Fatal("unexpected no-op")
	}
	if res.Parent != before {
		t.Errorf("parent = %s, want %s", res.Parent, before)
	}
	c, err := g.GetCommit(ctx, res.SHA)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != before {
		t.Errorf("parents = %v", c.Parents)
	}
	if got := read(t, g, "templates/index.json"); got != "[{}]\n" {
		t.Errorf("index = %q", got)
	}
	if got := read(t, g, "templates/foo-1.webp"); got != "\xff\xd8" {
		t.Errorf("blob = %q", got)
	}
	if _, err := g.GetContent(ctx, "templates/old.webp", "main"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old.webp err = %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "templates/old.webp" {
		t.Errorf("deleted = %v", res.Deleted)
	}
}

func TestComposeUnchangedIsNoOp(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()
	head, _ := g.GetRef(ctx, "main")

	res, err := New(g).Compose(ctx, Request{
		Branch:  "main",
		Message: "noop",
		Writes:  []Write{{Path: "templates/index.json", Content: []byte("[]\n")}},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !res.NoOp || res.SHA != head {
		t.Errorf("result = %+v, want no-op at %s", res, head)
	}
	after, _ := g.GetRef(ctx, "main")
	if after != head {
		t.Errorf("branch moved to %s", after)
	}
}

func TestComposeRejectsDuplicatePaths(t *testing.T) {
	g := seeded(t)
	_, err := New(g).Compose(context.Background(), Request{
		Branch:  "main",
		Message: "dup",
		Writes: []Write{
			{Path: "templates/index.json", Content: []byte("a")},
			{Path: "templates/./index.json", Content: []byte("b")},
		},
	})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestComposeRejectsEscapingPath(t *testing.T) {
	g := seeded(t)
	_, err := New(g).Compose(context.Background(), Request{
		Branch:  "main",
		Message: "bad",
		Writes:  []Write{{Path: "../etc/passwd", Content: []byte("x")}},
	})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

// racingStore moves the branch right before the composer's ref update.
type racingStore struct {
	*storage.Git
}

func (r racingStore) UpdateRef(ctx context.Context, branch, sha string, force bool) error {
	if _, err := r.Seed(ctx, branch, "concurrent edit", map[string][]byte{"other.txt": []byte("x")}); err != nil {
		return err
	}
	return r.Git.UpdateRef(ctx, branch, sha, force)
}

func TestComposeSurfacesConflict(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()

	_, err := New(racingStore{g}).Compose(ctx, Request{
		Branch:  "main",
		Message: "ours",
		Writes:  []Write{{Path: "templates/index.json", Content: []byte("[1]\n")}},
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if got := read(t, g, "templates/index.json"); got != "[]\n" {
		t.Errorf("index = %q, concurrent commit must survive", got)
	}
	if got := read(t, g, "other.txt"); got != "x" {
		t.Errorf("other.txt = %q", got)
	}
}

type failingTree struct {
	*storage.Git
}

func (failingTree) CreateTree(context.Context, string, []storage.Change) (string, error) {
	return "", &apperr.StoreError{Op: "create tree", StatusCode: 500, Err: errors.New("boom")}
}

func TestComposeFailureLeavesBranch(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()
	head, _ := g.GetRef(ctx, "main")

	_, err := New(failingTree{g}).Compose(ctx, Request{
		Branch:  "main",
		Message: "x",
		Writes:  []Write{{Path: "a.txt", Content: []byte("a")}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.StatusCode(err) != 500 {
		t.Errorf("status = %d, want 500", apperr.StatusCode(err))
	}
	after, _ := g.GetRef(ctx, "main")
	if after != head {
		t.Errorf("branch moved to %s", after)
	}
}

func TestComposePinnedParentConflicts(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()
	stale, _ := g.GetRef(ctx, "main")
	if _, err := g.Seed(ctx, "main", "moved", map[string][]byte{"b.txt": []byte("b")}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	_, err := New(g).Compose(ctx, Request{
		Branch:  "main",
		Parent:  stale,
		Message: "computed on stale head",
		Writes:  []Write{{Path: "templates/index.json", Content: []byte("[2]\n")}},
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestComposeChecksPathsWhenTreeIsTruncated(t *testing.T) {
	g := seeded(t)
	ctx := context.Background()
	head, _ := g.GetRef(ctx, "main")

	res, err := New(testutil.Truncating{Git: g}).Compose(ctx, Request{
		Branch:  "main",
		Message: "large repo",
		Writes: []Write{
			{Path: "templates/index.json", Content: []byte("[]\n")},
			{Path: "templates/old.webp", Delete: true},
			{Path: "templates/ghost.webp", Delete: true},
			{Path: "templates/new.webp", Content: []byte("new"), Blob: true},
		},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if res.Parent != head || res.NoOp {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Unchanged) != 1 || res.Unchanged[0] != "templates/index.json" {
		t.Errorf("unchanged = %v", res.Unchanged)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "templates/old.webp" {
		t.Errorf("deleted = %v", res.Deleted)
	}
	if len(res.Written) != 1 || res.Written[0] != "templates/new.webp" {
		t.Errorf("written = %v", res.Written)
	}
	if _, err := g.GetContent(ctx, "templates/old.webp", "main"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old.webp err = %v", err)
	}
	if got := read(t, g, "templates/new.webp"); got != "new" {
		t.Errorf("new.webp = %q", got)
	}
}
