// Package commit turns a set of file writes into a single commit on a branch.
//
// The remote store has no transactions. Composing is a saga: resolve the
// branch head, upload blobs, build one tree on top of the head's tree,
// create one commit, then move the branch without force. The ref update is
// the only step other readers can observe, so every failure before it
// leaves the branch untouched.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/storage"
)

const defaultBlobConcurrency = 4

// Write is one file change. Binary assets set Blob so their bytes are
// uploaded as a blob before the tree is built; text documents travel
// inline in the tree request.
type Write struct {
	Path    string
	Content []byte
	Blob    bool
	Delete  bool
}

// Request is everything needed for one commit. Parent pins the commit the
// writes were computed against; when empty the current branch head is used.
type Request struct {
	Branch  string
	Parent  string
	Message string
	Writes  []Write
}

// Result describes the published commit. NoOp is set when every write
// matched the branch head and nothing was committed; SHA is then the
// unchanged head.
type Result struct {
	SHA       string   `json:"sha"`
	URL       string   `json:"url,omitempty"`
	Parent    string   `json:"parent"`
	NoOp      bool     `json:"noOp,omitempty"`
	Written   []string `json:"written,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// Composer drives an ObjectStore through the commit saga.
type Composer struct {
	store       storage.ObjectStore
	concurrency int
	logger      *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithBlobConcurrency bounds parallel blob uploads.
func WithBlobConcurrency(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// New returns a Composer over store.
func New(store storage.ObjectStore, opts ...Option) *Composer {
	c := &Composer{store: store, concurrency: defaultBlobConcurrency, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pending struct {
	write   Write
	blobSHA string
}

// Compose publishes req as one commit. A branch that moved since its head
// was read yields apperr.ErrConflict; the branch is never force-updated.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	writes, err := validate(req)
	if err != nil {
		return nil, err
	}

	head := req.Parent
	if head == "" {
		head, err = c.store.GetRef(ctx, req.Branch)
		if err != nil {
			return nil, fmt.Errorf("commit: resolve %s: %w", req.Branch, err)
		}
	}
	base, err := c.store.GetCommit(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("commit: read head: %w", err)
	}
	existing, err := c.existing(ctx, head, base.TreeSHA, writes)
	if err != nil {
		return nil, err
	}

	res := &Result{Parent: head}
	var todo []*pending
	for _, w := range writes {
		sha, ok := existing[w.Path]
		switch {
		case w.Delete && !ok:
			c.logger.Debug("commit: delete of absent path dropped", slog.String("path", w.Path))
			continue
		case w.Delete:
			res.Deleted = append(res.Deleted, w.Path)
		case ok && sha == checksum.BlobSHA(w.Content):
			res.Unchanged = append(res.Unchanged, w.Path)
			continue
		default:
			res.Written = append(res.Written, w.Path)
		}
		todo = append(todo, &pending{write: w})
	}
	if len(todo) == 0 {
		res.SHA = head
		res.NoOp = true
		return res, nil
	}

	if err := c.uploadBlobs(ctx, todo); err != nil {
		return nil, err
	}

	changes := make([]storage.Change, 0, len(todo))
	for _, p := range todo {
		ch := storage.Change{Path: p.write.Path, Mode: storage.ModeFile, Delete: p.write.Delete}
		if !p.write.Delete {
			if p.blobSHA != "" {
				ch.BlobSHA = p.blobSHA
			} else {
				ch.Content = p.write.Content
			}
		}
		changes = append(changes, ch)
	}

	tree, err := c.store.CreateTree(ctx, base.TreeSHA, changes)
	if err != nil {
		return nil, fmt.Errorf("commit: create tree: %w", err)
	}
	sha, err := c.store.CreateCommit(ctx, tree, head, req.Message)
	if err != nil {
		return nil, fmt.Errorf("commit: create commit: %w", err)
	}
	if err := c.store.UpdateRef(ctx, req.Branch, sha, false); err != nil {
		c.logger.Warn("commit: ref update rejected",
			slog.String("branch", req.Branch),
			slog.String("commit", sha),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("commit: update %s: %w", req.Branch, err)
	}

	res.SHA = sha
	res.URL = c.store.CommitURL(sha)
	c.logger.Info("commit: published",
		slog.String("branch", req.Branch),
		slog.String("commit", sha),
		slog.Int("files", len(todo)))
	return res, nil
}

// existing maps each path present at head to its blob SHA. When the tree is
// too large to list, only the written paths are looked up.
func (c *Composer) existing(ctx context.Context, head, tree string, writes []Write) (map[string]string, error) {
	entries, err := c.store.GetTree(ctx, tree)
	if err == nil {
		out := make(map[string]string, len(entries))
		for _, e := range entries {
			out[e.Path] = e.SHA
		}
		return out, nil
	}
	if !errors.Is(err, storage.ErrTreeTruncated) {
		return nil, fmt.Errorf("commit: read tree: %w", err)
	}

	c.logger.Info("commit: tree truncated, checking written paths one by one", slog.Int("paths", len(writes)))
	out := make(map[string]string, len(writes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, w := range writes {
		g.Go(func() error {
			content, err := c.store.GetContent(gctx, w.Path, head)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("commit: look up %s: %w", w.Path, err)
			}
			mu.Lock()
			out[w.Path] = content.SHA
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Composer) uploadBlobs(ctx context.Context, todo []*pending) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, p := range todo {
		if !p.write.Blob || p.write.Delete {
			continue
		}
		g.Go(func() error {
			sha, err := c.store.CreateBlob(gctx, p.write.Content)
			if err != nil {
				return fmt.Errorf("commit: upload %s: %w", p.write.Path, err)
			}
			p.blobSHA = sha
			return nil
		})
	}
	return g.Wait()
}

func validate(req Request) ([]Write, error) {
	if req.Branch == "" {
		return nil, apperr.Invalid("branch is required")
	}
	if req.Message == "" {
		return nil, apperr.Invalid("commit message is required")
	}
	if len(req.Writes) == 0 {
		return nil, apperr.Invalid("nothing to commit")
	}
	seen := make(map[string]bool, len(req.Writes))
	out := make([]Write, 0, len(req.Writes))
	for _, w := range req.Writes {
		p, err := storage.CleanPath(w.Path)
		if err != nil {
			return nil, apperr.Invalid("%v", err)
		}
		if seen[p] {
			return nil, apperr.Invalid("path %s written twice in one commit", p)
		}
		seen[p] = true
		w.Path = p
		out = append(out, w)
	}
	return out, nil
}
