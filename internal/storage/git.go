package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	gitstorage "github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/starford/raido/internal/apperr"
)

// Git is an ObjectStore over a local go-git repository, either in memory or
// a bare repository on disk. It backs development setups and tests.
type Git struct {
	repo      *git.Repository
	commitURL string
	author    object.Signature
	now       func() time.Time

	refMu sync.Mutex
}

// GitOption configures a Git store.
type GitOption func(*Git)

// WithAuthor sets the identity recorded on commits.
func WithAuthor(name, email string) GitOption {
	return func(g *Git) { g.author = object.Signature{Name: name, Email: email} }
}

// WithGitCommitURL sets the commit link format; "{sha}" is replaced.
func WithGitCommitURL(tmpl string) GitOption {
	return func(g *Git) {
		if tmpl != "" {
			g.commitURL = tmpl
		}
	}
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) GitOption {
	return func(g *Git) { g.now = now }
}

// NewMemoryGit returns an empty in-memory repository.
func NewMemoryGit(opts ...GitOption) (*Git, error) {
	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("storage: init memory repo: %w", err)
	}
	return newGit(repo, opts), nil
}

// OpenGit opens the bare repository at dir, creating it when absent.
func OpenGit(dir string, opts ...GitOption) (*Git, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, true)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open repo %s: %w", dir, err)
	}
	return newGit(repo, opts), nil
}

func newGit(repo *git.Repository, opts []GitOption) *Git {
	g := &Git{
		repo:      repo,
		commitURL: "git:{sha}",
		author:    object.Signature{Name: "raido", Email: "raido@localhost"},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seed commits files on top of branch, creating the branch with a root
// commit when it does not exist yet. It returns the new commit SHA.
func (g *Git) Seed(ctx context.Context, branch, message string, files map[string][]byte) (string, error) {
	var parent, base string
	head, err := g.GetRef(ctx, branch)
	switch {
	case err == nil:
		c, err := g.GetCommit(ctx, head)
		if err != nil {
			return "", err
		}
		parent, base = head, c.TreeSHA
	case !errors.Is(err, apperr.ErrNotFound):
		return "", err
	}

	changes := make([]Change, 0, len(files))
	for p, data := range files {
		changes = append(changes, Change{Path: p, Content: data})
	}
	tree, err := g.CreateTree(ctx, base, changes)
	if err != nil {
		return "", err
	}
	sha, err := g.writeCommit(tree, parent, message)
	if err != nil {
		return "", err
	}

	g.refMu.Lock()
	defer g.refMu.Unlock()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), plumbing.NewHash(sha))
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return "", &apperr.StoreError{Op: "seed " + branch, Err: err}
	}
	return sha, nil
}

// GetRef implements ObjectStore.
func (g *Git) GetRef(_ context.Context, branch string) (string, error) {
	ref, err := g.repo.Storer.Reference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return "", g.wrap("get ref "+branch, err)
	}
	return ref.Hash().String(), nil
}

// GetCommit implements ObjectStore.
func (g *Git) GetCommit(_ context.Context, sha string) (*Commit, error) {
	c, err := object.GetCommit(g.repo.Storer, plumbing.NewHash(sha))
	if err != nil {
		return nil, g.wrap("get commit "+sha, err)
	}
	out := &Commit{SHA: c.Hash.String(), TreeSHA: c.TreeHash.String()}
	for _, p := range c.ParentHashes {
		out.Parents = append(out.Parents, p.String())
	}
	return out, nil
}

// GetTree implements ObjectStore.
func (g *Git) GetTree(_ context.Context, sha string) ([]TreeEntry, error) {
	tree, err := object.GetTree(g.repo.Storer, plumbing.NewHash(sha))
	if err != nil {
		return nil, g.wrap("get tree "+sha, err)
	}
	var out []TreeEntry
	err = tree.Files().ForEach(func(f *object.File) error {
		out = append(out, TreeEntry{
			Path: f.Name,
			Mode: modeString(f.Mode),
			Type: "blob",
			SHA:  f.Hash.String(),
			Size: f.Size,
		})
		return nil
	})
	if err != nil {
		return nil, g.wrap("get tree "+sha, err)
	}
	return out, nil
}

// GetContent implements ObjectStore. ref is a branch name or a commit SHA.
func (g *Git) GetContent(ctx context.Context, path, ref string) (*Content, error) {
	commitSHA := ref
	if !isHash(ref) {
		var err error
		commitSHA, err = g.GetRef(ctx, strings.TrimPrefix(ref, "refs/heads/"))
		if err != nil {
			return nil, err
		}
	}
	c, err := object.GetCommit(g.repo.Storer, plumbing.NewHash(commitSHA))
	if err != nil {
		return nil, g.wrap("get content "+path, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, g.wrap("get content "+path, err)
	}
	f, err := tree.File(path)
	if err != nil {
		return nil, g.wrap("get content "+path, err)
	}
	r, err := f.Reader()
	if err != nil {
		return nil, g.wrap("get content "+path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, g.wrap("get content "+path, err)
	}
	return &Content{Data: data, SHA: f.Hash.String()}, nil
}

// CreateBlob implements ObjectStore.
func (g *Git) CreateBlob(_ context.Context, data []byte) (string, error) {
	h, err := g.writeBlob(data)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

func (g *Git) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := g.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, g.wrap("create blob", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, g.wrap("create blob", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, g.wrap("create blob", err)
	}
	h, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, g.wrap("create blob", err)
	}
	return h, nil
}

type treeFile struct {
	mode filemode.FileMode
	hash plumbing.Hash
}

// CreateTree implements ObjectStore. An empty baseTree starts from nothing.
func (g *Git) CreateTree(_ context.Context, baseTree string, changes []Change) (string, error) {
	files := map[string]treeFile{}
	if baseTree != "" {
		base, err := object.GetTree(g.repo.Storer, plumbing.NewHash(baseTree))
		if err != nil {
			return "", g.wrap("create tree", err)
		}
		err = base.Files().ForEach(func(f *object.File) error {
			files[f.Name] = treeFile{mode: f.Mode, hash: f.Hash}
			return nil
		})
		if err != nil {
			return "", g.wrap("create tree", err)
		}
	}

	for _, c := range changes {
		if c.Delete {
			delete(files, c.Path)
			continue
		}
		mode := filemode.Regular
		if c.Mode != "" {
			m, err := filemode.New(c.Mode)
			if err != nil {
				return "", &apperr.StoreError{Op: "create tree", StatusCode: http.StatusUnprocessableEntity,
					Err: apperr.Invalid("mode %q for %s", c.Mode, c.Path)}
			}
			mode = m
		}
		hash := plumbing.NewHash(c.BlobSHA)
		if c.BlobSHA == "" {
			h, err := g.writeBlob(c.Content)
			if err != nil {
				return "", err
			}
			hash = h
		} else if _, err := g.repo.Storer.EncodedObject(plumbing.BlobObject, hash); err != nil {
			return "", g.wrap("create tree", err)
		}
		files[c.Path] = treeFile{mode: mode, hash: hash}
	}

	root := &dirNode{}
	for p, f := range files {
		if !root.insert(strings.Split(p, "/"), f) {
			return "", &apperr.StoreError{Op: "create tree", StatusCode: http.StatusUnprocessableEntity,
				Err: apperr.Invalid("%s conflicts with a file of the same name on its path", p)}
		}
	}
	h, err := g.writeTree(root)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

type dirNode struct {
	files map[string]treeFile
	dirs  map[string]*dirNode
}

// insert adds f at parts. It reports false when a name would be both a
// file and a directory.
func (n *dirNode) insert(parts []string, f treeFile) bool {
	if len(parts) == 1 {
		if _, ok := n.dirs[parts[0]]; ok {
			return false
		}
		if n.files == nil {
			n.files = map[string]treeFile{}
		}
		n.files[parts[0]] = f
		return true
	}
	if _, ok := n.files[parts[0]]; ok {
		return false
	}
	if n.dirs == nil {
		n.dirs = map[string]*dirNode{}
	}
	child, ok := n.dirs[parts[0]]
	if !ok {
		child = &dirNode{}
		n.dirs[parts[0]] = child
	}
	return child.insert(parts[1:], f)
}

func (g *Git) writeTree(n *dirNode) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, f := range n.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: f.mode, Hash: f.hash})
	}
	for name, child := range n.dirs {
		h, err := g.writeTree(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	// Git orders directories as if their name ended in "/".
	sort.Slice(entries, func(i, j int) bool {
		return sortName(entries[i]) < sortName(entries[j])
	})

	obj := g.repo.Storer.NewEncodedObject()
	if err := (&object.Tree{Entries: entries}).Encode(obj); err != nil {
		return plumbing.ZeroHash, g.wrap("create tree", err)
	}
	h, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, g.wrap("create tree", err)
	}
	return h, nil
}

func sortName(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// CreateCommit implements ObjectStore.
func (g *Git) CreateCommit(_ context.Context, tree, parent, message string) (string, error) {
	if _, err := object.GetTree(g.repo.Storer, plumbing.NewHash(tree)); err != nil {
		return "", g.wrap("create commit", err)
	}
	if _, err := object.GetCommit(g.repo.Storer, plumbing.NewHash(parent)); err != nil {
		return "", g.wrap("create commit", err)
	}
	return g.writeCommit(tree, parent, message)
}

func (g *Git) writeCommit(tree, parent, message string) (string, error) {
	sig := g.author
	sig.When = g.now()
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  plumbing.NewHash(tree),
	}
	if parent != "" {
		c.ParentHashes = []plumbing.Hash{plumbing.NewHash(parent)}
	}
	obj := g.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return "", g.wrap("create commit", err)
	}
	h, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", g.wrap("create commit", err)
	}
	return h.String(), nil
}

// UpdateRef implements ObjectStore.
func (g *Git) UpdateRef(_ context.Context, branch, sha string, force bool) error {
	g.refMu.Lock()
	defer g.refMu.Unlock()

	name := plumbing.NewBranchReferenceName(branch)
	op := "update ref " + branch
	cur, err := g.repo.Storer.Reference(name)
	if err != nil {
		return g.wrap(op, err)
	}
	next := plumbing.NewHashReference(name, plumbing.NewHash(sha))
	if force {
		if err := g.repo.Storer.SetReference(next); err != nil {
			return g.wrap(op, err)
		}
		return nil
	}

	if cur.Hash() != next.Hash() {
		oldCommit, err := object.GetCommit(g.repo.Storer, cur.Hash())
		if err != nil {
			return g.wrap(op, err)
		}
		newCommit, err := object.GetCommit(g.repo.Storer, next.Hash())
		if err != nil {
			return g.wrap(op, err)
		}
		ff, err := oldCommit.IsAncestor(newCommit)
		if err != nil {
			return g.wrap(op, err)
		}
		if !ff {
			return &apperr.StoreError{Op: op, StatusCode: http.StatusUnprocessableEntity,
				Err: fmt.Errorf("%w: update is not a fast forward", apperr.ErrConflict)}
		}
	}
	if err := g.repo.Storer.CheckAndSetReference(next, cur); err != nil {
		return g.wrap(op, err)
	}
	return nil
}

// CreateRef implements ObjectStore.
func (g *Git) CreateRef(_ context.Context, branch, sha string) error {
	g.refMu.Lock()
	defer g.refMu.Unlock()

	name := plumbing.NewBranchReferenceName(branch)
	op := "create ref " + branch
	if _, err := g.repo.Storer.Reference(name); err == nil {
		return &apperr.StoreError{Op: op, StatusCode: http.StatusUnprocessableEntity,
			Err: fmt.Errorf("%w: branch %s", apperr.ErrAlreadyExists, branch)}
	}
	if _, err := object.GetCommit(g.repo.Storer, plumbing.NewHash(sha)); err != nil {
		return g.wrap(op, err)
	}
	if err := g.repo.Storer.SetReference(plumbing.NewHashReference(name, plumbing.NewHash(sha))); err != nil {
		return g.wrap(op, err)
	}
	return nil
}

// CommitURL implements ObjectStore.
func (g *Git) CommitURL(sha string) string {
	return strings.ReplaceAll(g.commitURL, "{sha}", sha)
}

func (g *Git) wrap(op string, err error) error {
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, object.ErrFileNotFound):
		return &apperr.StoreError{Op: op, StatusCode: http.StatusNotFound, Err: fmt.Errorf("%w: %v", apperr.ErrNotFound, err)}
	case errors.Is(err, gitstorage.ErrReferenceHasChanged):
		return &apperr.StoreError{Op: op, StatusCode: http.StatusConflict, Err: fmt.Errorf("%w: %v", apperr.ErrConflict, err)}
	}
	return &apperr.StoreError{Op: op, Err: err}
}

func modeString(m filemode.FileMode) string {
	return strconv.FormatUint(uint64(m), 8)
}

func isHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// GitOpener hands out a shared Git store regardless of credential.
type GitOpener struct {
	Store *Git
}

// Open implements Opener.
func (o GitOpener) Open(context.Context, string) (ObjectStore, error) {
	return o.Store, nil
}
