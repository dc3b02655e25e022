// Package storage is the remote object store client: branch refs, commits,
// trees and blobs of a hosted git repository.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrTreeTruncated is returned by GetTree when the host cannot list the whole
// tree. Callers look up individual paths with GetContent instead.
var ErrTreeTruncated = errors.New("tree listing truncated")

// Git file modes used in tree entries.
const (
	ModeFile       = "100644"
	ModeExecutable = "100755"
)

// Commit is a commit object.
type Commit struct {
	SHA     string
	TreeSHA string
	Parents []string
}

// TreeEntry is a file in a recursively listed tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
	Size int64
}

// Content is a file read at a ref.
type Content struct {
	Data []byte
	SHA  string
}

// Change is one entry of a new tree. Exactly one of Content, BlobSHA or
// Delete is used: Content is stored inline, BlobSHA references a blob
// created beforehand, Delete removes the path from the base tree.
type Change struct {
	Path    string
	Mode    string
	Content []byte
	BlobSHA string
	Delete  bool
}

// ObjectStore is the capability set the commit composer drives.
type ObjectStore interface {
	// GetRef returns the commit SHA the branch points at.
	GetRef(ctx context.Context, branch string) (string, error)
	// GetCommit returns the tree and parents of a commit.
	GetCommit(ctx context.Context, sha string) (*Commit, error)
	// GetTree lists every file reachable from a tree, or fails with
	// ErrTreeTruncated when the listing would be incomplete.
	GetTree(ctx context.Context, sha string) ([]TreeEntry, error)
	// GetContent reads a file at a branch or commit; a missing file yields apperr.ErrNotFound.
	GetContent(ctx context.Context, path, ref string) (*Content, error)
	// CreateBlob stores data and returns the blob SHA.
	CreateBlob(ctx context.Context, data []byte) (string, error)
	// CreateTree creates a tree from base with changes applied.
	CreateTree(ctx context.Context, baseTree string, changes []Change) (string, error)
	// CreateCommit creates a commit with a single parent.
	CreateCommit(ctx context.Context, tree, parent, message string) (string, error)
	// UpdateRef moves a branch. Without force a non-fast-forward move yields apperr.ErrConflict.
	UpdateRef(ctx context.Context, branch, sha string, force bool) error
	// CreateRef creates a branch; an existing branch yields apperr.ErrAlreadyExists.
	CreateRef(ctx context.Context, branch, sha string) error
	// CommitURL returns a browsable URL for a commit.
	CommitURL(sha string) string
}

// Opener returns an object store acting with the given credential. An empty
// credential opens the store anonymously or with the server's own token.
type Opener interface {
	Open(ctx context.Context, credential string) (ObjectStore, error)
}

// CleanPath normalises a repository path and rejects any that is absolute or
// escapes the repository root.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: path escapes repository root: %s", p)
	}
	return cleaned, nil
}
