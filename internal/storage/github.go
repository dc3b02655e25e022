package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/starford/raido/internal/apperr"
)

const defaultRetryWindow = 10 * time.Second

// GitHub is an ObjectStore backed by the GitHub Git Data API.
type GitHub struct {
	client      *github.Client
	owner       string
	repo        string
	commitURL   string
	retryWindow time.Duration
	logger      *slog.Logger
}

// GitHubOption configures a GitHub store.
type GitHubOption func(*GitHub)

// WithRetryWindow bounds how long idempotent reads are retried.
func WithRetryWindow(d time.Duration) GitHubOption {
	return func(g *GitHub) { g.retryWindow = d }
}

// WithCommitURLTemplate sets the commit link format; "{sha}" is replaced.
func WithCommitURLTemplate(tmpl string) GitHubOption {
	return func(g *GitHub) {
		if tmpl != "" {
			g.commitURL = tmpl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GitHubOption {
	return func(g *GitHub) { g.logger = l }
}

// NewGitHub wraps an API client for one repository.
func NewGitHub(client *github.Client, owner, repo string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		client:      client,
		owner:       owner,
		repo:        repo,
		commitURL:   fmt.Sprintf("https://github.com/%s/%s/commit/{sha}", owner, repo),
		retryWindow: defaultRetryWindow,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetRef implements ObjectStore.
func (g *GitHub) GetRef(ctx context.Context, branch string) (string, error) {
	var ref *github.Reference
	err := g.read(ctx, "get ref "+branch, func() (*github.Response, error) {
		r, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+branch)
		ref = r
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return ref.GetObject().GetSHA(), nil
}

// GetCommit implements ObjectStore.
func (g *GitHub) GetCommit(ctx context.Context, sha string) (*Commit, error) {
	var c *github.Commit
	err := g.read(ctx, "get commit "+sha, func() (*github.Response, error) {
		r, resp, err := g.client.Git.GetCommit(ctx, g.owner, g.repo, sha)
		c = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := &Commit{SHA: c.GetSHA(), TreeSHA: c.GetTree().GetSHA()}
	for _, p := range c.Parents {
		out.Parents = append(out.Parents, p.GetSHA())
	}
	return out, nil
}

// GetTree implements ObjectStore.
func (g *GitHub) GetTree(ctx context.Context, sha string) ([]TreeEntry, error) {
	var tree *github.Tree
	err := g.read(ctx, "get tree "+sha, func() (*github.Response, error) {
		r, resp, err := g.client.Git.GetTree(ctx, g.owner, g.repo, sha, true)
		tree = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		g.logger.Warn("github: tree listing truncated", slog.String("tree", sha), slog.Int("entries", len(tree.Entries)))
		return nil, &apperr.StoreError{Op: "get tree " + sha, Err: ErrTreeTruncated}
	}
	out := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() == "tree" {
			continue
		}
		out = append(out, TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
			Size: int64(e.GetSize()),
		})
	}
	return out, nil
}

// GetContent implements ObjectStore.
func (g *GitHub) GetContent(ctx context.Context, path, ref string) (*Content, error) {
	var file *github.RepositoryContent
	err := g.read(ctx, "get content "+path, func() (*github.Response, error) {
		f, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
			&github.RepositoryContentGetOptions{Ref: ref})
		file = f
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, &apperr.StoreError{Op: "get content " + path, Err: fmt.Errorf("%w: %s is a directory", apperr.ErrNotFound, path)}
	}

	// Files above the contents API size limit come back without inline data.
	if file.GetEncoding() == "none" || (file.Content == nil && file.GetSize() > 0) {
		var data []byte
		err := g.read(ctx, "get blob "+file.GetSHA(), func() (*github.Response, error) {
			d, resp, err := g.client.Git.GetBlobRaw(ctx, g.owner, g.repo, file.GetSHA())
			data = d
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		return &Content{Data: data, SHA: file.GetSHA()}, nil
	}

	text, err := file.GetContent()
	if err != nil {
		return nil, &apperr.StoreError{Op: "decode content " + path, Err: err}
	}
	return &Content{Data: []byte(text), SHA: file.GetSHA()}, nil
}

// CreateBlob implements ObjectStore.
func (g *GitHub) CreateBlob(ctx context.Context, data []byte) (string, error) {
	blob, resp, err := g.client.Git.CreateBlob(ctx, g.owner, g.repo, &github.Blob{
		Content:  github.Ptr(base64.StdEncoding.EncodeToString(data)),
		Encoding: github.Ptr("base64"),
	})
	if err != nil {
		return "", g.wrap("create blob", resp, err)
	}
	return blob.GetSHA(), nil
}

// CreateTree implements ObjectStore. Deletions are sent as entries with a
// null SHA.
func (g *GitHub) CreateTree(ctx context.Context, baseTree string, changes []Change) (string, error) {
	entries := make([]*github.TreeEntry, 0, len(changes))
	for _, c := range changes {
		mode := c.Mode
		if mode == "" {
			mode = ModeFile
		}
		e := &github.TreeEntry{
			Path: github.Ptr(c.Path),
			Mode: github.Ptr(mode),
			Type: github.Ptr("blob"),
		}
		switch {
		case c.Delete:
		case c.BlobSHA != "":
			e.SHA = github.Ptr(c.BlobSHA)
		default:
			e.Content = github.Ptr(string(c.Content))
		}
		entries = append(entries, e)
	}
	tree, resp, err := g.client.Git.CreateTree(ctx, g.owner, g.repo, baseTree, entries)
	if err != nil {
		return "", g.wrap("create tree", resp, err)
	}
	return tree.GetSHA(), nil
}

// CreateCommit implements ObjectStore.
func (g *GitHub) CreateCommit(ctx context.Context, tree, parent, message string) (string, error) {
	c, resp, err := g.client.Git.CreateCommit(ctx, g.owner, g.repo, &github.Commit{
		Message: github.Ptr(message),
		Tree:    &github.Tree{SHA: github.Ptr(tree)},
		Parents: []*github.Commit{{SHA: github.Ptr(parent)}},
	}, nil)
	if err != nil {
		return "", g.wrap("create commit", resp, err)
	}
	return c.GetSHA(), nil
}

// UpdateRef implements ObjectStore.
func (g *GitHub) UpdateRef(ctx context.Context, branch, sha string, force bool) error {
	_, resp, err := g.client.Git.UpdateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	}, force)
	if err == nil {
		return nil
	}
	status := statusOf(resp, err)
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		return &apperr.StoreError{Op: "update ref " + branch, StatusCode: status,
			Err: fmt.Errorf("%w: branch %s moved: %v", apperr.ErrConflict, branch, err)}
	}
	return g.wrap("update ref "+branch, resp, err)
}

// CreateRef implements ObjectStore.
func (g *GitHub) CreateRef(ctx context.Context, branch, sha string) error {
	_, resp, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	})
	if err == nil {
		return nil
	}
	if status := statusOf(resp, err); status == http.StatusUnprocessableEntity {
		return &apperr.StoreError{Op: "create ref " + branch, StatusCode: status,
			Err: fmt.Errorf("%w: branch %s: %v", apperr.ErrAlreadyExists, branch, err)}
	}
	return g.wrap("create ref "+branch, resp, err)
}

// CommitURL implements ObjectStore.
func (g *GitHub) CommitURL(sha string) string {
	return strings.ReplaceAll(g.commitURL, "{sha}", sha)
}

// read runs an idempotent call, retrying transient failures with
// exponential backoff.
func (g *GitHub) read(ctx context.Context, op string, call func() (*github.Response, error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = g.retryWindow
	return backoff.Retry(func() error {
		resp, err := call()
		if err == nil {
			return nil
		}
		wrapped := g.wrap(op, resp, err)
		if !retryable(resp, err) {
			return backoff.Permanent(wrapped)
		}
		g.logger.Debug("github: retrying read", slog.String("op", op), slog.String("error", err.Error()))
		return wrapped
	}, backoff.WithContext(bo, ctx))
}

func (g *GitHub) wrap(op string, resp *github.Response, err error) error {
	status := statusOf(resp, err)
	inner := err
	switch status {
	case http.StatusNotFound:
		inner = fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case http.StatusUnauthorized:
		inner = fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	case http.StatusForbidden:
		var rl *github.RateLimitError
		if !errors.As(err, &rl) {
			inner = fmt.Errorf("%w: %v", apperr.ErrForbidden, err)
		}
	}
	return &apperr.StoreError{Op: op, StatusCode: status, Err: inner}
}

func statusOf(resp *github.Response, err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}

func retryable(resp *github.Response, err error) bool {
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return false
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return true
	}
	status := statusOf(resp, err)
	return status == 0 || status >= 500
}

// GitHubOpener opens a GitHub store per request credential.
type GitHubOpener struct {
	Owner       string
	Repo        string
	BaseURL     string
	ServerToken string
	CommitURL   string
	Logger      *slog.Logger
}

// Open implements Opener.
func (o *GitHubOpener) Open(ctx context.Context, credential string) (ObjectStore, error) {
	return o.store(ctx, credential)
}

// OpenHosting implements HostingOpener.
func (o *GitHubOpener) OpenHosting(ctx context.Context, credential string) (Hosting, error) {
	return o.store(ctx, credential)
}

func (o *GitHubOpener) store(ctx context.Context, credential string) (*GitHub, error) {
	token := credential
	if token == "" {
		token = o.ServerToken
	}
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(context.WithoutCancel(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)
	if o.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(o.BaseURL, o.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("storage: github base url: %w", err)
		}
	}
	opts := []GitHubOption{WithCommitURLTemplate(o.CommitURL)}
	if o.Logger != nil {
		opts = append(opts, WithLogger(o.Logger))
	}
	return NewGitHub(client, o.Owner, o.Repo, opts...), nil
}
