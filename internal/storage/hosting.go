package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/starford/raido/internal/apperr"
)

// Pull request states. Merged is derived from a closed pull request with a
// merge time.
const (
	PullRequestOpen   = "open"
	PullRequestClosed = "closed"
	PullRequestMerged = "merged"
)

// PullRequest is a pull request against the template repository.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"status"`
	Draft     bool       `json:"draft"`
	URL       string     `json:"url"`
	Head      string     `json:"head"`
	HeadOwner string     `json:"headOwner,omitempty"`
	HeadSHA   string     `json:"headSha,omitempty"`
	Base      string     `json:"base"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	MergedAt  *time.Time `json:"mergedAt,omitempty"`
}

// PullRequestQuery filters ListPullRequests. Head is "owner:branch".
type PullRequestQuery struct {
	State   string
	Head    string
	Base    string
	Page    int
	PerPage int
}

// NewPullRequest opens a pull request.
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Repository describes a repository on the hosting service.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	Owner         string `json:"owner"`
	DefaultBranch string `json:"defaultBranch"`
	URL           string `json:"url"`
	Fork          bool   `json:"fork"`
	Parent        string `json:"parent,omitempty"`
}

// Comparison counts the commits between two refs.
type Comparison struct {
	Status       string `json:"status"`
	AheadBy      int    `json:"aheadBy"`
	BehindBy     int    `json:"behindBy"`
	TotalCommits int    `json:"totalCommits"`
}

// Hosting covers the collaboration features of the hosting service around
// the template repository: pull requests and forks.
type Hosting interface {
	// Viewer returns the login the credential acts as.
	Viewer(ctx context.Context) (string, error)
	ListPullRequests(ctx context.Context, q PullRequestQuery) ([]PullRequest, error)
	// CreatePullRequest fails with ErrInvalid when there is nothing to merge
	// or the host refuses the pull request.
	CreatePullRequest(ctx context.Context, pr NewPullRequest) (*PullRequest, error)
	// EditPullRequest changes the title and body; nil leaves a field as is.
	EditPullRequest(ctx context.Context, number int, title, body *string) (*PullRequest, error)
	// Fork returns owner's fork of the template repository, or ErrNotFound
	// when owner has none.
	Fork(ctx context.Context, owner string) (*Repository, error)
	// CreateFork forks the template repository for the viewer. The host may
	// still be copying it when this returns.
	CreateFork(ctx context.Context) (*Repository, error)
	// MergeUpstream fast-forwards or merges branch of owner's fork from the
	// template repository. It fails with ErrDiverged when the branches
	// diverged, with ErrForbidden when the credential may not touch
	// workflow files and with ErrNoChanges when the fork is up to date.
	MergeUpstream(ctx context.Context, owner, branch string) (string, error)
	// Compare compares base to head; head may be "owner:branch".
	Compare(ctx context.Context, base, head string) (*Comparison, error)
}

// HostingOpener opens the hosting service with a request credential.
type HostingOpener interface {
	OpenHosting(ctx context.Context, credential string) (Hosting, error)
}

// Viewer implements Hosting.
func (g *GitHub) Viewer(ctx context.Context) (string, error) {
	var u *github.User
	err := g.read(ctx, "get user", func() (*github.Response, error) {
		r, resp, err := g.client.Users.Get(ctx, "")
		u = r
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return u.GetLogin(), nil
}

// ListPullRequests implements Hosting. Results are sorted by last update,
// newest first. A head without an owner is taken from the template
// repository.
func (g *GitHub) ListPullRequests(ctx context.Context, q PullRequestQuery) ([]PullRequest, error) {
	if q.Head != "" && !strings.Contains(q.Head, ":") {
		q.Head = g.owner + ":" + q.Head
	}
	opts := &github.PullRequestListOptions{
		State:       q.State,
		Head:        q.Head,
		Base:        q.Base,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: q.Page, PerPage: q.PerPage},
	}
	var prs []*github.PullRequest
	err := g.read(ctx, "list pulls", func() (*github.Response, error) {
		r, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, opts)
		prs = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := make([]PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, pullRequest(pr))
	}
	return out, nil
}

// CreatePullRequest implements Hosting.
func (g *GitHub) CreatePullRequest(ctx context.Context, in NewPullRequest) (*PullRequest, error) {
	pr, resp, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.Ptr(in.Title),
		Body:  github.Ptr(in.Body),
		Head:  github.Ptr(in.Head),
		Base:  github.Ptr(in.Base),
		Draft: github.Ptr(in.Draft),
	})
	if err != nil {
		if status := statusOf(resp, err); status == http.StatusUnprocessableEntity {
			return nil, &apperr.StoreError{Op: "create pull", StatusCode: status,
				Err: fmt.Errorf("%w: no commits between %s and %s, or a pull request already exists: %v", apperr.ErrInvalid, in.Base, in.Head, err)}
		}
		return nil, g.wrap("create pull", resp, err)
	}
	out := pullRequest(pr)
	return &out, nil
}

// EditPullRequest implements Hosting.
func (g *GitHub) EditPullRequest(ctx context.Context, number int, title, body *string) (*PullRequest, error) {
	op := fmt.Sprintf("edit pull %d", number)
	pr, resp, err := g.client.PullRequests.Edit(ctx, g.owner, g.repo, number, &github.PullRequest{Title: title, Body: body})
	if err != nil {
		return nil, g.wrap(op, resp, err)
	}
	out := pullRequest(pr)
	return &out, nil
}

// Fork implements Hosting. A same-named repository that is not a fork of
// the template repository does not count.
func (g *GitHub) Fork(ctx context.Context, owner string) (*Repository, error) {
	op := "get repo " + owner + "/" + g.repo
	var repo *github.Repository
	err := g.read(ctx, op, func() (*github.Response, error) {
		r, resp, err := g.client.Repositories.Get(ctx, owner, g.repo)
		repo = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := repository(repo)
	if !out.Fork || !strings.EqualFold(out.Parent, g.owner+"/"+g.repo) {
		return nil, &apperr.StoreError{Op: op,
			Err: fmt.Errorf("%w: %s is not a fork of %s/%s", apperr.ErrNotFound, out.FullName, g.owner, g.repo)}
	}
	return out, nil
}

// CreateFork implements Hosting. GitHub answers 202 while it copies the
// repository; that is a success.
func (g *GitHub) CreateFork(ctx context.Context) (*Repository, error) {
	repo, resp, err := g.client.Repositories.CreateFork(ctx, g.owner, g.repo, &github.RepositoryCreateForkOptions{})
	var accepted *github.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return nil, g.wrap("create fork", resp, err)
	}
	if repo == nil {
		repo = &github.Repository{}
	}
	return repository(repo), nil
}

// MergeUpstream implements Hosting.
func (g *GitHub) MergeUpstream(ctx context.Context, owner, branch string) (string, error) {
	op := "merge upstream " + owner + "/" + g.repo
	res, resp, err := g.client.Repositories.MergeUpstream(ctx, owner, g.repo, &github.RepoMergeUpstreamRequest{Branch: github.Ptr(branch)})
	if err == nil {
		return res.GetMergeType(), nil
	}
	switch status := statusOf(resp, err); status {
	case http.StatusConflict:
		return "", &apperr.StoreError{Op: op, StatusCode: status,
			Err: fmt.Errorf("%w: %s has diverged from upstream and needs a manual merge", apperr.ErrDiverged, branch)}
	case http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(err.Error()), "workflow") {
			return "", &apperr.StoreError{Op: op, StatusCode: status,
				Err: fmt.Errorf("%w: the credential may not update workflow files: %v", apperr.ErrForbidden, err)}
		}
		return "", &apperr.StoreError{Op: op, StatusCode: status,
			Err: fmt.Errorf("%w: %v", apperr.ErrNoChanges, err)}
	}
	return "", g.wrap(op, resp, err)
}

// Compare implements Hosting.
func (g *GitHub) Compare(ctx context.Context, base, head string) (*Comparison, error) {
	var cmp *github.CommitsComparison
	err := g.read(ctx, "compare "+base+"..."+head, func() (*github.Response, error) {
		r, resp, err := g.client.Repositories.CompareCommits(ctx, g.owner, g.repo, base, head, &github.ListOptions{PerPage: 1})
		cmp = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Status:       cmp.GetStatus(),
		AheadBy:      cmp.GetAheadBy(),
		BehindBy:     cmp.GetBehindBy(),
		TotalCommits: cmp.GetTotalCommits(),
	}, nil
}

func pullRequest(pr *github.PullRequest) PullRequest {
	out := PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		State:     pr.GetState(),
		Draft:     pr.GetDraft(),
		URL:       pr.GetHTMLURL(),
		Head:      pr.GetHead().GetRef(),
		HeadOwner: pr.GetHead().GetUser().GetLogin(),
		HeadSHA:   pr.GetHead().GetSHA(),
		Base:      pr.GetBase().GetRef(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}
	if pr.MergedAt != nil {
		t := pr.GetMergedAt().Time
		out.MergedAt = &t
	}
	if out.MergedAt != nil || pr.GetMerged() {
		out.State = PullRequestMerged
	}
	return out
}

func repository(r *github.Repository) *Repository {
	return &Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Owner:         r.GetOwner().GetLogin(),
		DefaultBranch: r.GetDefaultBranch(),
		URL:           r.GetHTMLURL(),
		Fork:          r.GetFork(),
		Parent:        r.GetParent().GetFullName(),
	}
}
