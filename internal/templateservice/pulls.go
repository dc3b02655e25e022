package templateservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/storage"
)

// PullRequestResult reports a pull request opened for a branch. Created is
// false when an open pull request for the head already existed.
type PullRequestResult struct {
	PullRequest storage.PullRequest `json:"pullRequest"`
	Created     bool                `json:"created"`
}

// BranchReview is the review state of a branch against the default branch.
type BranchReview struct {
	Branch      string               `json:"branch"`
	Base        string               `json:"base"`
	PullRequest *storage.PullRequest `json:"pullRequest,omitempty"`
	Comparison  *storage.Comparison  `json:"comparison,omitempty"`
}

func (s *Service) openHosting(ctx context.Context, actor Actor) (storage.Hosting, error) {
	if s.hosting == nil {
		return nil, fmt.Errorf("%w: the repository backend has no pull requests or forks", apperr.ErrUnsupported)
	}
	if actor.Anonymous() {
		return nil, fmt.Errorf("%w: sign in to use pull requests and forks", apperr.ErrUnauthorized)
	}
	return s.hosting.OpenHosting(ctx, actor.Credential)
}

// ListPullRequests pages the pull requests of the template repository,
// most recently updated first.
func (s *Service) ListPullRequests(ctx context.Context, actor Actor, q PullRequestsQuery) ([]storage.PullRequest, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	query := storage.PullRequestQuery{State: q.State, Page: q.Page, PerPage: q.PerPage}
	if query.State == "" {
		query.State = storage.PullRequestOpen
	}
	if query.PerPage == 0 {
		query.PerPage = 30
	}
	// The host only knows open and closed; merged is a closed subset.
	if q.State == storage.PullRequestMerged {
		query.State = storage.PullRequestClosed
	}
	prs, err := h.ListPullRequests(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]storage.PullRequest, 0, len(prs))
	for _, pr := range prs {
		switch q.State {
		case storage.PullRequestMerged:
			if pr.State != storage.PullRequestMerged {
				continue
			}
		case storage.PullRequestClosed:
			if pr.State == storage.PullRequestMerged {
				continue
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

// CreatePullRequest opens a pull request for a branch unless one is already
// open for it, in which case that one is returned.
func (s *Service) CreatePullRequest(ctx context.Context, actor Actor, req PullRequestRequest) (*PullRequestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	base := s.branchOrDefault(req.Base)
	if req.Head == base {
		return nil, apperr.Invalid("head and base are the same branch")
	}
	existing, err := h.ListPullRequests(ctx, storage.PullRequestQuery{State: storage.PullRequestOpen, Head: req.Head, Base: base, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &PullRequestResult{PullRequest: existing[0]}, nil
	}
	pr, err := h.CreatePullRequest(ctx, storage.NewPullRequest{
		Title: req.Title,
		Body:  req.Body,
		Head:  req.Head,
		Base:  base,
		Draft: req.Draft,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("pull request opened",
		slog.Int("number", pr.Number),
		slog.String("head", req.Head),
		slog.String("base", base),
		slog.String("user", actor.UserID))
	return &PullRequestResult{PullRequest: *pr, Created: true}, nil
}

// UpdatePullRequest changes the title or body of a pull request.
func (s *Service) UpdatePullRequest(ctx context.Context, actor Actor, req PullRequestUpdate) (*storage.PullRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	return h.EditPullRequest(ctx, req.Number, req.Title, req.Body)
}

// ReviewBranch reports the latest pull request of a branch and how far it is
// from the default branch. Head is a branch or "owner:branch".
func (s *Service) ReviewBranch(ctx context.Context, actor Actor, head string) (*BranchReview, error) {
	if err := headRef(head); err != nil || head == "" {
		return nil, apperr.Invalid("branch: must be a branch or owner:branch")
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := &BranchReview{Branch: head, Base: s.settings.DefaultBranch}
	prs, err := h.ListPullRequests(ctx, storage.PullRequestQuery{State: "all", Head: head, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(prs) > 0 {
		out.PullRequest = &prs[0]
	}
	cmp, err := h.Compare(ctx, out.Base, head)
	switch {
	case err == nil:
		out.Comparison = cmp
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return nil, err
	}
	return out, nil
}
