package templateservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
)

// CreateBranch creates a branch at the head of another branch.
func (s *Service) CreateBranch(ctx context.Context, actor Actor, req BranchRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	store, err := s.open(ctx, actor, true)
	if err != nil {
		return nil, err
	}
	from := s.branchOrDefault(req.From)
	sha, err := store.GetRef(ctx, from)
	if err != nil {
		return nil, err
	}
	if err := store.CreateRef(ctx, req.Name, sha); err != nil {
		return nil, err
	}
	r := &Result{
		Operation: "create_branch",
		Branch:    req.Name,
		Commit:    &Commit{SHA: sha, URL: store.CommitURL(sha)},
		Outcomes:  []Outcome{{Component: ComponentBranch, Path: "refs/heads/" + req.Name, Status: StatusUpdated, Reason: "from " + from}},
		Warnings:  []string{},
	}
	s.record(actor, r)
	return r, nil
}

// ResetBranch force-moves a branch to the head of another branch. It is the
// only operation that rewrites history and must be enabled explicitly.
func (s *Service) ResetBranch(ctx context.Context, actor Actor, req ResetRequest) (*Result, error) {
	if !s.settings.BranchResetEnabled {
		return nil, fmt.Errorf("%w: branch reset is disabled", apperr.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	store, err := s.open(ctx, actor, true)
	if err != nil {
		return nil, err
	}
	target, err := store.GetRef(ctx, req.To)
	if err != nil {
		return nil, err
	}
	current, err := store.GetRef(ctx, req.Branch)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Operation: "reset_branch",
		Branch:    req.Branch,
		Outcomes:  []Outcome{},
		Warnings:  []string{},
	}
	if req.Backup {
		backup := fmt.Sprintf("%s-backup-%s", req.Branch, s.now().UTC().Format("20060102-150405"))
		if err := store.CreateRef(ctx, backup, current); err != nil {
			return nil, fmt.Errorf("backup %s: %w", backup, err)
		}
		r.Outcomes = append(r.Outcomes, Outcome{Component: ComponentBranch, Path: "refs/heads/" + backup, Status: StatusUpdated, Reason: "backup of " + current})
	}
	ref := "refs/heads/" + req.Branch
	if current == target {
		r.NoOp = true
		r.Outcomes = append(r.Outcomes, Outcome{Component: ComponentBranch, Path: ref, Status: StatusUnchanged})
		s.record(actor, r)
		return r, nil
	}
	if err := store.UpdateRef(ctx, req.Branch, target, true); err != nil {
		return nil, err
	}
	s.logger.Warn("branch reset",
		slog.String("branch", req.Branch),
		slog.String("from", current),
		slog.String("to", target),
		slog.String("user", actor.UserID))
	r.Commit = &Commit{SHA: target, URL: store.CommitURL(target)}
	r.Outcomes = append(r.Outcomes, Outcome{Component: ComponentBranch, Path: ref, Status: StatusUpdated, Reason: "reset to " + req.To})
	s.record(actor, r)
	return r, nil
}
