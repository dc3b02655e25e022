package templateservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/storage"
)

// Fork sync outcomes.
const (
	ForkSynced   = "synced"
	ForkUpToDate = "up_to_date"
)

// ForkState tells whether the caller has a fork of the template repository.
type ForkState struct {
	Login  string              `json:"login"`
	Exists bool                `json:"exists"`
	Fork   *storage.Repository `json:"fork,omitempty"`
}

// ForkSync reports a sync of a fork branch from upstream.
type ForkSync struct {
	Owner     string `json:"owner"`
	Branch    string `json:"branch"`
	Status    string `json:"status"`
	MergeType string `json:"mergeType,omitempty"`
}

// ForkComparison compares a fork branch with the default branch upstream.
type ForkComparison struct {
	storage.Comparison
	Owner      string `json:"owner"`
	Branch     string `json:"branch"`
	IsBehind   bool   `json:"isBehind"`
	IsAhead    bool   `json:"isAhead"`
	IsDiverged bool   `json:"isDiverged"`
}

// ForkStatus looks up the caller's fork.
func (s *Service) ForkStatus(ctx context.Context, actor Actor) (*ForkState, error) {
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	login, err := h.Viewer(ctx)
	if err != nil {
		return nil, err
	}
	fork, err := h.Fork(ctx, login)
	switch {
	case err == nil:
		return &ForkState{Login: login, Exists: true, Fork: fork}, nil
	case errors.Is(err, apperr.ErrNotFound):
		return &ForkState{Login: login}, nil
	default:
		return nil, err
	}
}

// CreateFork forks the template repository for the caller. The host returns
// the existing fork when there already is one.
func (s *Service) CreateFork(ctx context.Context, actor Actor) (*storage.Repository, error) {
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	fork, err := h.CreateFork(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fork created", slog.String("fork", fork.FullName), slog.String("user", actor.UserID))
	return fork, nil
}

// SyncFork brings a branch of the caller's fork up to date with the same
// branch upstream. An empty branch means the default branch.
func (s *Service) SyncFork(ctx context.Context, actor Actor, branch string) (*ForkSync, error) {
	if err := branchName(branch); err != nil {
		return nil, apperr.Invalid("branch: %v", err)
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	login, err := h.Viewer(ctx)
	if err != nil {
		return nil, err
	}
	out := &ForkSync{Owner: login, Branch: s.branchOrDefault(branch)}
	mergeType, err := h.MergeUpstream(ctx, login, out.Branch)
	switch {
	case err == nil:
		out.Status, out.MergeType = ForkSynced, mergeType
	case errors.Is(err, apperr.ErrNoChanges):
		out.Status = ForkUpToDate
	default:
		return nil, err
	}
	return out, nil
}

// CompareFork compares a fork branch with the default branch upstream. An
// empty owner means the caller.
func (s *Service) CompareFork(ctx context.Context, actor Actor, owner, branch string) (*ForkComparison, error) {
	if err := branchName(branch); err != nil {
		return nil, apperr.Invalid("branch: %v", err)
	}
	if owner != "" && !branchRe.MatchString(owner) {
		return nil, apperr.Invalid("owner: is not a valid login")
	}
	h, err := s.openHosting(ctx, actor)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		if owner, err = h.Viewer(ctx); err != nil {
			return nil, err
		}
	}
	branch = s.branchOrDefault(branch)
	cmp, err := h.Compare(ctx, s.settings.DefaultBranch, owner+":"+branch)
	if err != nil {
		return nil, err
	}
	return &ForkComparison{
		Comparison: *cmp,
		Owner:      owner,
		Branch:     branch,
		IsBehind:   cmp.BehindBy > 0,
		IsAhead:    cmp.AheadBy > 0,
		IsDiverged: cmp.AheadBy > 0 && cmp.BehindBy > 0,
	}, nil
}
