package api

import (
	"context"
	"encoding/json"

	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/templateservice"
)

// Service is the template service the handlers drive.
type Service interface {
	CreateTemplate(ctx context.Context, actor templateservice.Actor, req templateservice.CreateRequest) (*templateservice.Result, error)
	UpdateTemplate(ctx context.Context, actor templateservice.Actor, req templateservice.UpdateRequest) (*templateservice.Result, error)
	ReorderTemplates(ctx context.Context, actor templateservice.Actor, req templateservice.ReorderRequest) (*templateservice.Result, error)
	ApplyTranslations(ctx context.Context, actor templateservice.Actor, req templateservice.TranslationsRequest) (*templateservice.Result, error)
	ReadTranslations(ctx context.Context, actor templateservice.Actor, branch string) (json.RawMessage, error)
	UpdateUsage(ctx context.Context, actor templateservice.Actor, req templateservice.UsageRequest) (*templateservice.Result, error)
	CreateBranch(ctx context.Context, actor templateservice.Actor, req templateservice.BranchRequest) (*templateservice.Result, error)
	ResetBranch(ctx context.Context, actor templateservice.Actor, req templateservice.ResetRequest) (*templateservice.Result, error)
	ReadIndex(ctx context.Context, actor templateservice.Actor, branch, locale string) (json.RawMessage, error)
	Locales(ctx context.Context, actor templateservice.Actor, branch string) ([]i18n.Locale, error)
	ListCommits(f journal.Filter) ([]journal.Entry, int, error)
	Translate(ctx context.Context, actor templateservice.Actor, texts []string, from, to string) ([]string, error)
	UpdateLogos(ctx context.Context, actor templateservice.Actor, req templateservice.LogosRequest) (*templateservice.Result, error)

	ListPullRequests(ctx context.Context, actor templateservice.Actor, q templateservice.PullRequestsQuery) ([]storage.PullRequest, error)
	CreatePullRequest(ctx context.Context, actor templateservice.Actor, req templateservice.PullRequestRequest) (*templateservice.PullRequestResult, error)
	UpdatePullRequest(ctx context.Context, actor templateservice.Actor, req templateservice.PullRequestUpdate) (*storage.PullRequest, error)
	ReviewBranch(ctx context.Context, actor templateservice.Actor, head string) (*templateservice.BranchReview, error)
	ForkStatus(ctx context.Context, actor templateservice.Actor) (*templateservice.ForkState, error)
	CreateFork(ctx context.Context, actor templateservice.Actor) (*storage.Repository, error)
	SyncFork(ctx context.Context, actor templateservice.Actor, branch string) (*templateservice.ForkSync, error)
	CompareFork(ctx context.Context, actor templateservice.Actor, owner, branch string) (*templateservice.ForkComparison, error)
}

var _ Service = (*templateservice.Service)(nil)
