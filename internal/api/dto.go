package api

import (
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/templateservice"
)

// ResultResponse wraps the outcome of a mutating operation.
type ResultResponse struct {
	Success bool                    `json:"success" example:"true"`
	Result  *templateservice.Result `json:"result"`
}

// ReorderBody is the request body for reordering a category.
type ReorderBody struct {
	Branch string   `json:"branch" example:"main"`
	Order  []string `json:"order" validate:"required"`
}

// ResetBody is the request body for resetting a branch.
type ResetBody struct {
	To     string `json:"to" example:"main" validate:"required"`
	Backup bool   `json:"backup"`
}

// TranslateRequest is the request body for machine translation.
type TranslateRequest struct {
	Texts []string `json:"texts" validate:"required"`
	From  string   `json:"from" example:"en" validate:"required"`
	To    string   `json:"to" example:"fr" validate:"required"`
}

// TranslateResult carries translated texts in request order.
type TranslateResult struct {
	Translations []string `json:"translations"`
}

// CommitList is a page of journaled commits.
type CommitList struct {
	Entries []journal.Entry `json:"entries"`
	Total   int             `json:"total" example:"42"`
}

// LocaleList lists the locales in effect on a branch.
type LocaleList struct {
	Locales []i18n.Locale `json:"locales"`
}

// PullRequestEdit is the request body for editing a pull request.
type PullRequestEdit struct {
	Title *string `json:"title" example:"Add Flux portrait template"`
	Body  *string `json:"body"`
}

// ForkSyncBody is the request body for syncing a fork.
type ForkSyncBody struct {
	Branch string `json:"branch" example:"main"`
}

// PullRequestList is a page of pull requests.
type PullRequestList struct {
	PullRequests []storage.PullRequest `json:"pullRequests"`
	Page         int                   `json:"page" example:"1"`
	PerPage      int                   `json:"perPage" example:"30"`
}
