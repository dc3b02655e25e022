package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/templateservice"
)

// UpdateLogos handles PUT /api/logos.
//
//	@Summary		Replace the provider logo mapping and upload or remove logo files
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			body	body		templateservice.LogosRequest	true	"Logos"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/logos [put]
func (h *Handler) UpdateLogos(w http.ResponseWriter, r *http.Request) {
	var req templateservice.LogosRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update logos", err)
		return
	}
	res, err := h.svc.UpdateLogos(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "update logos", res, err)
}

// ListPullRequests handles GET /api/pulls.
//
//	@Summary		List pull requests, most recently updated first
//	@Tags			pulls
//	@Produce		json
//	@Param			state		query		string	false	"open, closed, merged or all"
//	@Param			page		query		int		false	"Page"
//	@Param			per_page	query		int		false	"Page size"
//	@Success		200			{object}	PullRequestList
//	@Failure		401			{object}	errResponse
//	@Failure		501			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pulls [get]
func (h *Handler) ListPullRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	query := templateservice.PullRequestsQuery{State: q.Get("state"), Page: page, PerPage: perPage}
	prs, err := h.svc.ListPullRequests(r.Context(), actorFrom(r.Context()), query)
	if err != nil {
		writeError(w, r, "list pulls", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(PullRequestList{PullRequests: prs, Page: page, PerPage: perPage}))
}

// CreatePullRequest handles POST /api/pulls.
//
//	@Summary		Open a pull request, or return the one already open for the branch
//	@Tags			pulls
//	@Accept			json
//	@Produce		json
//	@Param			body	body		templateservice.PullRequestRequest	true	"Pull request"
//	@Success		200		{object}	okResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pulls [post]
func (h *Handler) CreatePullRequest(w http.ResponseWriter, r *http.Request) {
	var req templateservice.PullRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create pull", err)
		return
	}
	res, err := h.svc.CreatePullRequest(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, "create pull", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// UpdatePullRequest handles PATCH /api/pulls/{number}.
//
//	@Summary		Edit the title or body of a pull request
//	@Tags			pulls
//	@Accept			json
//	@Produce		json
//	@Param			number	path		int				true	"Pull request number"
//	@Param			body	body		PullRequestEdit	true	"Changes"
//	@Success		200		{object}	okResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pulls/{number} [patch]
func (h *Handler) UpdatePullRequest(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("pull request number must be a number"))
		return
	}
	var body PullRequestEdit
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, "update pull", err)
		return
	}
	pr, err := h.svc.UpdatePullRequest(r.Context(), actorFrom(r.Context()), templateservice.PullRequestUpdate{
		Number: number,
		Title:  body.Title,
		Body:   body.Body,
	})
	if err != nil {
		writeError(w, r, "update pull", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(pr))
}

// ReviewBranch handles GET /api/pulls/review.
//
//	@Summary		Latest pull request of a branch and its distance from the default branch
//	@Tags			pulls
//	@Produce		json
//	@Param			branch	query		string	true	"Branch or owner:branch"
//	@Success		200		{object}	okResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pulls/review [get]
func (h *Handler) ReviewBranch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ReviewBranch(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("branch"))
	if err != nil {
		writeError(w, r, "review branch", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// ForkStatus handles GET /api/fork.
//
//	@Summary		Tell whether the caller has a fork of the template repository
//	@Tags			forks
//	@Produce		json
//	@Success		200	{object}	okResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fork [get]
func (h *Handler) ForkStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ForkStatus(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, "fork status", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// CreateFork handles POST /api/fork.
//
//	@Summary		Fork the template repository for the caller
//	@Tags			forks
//	@Produce		json
//	@Success		200	{object}	okResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fork [post]
func (h *Handler) CreateFork(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CreateFork(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, "create fork", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// SyncFork handles POST /api/fork/sync.
//
//	@Summary		Bring a branch of the caller's fork up to date with upstream
//	@Tags			forks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ForkSyncBody	false	"Branch"
//	@Success		200		{object}	okResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fork/sync [post]
func (h *Handler) SyncFork(w http.ResponseWriter, r *http.Request) {
	var body ForkSyncBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, "sync fork", err)
			return
		}
	}
	res, err := h.svc.SyncFork(r.Context(), actorFrom(r.Context()), body.Branch)
	if err != nil {
		writeError(w, r, "sync fork", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// CompareFork handles GET /api/fork/compare.
//
//	@Summary		Compare a fork branch with the default branch upstream
//	@Tags			forks
//	@Produce		json
//	@Param			owner	query		string	false	"Fork owner, the caller by default"
//	@Param			branch	query		string	false	"Fork branch"
//	@Success		200		{object}	okResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/fork/compare [get]
func (h *Handler) CompareFork(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.CompareFork(r.Context(), actorFrom(r.Context()), q.Get("owner"), q.Get("branch"))
	if err != nil {
		writeError(w, r, "compare fork", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}
