package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/templateservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, op string, res *templateservice.Result, err error) {
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(res))
}

// CreateTemplate handles POST /api/templates.
//
//	@Summary		Create a template and publish every affected document in one commit
//	@Tags			templates
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			body	body		templateservice.CreateRequest	true	"Template to create"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates [post]
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateservice.CreateRequest
	if err := decodeTemplate(r, &req, map[string]*[]templateservice.File{
		"thumbnails":  &req.Thumbnails,
		"inputFiles":  &req.InputFiles,
		"outputFiles": &req.OutputFiles,
	}); err != nil {
		writeError(w, r, "create template", err)
		return
	}
	res, err := h.svc.CreateTemplate(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "create template", res, err)
}

// UpdateTemplate handles PUT /api/templates/{name}.
//
//	@Summary		Update a template's metadata, workflow and assets
//	@Tags			templates
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			name	path		string							true	"Template name"
//	@Param			body	body		templateservice.UpdateRequest	true	"Changes"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/{name} [put]
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateservice.UpdateRequest
	if err := decodeTemplate(r, &req, map[string]*[]templateservice.File{
		"thumbnails":  &req.Thumbnails,
		"inputFiles":  &req.InputFiles,
		"outputFiles": &req.OutputFiles,
	}); err != nil {
		writeError(w, r, "update template", err)
		return
	}
	req.Name = chi.URLParam(r, "name")
	res, err := h.svc.UpdateTemplate(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "update template", res, err)
}

// ReorderTemplates handles POST /api/categories/{index}/order.
//
//	@Summary		Set the template order of a category in every index
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int			true	"Category index"
//	@Param			body	body		ReorderBody	true	"New order"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{index}/order [post]
func (h *Handler) ReorderTemplates(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("category index must be a number"))
		return
	}
	var body ReorderBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, "reorder", err)
		return
	}
	res, err := h.svc.ReorderTemplates(r.Context(), actorFrom(r.Context()), templateservice.ReorderRequest{
		Branch:   body.Branch,
		Category: idx,
		Order:    body.Order,
	})
	h.reply(w, r, "reorder", res, err)
}

// ReadTranslations handles GET /api/i18n.
//
//	@Summary		Read the translation memory
//	@Tags			i18n
//	@Produce		json
//	@Param			branch	query		string	false	"Branch"
//	@Success		200		{object}	okResponse
//	@Router			/i18n [get]
func (h *Handler) ReadTranslations(w http.ResponseWriter, r *http.Request) {
	raw, err := h.svc.ReadTranslations(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("branch"))
	if err != nil {
		writeError(w, r, "read translations", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(raw))
}

// ApplyTranslations handles PUT /api/i18n.
//
//	@Summary		Store the translation memory and apply it to every locale index
//	@Tags			i18n
//	@Accept			json
//	@Produce		json
//	@Param			body	body		templateservice.TranslationsRequest	true	"Translation memory"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/i18n [put]
func (h *Handler) ApplyTranslations(w http.ResponseWriter, r *http.Request) {
	var req templateservice.TranslationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "apply translations", err)
		return
	}
	res, err := h.svc.ApplyTranslations(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "apply translations", res, err)
}

// UpdateUsage handles POST /api/usage.
//
//	@Summary		Set usage counts of many templates
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			body	body		templateservice.UsageRequest	true	"Usage by template name"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/usage [post]
func (h *Handler) UpdateUsage(w http.ResponseWriter, r *http.Request) {
	var req templateservice.UsageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update usage", err)
		return
	}
	res, err := h.svc.UpdateUsage(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "update usage", res, err)
}

// CreateBranch handles POST /api/branches.
//
//	@Summary		Create a branch from another branch's head
//	@Tags			branches
//	@Accept			json
//	@Produce		json
//	@Param			body	body		templateservice.BranchRequest	true	"Branch"
//	@Success		200		{object}	ResultResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/branches [post]
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req templateservice.BranchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create branch", err)
		return
	}
	res, err := h.svc.CreateBranch(r.Context(), actorFrom(r.Context()), req)
	h.reply(w, r, "create branch", res, err)
}

// ResetBranch handles POST /api/branches/{branch}/reset.
//
//	@Summary		Force-move a branch to another branch's head
//	@Tags			branches
//	@Accept			json
//	@Produce		json
//	@Param			branch	path		string		true	"Branch to reset"
//	@Param			body	body		ResetBody	true	"Target"
//	@Success		200		{object}	ResultResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/branches/{branch}/reset [post]
func (h *Handler) ResetBranch(w http.ResponseWriter, r *http.Request) {
	var body ResetBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, "reset branch", err)
		return
	}
	res, err := h.svc.ResetBranch(r.Context(), actorFrom(r.Context()), templateservice.ResetRequest{
		Branch: chi.URLParam(r, "branch"),
		To:     body.To,
		Backup: body.Backup,
	})
	h.reply(w, r, "reset branch", res, err)
}

// ReadIndex handles GET /api/templates.
//
//	@Summary		Read the master or a locale template index
//	@Tags			templates
//	@Produce		json
//	@Param			branch	query		string	false	"Branch"
//	@Param			locale	query		string	false	"Locale code"
//	@Success		200		{object}	okResponse
//	@Failure		404		{object}	errResponse
//	@Router			/templates [get]
func (h *Handler) ReadIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw, err := h.svc.ReadIndex(r.Context(), actorFrom(r.Context()), q.Get("branch"), q.Get("locale"))
	if err != nil {
		writeError(w, r, "read index", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(raw))
}

// Locales handles GET /api/locales.
//
//	@Summary		List the locales in effect on a branch
//	@Tags			i18n
//	@Produce		json
//	@Param			branch	query		string	false	"Branch"
//	@Success		200		{object}	LocaleList
//	@Router			/locales [get]
func (h *Handler) Locales(w http.ResponseWriter, r *http.Request) {
	locales, err := h.svc.Locales(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("branch"))
	if err != nil {
		writeError(w, r, "locales", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(LocaleList{Locales: locales}))
}

// ListCommits handles GET /api/commits.
//
//	@Summary		List journaled commits, newest first
//	@Tags			commits
//	@Produce		json
//	@Param			template	query		string	false	"Filter by template"
//	@Param			branch		query		string	false	"Filter by branch"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	CommitList
//	@Router			/commits [get]
func (h *Handler) ListCommits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	entries, total, err := h.svc.ListCommits(journal.Filter{
		Template: q.Get("template"),
		Branch:   q.Get("branch"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, "list commits", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(CommitList{Entries: entries, Total: total}))
}

// Translate handles POST /api/translate.
//
//	@Summary		Machine-translate texts
//	@Tags			i18n
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TranslateRequest	true	"Texts"
//	@Success		200		{object}	TranslateResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/translate [post]
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "translate", err)
		return
	}
	out, err := h.svc.Translate(r.Context(), actorFrom(r.Context()), req.Texts, req.From, req.To)
	if err != nil {
		writeError(w, r, "translate", err)
		return
	}
	writeJSON(w, http.StatusOK, okBody(TranslateResult{Translations: out}))
}

// NotFound replies to unknown API routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody(apperr.ErrNotFound.Error()))
}
