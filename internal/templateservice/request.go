package templateservice

import (
	"encoding/json"
	"errors"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/tidwall/gjson"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
)

var branchRe = regexp.MustCompile(`^[A-Za-z0-9._/\-]+$`)

// File is an uploaded file. Content is base64 in JSON.
type File struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
	// DeleteOldFile names a previously uploaded asset this file replaces.
	DeleteOldFile string `json:"deleteOldFile,omitempty"`
}

// CreateRequest creates a template.
type CreateRequest struct {
	Branch        string           `json:"branch"`
	Name          string           `json:"templateName"`
	Metadata      catalog.Metadata `json:"metadata"`
	TemplateOrder []string         `json:"templateOrder,omitempty"`
	Workflow      json.RawMessage  `json:"workflow"`
	Thumbnails    []File           `json:"thumbnails,omitempty"`
	InputFiles    []File           `json:"inputFiles,omitempty"`
	OutputFiles   []File           `json:"outputFiles,omitempty"`
}

// Validate validates the request.
func (r *CreateRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Name, validation.Required, validation.By(templateName)),
		validation.Field(&r.Workflow, validation.Required, validation.By(jsonDocument)),
		validation.Field(&r.Thumbnails, validation.By(files)),
		validation.Field(&r.InputFiles, validation.By(files)),
		validation.Field(&r.OutputFiles, validation.By(files)),
	); err != nil {
		return invalid(err)
	}
	m := &r.Metadata
	if err := validation.ValidateStruct(m,
		validation.Field(&m.Title, validation.Required),
		validation.Field(&m.Category, validation.Required),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// UpdateRequest changes an existing template. Nil slices and empty
// values leave the current data in place.
type UpdateRequest struct {
	Branch        string           `json:"branch"`
	Name          string           `json:"templateName"`
	Metadata      catalog.Metadata `json:"metadata"`
	TemplateOrder []string         `json:"templateOrder,omitempty"`
	Workflow      json.RawMessage  `json:"workflow,omitempty"`
	Thumbnails    []File           `json:"thumbnails,omitempty"`
	InputFiles    []File           `json:"inputFiles,omitempty"`
	OutputFiles   []File           `json:"outputFiles,omitempty"`
}

// Validate validates the request.
func (r *UpdateRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Name, validation.Required, validation.By(templateName)),
		validation.Field(&r.Workflow, validation.By(jsonDocument)),
		validation.Field(&r.Thumbnails, validation.By(files)),
		validation.Field(&r.InputFiles, validation.By(files)),
		validation.Field(&r.OutputFiles, validation.By(files)),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// ReorderRequest sets the template order of one category.
type ReorderRequest struct {
	Branch   string   `json:"branch"`
	Category int      `json:"category"`
	Order    []string `json:"order"`
}

// Validate validates the request.
func (r *ReorderRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Category, validation.Min(0)),
		validation.Field(&r.Order, validation.Required),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// TranslationsRequest replaces the translation memory and applies it to
// every locale index.
type TranslationsRequest struct {
	Branch string          `json:"branch"`
	Memory json.RawMessage `json:"translations"`
}

// Validate validates the request.
func (r *TranslationsRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Memory, validation.Required),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// UsageRequest sets usage counts by template name.
type UsageRequest struct {
	Branch string                 `json:"branch"`
	Usage  map[string]json.Number `json:"usageData"`
}

// Validate validates the request.
func (r *UsageRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Usage, validation.Required),
	); err != nil {
		return invalid(err)
	}
	for name, n := range r.Usage {
		if _, err := n.Float64(); err != nil {
			return apperr.Invalid("usageData.%s: not a number", name)
		}
	}
	return nil
}

// BranchRequest creates a branch from another branch's head.
type BranchRequest struct {
	Name string `json:"name"`
	From string `json:"from"`
}

// Validate validates the request.
func (r *BranchRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.By(branchName)),
		validation.Field(&r.From, validation.By(branchName)),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// ResetRequest force-moves Branch to the head of To.
type ResetRequest struct {
	Branch string `json:"branch"`
	To     string `json:"to"`
	Backup bool   `json:"backup"`
}

// Validate validates the request.
func (r *ResetRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.Required, validation.By(branchName)),
		validation.Field(&r.To, validation.Required, validation.By(branchName)),
	); err != nil {
		return invalid(err)
	}
	if r.Branch == r.To {
		return apperr.Invalid("branch and target are the same")
	}
	return nil
}

func invalid(err error) error {
	return apperr.Invalid("%v", err)
}

func templateName(v any) error {
	s, _ := v.(string)
	if s != "" && !catalog.ValidName(s) {
		return errors.New("must contain only letters, numbers, dashes, and underscores")
	}
	return nil
}

func branchName(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if !branchRe.MatchString(s) || strings.Contains(s, "..") || strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return errors.New("is not a valid branch name")
	}
	return nil
}

func jsonDocument(v any) error {
	raw, _ := v.(json.RawMessage)
	if len(raw) > 0 && !gjson.ValidBytes(raw) {
		return errors.New("must be a JSON document")
	}
	return nil
}

func files(v any) error {
	list, _ := v.([]File)
	for _, f := range list {
		if f.Filename == "" || path.Base(f.Filename) != f.Filename || f.Filename == "." || f.Filename == ".." {
			return errors.New("filename must be a plain file name")
		}
		if f.DeleteOldFile != "" && path.Base(f.DeleteOldFile) != f.DeleteOldFile {
			return errors.New("deleteOldFile must be a plain file name")
		}
		if len(f.Content) == 0 {
			return errors.New("file content is required")
		}
	}
	return nil
}

// PullRequestsQuery pages the pull requests of the template repository.
// State is open, closed, merged or all.
type PullRequestsQuery struct {
	State   string `json:"state"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// Validate validates the query.
func (q *PullRequestsQuery) Validate() error {
	if err := validation.ValidateStruct(q,
		validation.Field(&q.State, validation.In("open", "closed", "merged", "all")),
		validation.Field(&q.Page, validation.Min(0)),
		validation.Field(&q.PerPage, validation.Min(0), validation.Max(100)),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// PullRequestRequest opens a pull request from Head into Base. Head is a
// branch of the template repository or "owner:branch" of a fork.
type PullRequestRequest struct {
	Head  string `json:"head"`
	Base  string `json:"base"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Draft bool   `json:"draft"`
}

// Validate validates the request.
func (r *PullRequestRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Head, validation.Required, validation.By(headRef)),
		validation.Field(&r.Base, validation.By(branchName)),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 256)),
	); err != nil {
		return invalid(err)
	}
	return nil
}

// PullRequestUpdate changes the title or body of a pull request. Nil leaves
// a field as is.
type PullRequestUpdate struct {
	Number int     `json:"number"`
	Title  *string `json:"title"`
	Body   *string `json:"body"`
}

// Validate validates the request.
func (r *PullRequestUpdate) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Number, validation.Required, validation.Min(1)),
	); err != nil {
		return invalid(err)
	}
	if r.Title == nil && r.Body == nil {
		return apperr.Invalid("title or body is required")
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return apperr.Invalid("title: cannot be blank")
	}
	return nil
}

// LogosRequest replaces the provider logo mapping and uploads or removes
// logo files under the templates directory in one commit. Files maps a path
// relative to the templates directory to its content, base64 in JSON.
type LogosRequest struct {
	Branch  string            `json:"branch"`
	Mapping json.RawMessage   `json:"logoMapping"`
	Files   map[string][]byte `json:"files,omitempty"`
	Deleted []string          `json:"deletedFiles,omitempty"`
}

// Validate validates the request.
func (r *LogosRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Branch, validation.By(branchName)),
		validation.Field(&r.Mapping, validation.Required, validation.By(jsonObject)),
	); err != nil {
		return invalid(err)
	}
	for p, data := range r.Files {
		if err := logoPath(p); err != nil {
			return apperr.Invalid("files.%s: %v", p, err)
		}
		if len(data) == 0 {
			return apperr.Invalid("files.%s: file content is required", p)
		}
	}
	for _, p := range r.Deleted {
		if err := logoPath(p); err != nil {
			return apperr.Invalid("deletedFiles.%s: %v", p, err)
		}
		if _, ok := r.Files[p]; ok {
			return apperr.Invalid("deletedFiles.%s: also uploaded", p)
		}
	}
	return nil
}

func jsonObject(v any) error {
	raw, _ := v.(json.RawMessage)
	if len(raw) > 0 && (!gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject()) {
		return errors.New("must be a JSON object")
	}
	return nil
}

// logoPath accepts a relative path to a logo image. JSON documents are off
// limits so a logo can never replace an index.
func logoPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || path.Clean(p) != p || p == ".." || strings.HasPrefix(p, "../") {
		return errors.New("must be a clean relative path")
	}
	if strings.EqualFold(path.Ext(p), ".json") {
		return errors.New("must not be a JSON document")
	}
	return nil
}

func headRef(v any) error {
	s, _ := v.(string)
	owner, branch, found := strings.Cut(s, ":")
	if !found {
		return branchName(s)
	}
	if owner == "" || branch == "" || !branchRe.MatchString(owner) || strings.Contains(owner, "/") {
		return errors.New("must be a branch or owner:branch")
	}
	return branchName(branch)
}
