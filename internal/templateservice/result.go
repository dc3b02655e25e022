package templateservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/bundles"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/commit"
	"github.com/starford/raido/internal/i18n"
)

// Components named in outcomes.
const (
	ComponentMaster       = "master"
	ComponentLocale       = "locale"
	ComponentTranslations = "translations"
	ComponentBundles      = "bundles"
	ComponentWorkflow     = "workflow"
	ComponentThumbnail    = "thumbnail"
	ComponentAsset        = "asset"
	ComponentBranch       = "branch"
	ComponentLogoIndex    = "logo_index"
	ComponentLogo         = "logo"
)

// Status of one document in an operation.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
)

// Outcome reports what happened to one document.
type Outcome struct {
	Component string `json:"component"`
	Path      string `json:"path,omitempty"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Commit identifies a published commit.
type Commit struct {
	SHA string `json:"sha"`
	URL string `json:"url,omitempty"`
}

// Result is returned by every mutating operation.
type Result struct {
	Operation    string            `json:"operation"`
	Template     string            `json:"template,omitempty"`
	Branch       string            `json:"branch"`
	Commit       *Commit           `json:"commit,omitempty"`
	NoOp         bool              `json:"noOp"`
	Outcomes     []Outcome         `json:"outcomes"`
	Warnings     []string          `json:"warnings"`
	AssetMapping map[string]string `json:"assetMapping,omitempty"`
}

// plan collects the writes of one operation and their outcomes.
type plan struct {
	writes  []commit.Write
	result  *Result
	deletes map[string]bool
	paths   map[string]bool
	logger  *slog.Logger
}

func newPlan(op, template, branch string, logger *slog.Logger) *plan {
	return &plan{
		result: &Result{
			Operation: op,
			Template:  template,
			Branch:    branch,
			Outcomes:  []Outcome{},
			Warnings:  []string{},
		},
		deletes: map[string]bool{},
		paths:   map[string]bool{},
		logger:  logger,
	}
}

func (p *plan) outcome(component, path string, status Status, reason string) {
	p.result.Outcomes = append(p.result.Outcomes, Outcome{Component: component, Path: path, Status: status, Reason: reason})
}

func (p *plan) write(component, path string, content []byte) {
	p.writes = append(p.writes, commit.Write{Path: path, Content: content})
	p.paths[path] = true
	p.outcome(component, path, StatusUpdated, "")
}

func (p *plan) upload(component, path string, content []byte) {
	p.writes = append(p.writes, commit.Write{Path: path, Content: content, Blob: true})
	p.paths[path] = true
	p.outcome(component, path, StatusUpdated, "")
}

func (p *plan) remove(component, path, reason string) {
	if p.paths[path] {
		return
	}
	p.writes = append(p.writes, commit.Write{Path: path, Delete: true})
	p.paths[path] = true
	p.deletes[path] = true
	p.outcome(component, path, StatusUpdated, reason)
}

func (p *plan) unchanged(component, path string) {
	p.outcome(component, path, StatusUnchanged, "")
}

// skip records a best-effort failure. It never aborts the operation.
func (p *plan) skip(component, path, reason string) {
	p.outcome(component, path, StatusSkipped, reason)
	p.warn(fmt.Sprintf("%s %s skipped: %s", component, path, reason))
	p.logger.Warn("document skipped",
		slog.String("component", component),
		slog.String("path", path),
		slog.String("reason", reason))
}

func (p *plan) warn(msg string) {
	p.result.Warnings = append(p.result.Warnings, msg)
}

// warnUnplaced reports templates a reorder could not place from list.
func (p *plan) warnUnplaced(list string, rest []catalog.Unplaced) {
	for _, u := range rest {
		if u.Duplicate {
			p.warn(fmt.Sprintf("duplicate entry for template %s kept after the %s templates", u.Name, list))
			continue
		}
		p.warn(fmt.Sprintf("template %s missing from %s, appended", u.Name, list))
	}
}

// reconcile downgrades outcomes the composer found to be no-ops.
func (p *plan) reconcile(res *commit.Result) {
	same := make(map[string]bool, len(res.Unchanged))
	for _, path := range res.Unchanged {
		same[path] = true
	}
	deleted := make(map[string]bool, len(res.Deleted))
	for _, path := range res.Deleted {
		deleted[path] = true
	}
	for i := range p.result.Outcomes {
		o := &p.result.Outcomes[i]
		if o.Status != StatusUpdated {
			continue
		}
		switch {
		case same[o.Path]:
			o.Status = StatusUnchanged
		case p.deletes[o.Path] && !deleted[o.Path]:
			o.Status = StatusUnchanged
			o.Reason = "already absent"
		}
	}
}

// addLocales turns locale sync results into writes and outcomes.
func (p *plan) addLocales(results []i18n.LocaleResult) {
	for _, r := range results {
		switch r.Status {
		case i18n.SyncUpdated:
			p.write(ComponentLocale, r.Path, r.Content)
		case i18n.SyncUnchanged:
			p.unchanged(ComponentLocale, r.Path)
		default:
			p.skip(ComponentLocale, r.Path, r.Reason)
		}
		for _, w := range r.Warnings {
			p.warn(r.Locale + ": " + w)
		}
	}
}

// assignBundle moves template into the bundle its category maps to.
func (s *Service) assignBundle(ctx context.Context, sn *snapshot, p *plan, template, category string) {
	if s.rules == nil {
		p.outcome(ComponentBundles, bundles.Path, StatusSkipped, "no bundle rules configured")
		return
	}
	rules, err := s.rules.Get()
	if err != nil {
		p.skip(ComponentBundles, bundles.Path, "rules: "+err.Error())
		return
	}
	data, err := sn.read(ctx, bundles.Path)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		p.skip(ComponentBundles, bundles.Path, err.Error())
		return
	}
	out, changed, err := bundles.Assign(data, rules, template, category)
	if err != nil {
		p.skip(ComponentBundles, bundles.Path, err.Error())
		return
	}
	if !changed {
		p.unchanged(ComponentBundles, bundles.Path)
		return
	}
	p.write(ComponentBundles, bundles.Path, out)
}
