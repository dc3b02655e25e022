package templateservice

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/jsondoc"
)

// LogoIndexName is the provider logo mapping inside the templates directory.
const LogoIndexName = "index_logo.json"

// UpdateLogos replaces the provider logo mapping and uploads or removes logo
// files in one commit.
func (s *Service) UpdateLogos(ctx context.Context, actor Actor, req LogosRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mapping, err := jsondoc.ParseObject(req.Mapping)
	if err != nil {
		return nil, apperr.Invalid("logoMapping: %v", err)
	}
	sn, err := s.snapshot(ctx, actor, req.Branch, true)
	if err != nil {
		return nil, err
	}

	p := newPlan("update_logos", "", sn.branch, s.logger)
	indexPath := path.Join(s.settings.TemplatesDir, LogoIndexName)
	p.write(ComponentLogoIndex, indexPath, jsondoc.MarshalIndent(mapping))

	uploads := make([]string, 0, len(req.Files))
	for name := range req.Files {
		uploads = append(uploads, name)
	}
	sort.Strings(uploads)
	for _, name := range uploads {
		p.upload(ComponentLogo, path.Join(s.settings.TemplatesDir, name), req.Files[name])
	}
	for _, name := range req.Deleted {
		p.remove(ComponentLogo, path.Join(s.settings.TemplatesDir, name), "deleted")
	}

	return s.publish(ctx, actor, sn, p, logoMessage(uploads, req.Deleted))
}

func logoMessage(uploads, deleted []string) string {
	var b strings.Builder
	b.WriteString("Update provider logos")
	if len(uploads) == 0 && len(deleted) == 0 {
		return b.String()
	}
	b.WriteString("\n")
	for _, name := range uploads {
		fmt.Fprintf(&b, "\n- Upload %s", name)
	}
	for _, name := range deleted {
		fmt.Fprintf(&b, "\n- Remove %s", name)
	}
	return b.String()
}
