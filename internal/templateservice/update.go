package templateservice

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/jsondoc"
)

// UpdateTemplate merges metadata into an existing template, optionally
// moving it to another category, and publishes every affected document in
// one commit.
func (s *Service) UpdateTemplate(ctx context.Context, actor Actor, req UpdateRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sn, err := s.snapshot(ctx, actor, req.Branch, true)
	if err != nil {
		return nil, err
	}
	cfg, err := s.localeConfig(ctx, sn)
	if err != nil {
		return nil, err
	}
	master, err := s.readMaster(ctx, sn)
	if err != nil {
		return nil, err
	}

	oldCat, pos, ok := master.Find(req.Name)
	if !ok {
		return nil, fmt.Errorf("%w: template %s", apperr.ErrNotFound, req.Name)
	}
	current, _ := master.Entry(oldCat, pos)
	newCat := oldCat
	if req.Metadata.Category != "" {
		c, ok := master.CategoryByTitle(req.Metadata.Category)
		if !ok {
			return nil, apperr.Invalid("category %q does not exist", req.Metadata.Category)
		}
		newCat = c
	}

	meta := req.Metadata
	if meta.MediaSubtype == "" && len(req.Thumbnails) > 0 {
		meta.MediaSubtype = catalog.SubtypeFromFilename(req.Thumbnails[0].Filename)
	}
	updated, err := catalog.Apply(current, meta)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	if newCat != oldCat {
		master.Remove(oldCat, pos)
		master.Append(newCat, updated)
	} else {
		master.Replace(oldCat, pos, updated)
	}

	p := newPlan("update", req.Name, sn.branch, s.logger)
	if len(req.TemplateOrder) > 0 {
		p.warnUnplaced("templateOrder", master.Reorder(newCat, req.TemplateOrder))
	}
	p.write(ComponentMaster, s.settings.IndexPath, master.Bytes())

	owned, currentDoc := s.ownedAssets(ctx, sn, p, req.Name)
	base := req.Workflow
	if base == nil {
		base = currentDoc
	}
	doc := s.placeAssets(ctx, sn, p, req.Name, owned, base, req.InputFiles, req.OutputFiles)
	if req.Workflow != nil || (len(doc) > 0 && !bytes.Equal(doc, currentDoc)) {
		p.write(ComponentWorkflow, s.workflowPath(req.Name), doc)
	}

	for _, th := range req.Thumbnails {
		p.upload(ComponentThumbnail, path.Join(s.settings.TemplatesDir, th.Filename), th.Content)
	}
	oldVariant, newVariant := catalog.Variant(current), catalog.Variant(updated)
	if catalog.RequiredThumbnails(oldVariant) > 1 && catalog.RequiredThumbnails(newVariant) == 1 {
		second := fmt.Sprintf("%s-2.%s", req.Name, jsondoc.String(updated, "mediaSubtype"))
		p.remove(ComponentThumbnail, path.Join(s.settings.TemplatesDir, second),
			fmt.Sprintf("variant %s shows one image", newVariant))
	}

	categoryTitle := master.CategoryTitle(newCat)
	updater := i18n.NewUpdater(cfg, s.now)
	mem := s.updateMemory(ctx, sn, p, cfg, func(m *i18n.Memory) *i18n.Memory {
		return updater.MarkOutdated(m, req.Name, i18n.Source{
			Title:       jsondoc.String(updated, "title"),
			Description: jsondoc.String(updated, "description"),
			Category:    categoryTitle,
			Tags:        catalog.Tags(updated),
		})
	})

	mut := i18n.Mutation{
		Kind:        i18n.MutationUpdate,
		Category:    newCat,
		OldCategory: -1,
		Name:        req.Name,
		Entry:       updated,
	}
	if newCat != oldCat {
		mut.Kind = i18n.MutationMove
		mut.OldCategory = oldCat
	}
	s.syncLocales(ctx, sn, p, cfg, mut, master, mem)

	s.assignBundle(ctx, sn, p, req.Name, categoryTitle)

	return s.publish(ctx, actor, sn, p, "Update template: "+req.Name)
}
