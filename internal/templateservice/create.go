package templateservice

import (
	"context"
	"fmt"
	"path"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/i18n"
)

// CreateTemplate adds a template to the master index and publishes it
// together with its workflow, thumbnails, assets, locale entries,
// translation placeholders and bundle membership in one commit.
func (s *Service) CreateTemplate(ctx context.Context, actor Actor, req CreateRequest) (*Result, error) {
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

	cat, ok := master.CategoryByTitle(req.Metadata.Category)
	if !ok {
		return nil, apperr.Invalid("category %q does not exist", req.Metadata.Category)
	}
	if _, _, found := master.Find(req.Name); found {
		return nil, fmt.Errorf("%w: template %s", apperr.ErrAlreadyExists, req.Name)
	}
	wfPath := s.workflowPath(req.Name)
	if exists, err := sn.exists(ctx, wfPath); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: workflow %s", apperr.ErrAlreadyExists, wfPath)
	}

	meta := req.Metadata
	if meta.MediaSubtype == "" && len(req.Thumbnails) > 0 {
		meta.MediaSubtype = catalog.SubtypeFromFilename(req.Thumbnails[0].Filename)
	}
	entry, err := catalog.NewEntry(req.Name, meta)
	if err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	master.Append(cat, entry)

	p := newPlan("create", req.Name, sn.branch, s.logger)
	if len(req.TemplateOrder) > 0 {
		p.warnUnplaced("templateOrder", master.Reorder(cat, req.TemplateOrder))
	}
	p.write(ComponentMaster, s.settings.IndexPath, master.Bytes())

	doc := s.placeAssets(ctx, sn, p, req.Name, nil, req.Workflow, req.InputFiles, req.OutputFiles)
	p.write(ComponentWorkflow, wfPath, doc)
	for _, th := range req.Thumbnails {
		p.upload(ComponentThumbnail, path.Join(s.settings.TemplatesDir, th.Filename), th.Content)
	}

	categoryTitle := master.CategoryTitle(cat)
	updater := i18n.NewUpdater(cfg, s.now)
	mem := s.updateMemory(ctx, sn, p, cfg, func(m *i18n.Memory) *i18n.Memory {
		return updater.CreatePlaceholders(m, req.Name, i18n.Source{
			Title:       meta.Title,
			Description: meta.Description,
			Category:    categoryTitle,
			Tags:        meta.Tags,
		})
	})

	s.syncLocales(ctx, sn, p, cfg, i18n.Mutation{
		Kind:        i18n.MutationCreate,
		Category:    cat,
		OldCategory: -1,
		Name:        req.Name,
		Entry:       entry,
	}, master, mem)

	s.assignBundle(ctx, sn, p, req.Name, categoryTitle)

	return s.publish(ctx, actor, sn, p, "Create template: "+req.Name)
}
