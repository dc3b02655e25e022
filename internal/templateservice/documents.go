package templateservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/assets"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/workflow"
)

// readMaster reads the master index at the head. The operation cannot
// proceed without it.
func (s *Service) readMaster(ctx context.Context, sn *snapshot) (*catalog.Index, error) {
	data, err := sn.read(ctx, s.settings.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("read master index: %w", err)
	}
	ix, err := catalog.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalid, s.settings.IndexPath, err)
	}
	return ix, nil
}

func (s *Service) workflowPath(name string) string {
	return path.Join(s.settings.TemplatesDir, name+".json")
}

// localePath returns where a locale's index lives. The default locale is the
// master index.
func (s *Service) localePath(loc i18n.Locale) string {
	if loc.IsDefault {
		return s.settings.IndexPath
	}
	return i18n.IndexPath(loc)
}

// updateMemory applies change to the translation memory and plans the
// write. A memory that cannot be read is skipped and nil is returned: locale
// sync then keeps the translations already in each locale document.
func (s *Service) updateMemory(ctx context.Context, sn *snapshot, p *plan, cfg *i18n.Config, change func(*i18n.Memory) *i18n.Memory) *i18n.Memory {
	mem, memPath, err := s.loadMemory(ctx, sn, cfg)
	if err != nil {
		p.skip(ComponentTranslations, memPath, err.Error())
		return nil
	}
	next := change(mem)
	if next == nil || next.Equal(mem) {
		p.unchanged(ComponentTranslations, memPath)
		return mem
	}
	p.write(ComponentTranslations, memPath, next.Bytes())
	return next
}

// syncLocales propagates a master mutation to every locale index.
func (s *Service) syncLocales(ctx context.Context, sn *snapshot, p *plan, cfg *i18n.Config, mut i18n.Mutation, master *catalog.Index, mem *i18n.Memory) {
	engine := i18n.NewEngine(cfg, s.logger)
	p.addLocales(engine.SyncTemplate(ctx, mut, master, mem, sn.read))
}

// ownedAssets returns the filenames the template's current workflow refers
// to, along with the workflow itself. A missing workflow owns nothing.
func (s *Service) ownedAssets(ctx context.Context, sn *snapshot, p *plan, name string) (map[string]bool, []byte) {
	wfPath := s.workflowPath(name)
	data, err := sn.read(ctx, wfPath)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			p.warn(fmt.Sprintf("workflow %s unreadable, asset ownership unknown: %v", wfPath, err))
		}
		return map[string]bool{}, nil
	}
	refs, err := workflow.References(data)
	if err != nil {
		p.warn(fmt.Sprintf("workflow %s: %v", wfPath, err))
		return map[string]bool{}, data
	}
	return refs, data
}

type assetGroup struct {
	dir   string
	files []File
}

// placeAssets resolves the stored names of uploaded assets, plans their
// uploads and the removal of files they replace, and rewrites doc so it
// points at the stored names. doc is returned unchanged when the rewrite
// cannot be applied.
func (s *Service) placeAssets(ctx context.Context, sn *snapshot, p *plan, name string, owned map[string]bool, doc []byte, inputs, outputs []File) []byte {
	mapping := map[string]string{}
	type replaced struct{ old, actual string }
	var removals []replaced

	for _, g := range []assetGroup{{s.settings.InputDir, inputs}, {s.settings.OutputDir, outputs}} {
		if len(g.files) == 0 {
			continue
		}
		proposed := make([]string, len(g.files))
		for i, f := range g.files {
			proposed[i] = f.Filename
		}
		res := assets.Resolve(ctx, name, g.dir, proposed, owned, sn.exists)
		for _, w := range res.Warnings {
			p.warn(w)
		}
		for _, f := range g.files {
			actual := res.Actual(f.Filename)
			p.upload(ComponentAsset, path.Join(g.dir, actual), f.Content)
			if actual != f.Filename {
				mapping[f.Filename] = actual
			}
			if f.DeleteOldFile != "" {
				removals = append(removals, replaced{
					old:    path.Join(g.dir, assets.OldName(name, f.DeleteOldFile, owned)),
					actual: actual,
				})
			}
		}
	}
	for _, r := range removals {
		p.remove(ComponentAsset, r.old, "replaced by "+r.actual)
	}

	if len(mapping) == 0 {
		return doc
	}
	p.result.AssetMapping = mapping
	if len(doc) == 0 {
		return doc
	}
	out, n, err := workflow.Rewrite(doc, mapping)
	if err != nil {
		p.warn("workflow references not rewritten: " + err.Error())
		return doc
	}
	s.logger.Debug("workflow references rewritten",
		slog.String("template", name),
		slog.Int("count", n))
	return out
}
