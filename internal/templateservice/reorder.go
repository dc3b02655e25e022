package templateservice

import (
	"context"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/i18n"
)

// ReorderTemplates sets the template order of one category in the master
// index and every locale index.
func (s *Service) ReorderTemplates(ctx context.Context, actor Actor, req ReorderRequest) (*Result, error) {
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
	if _, ok := master.Category(req.Category); !ok {
		return nil, apperr.Invalid("category %d does not exist", req.Category)
	}
	members := make(map[string]bool)
	for _, name := range master.Names(req.Category) {
		members[name] = true
	}
	for _, name := range req.Order {
		if !members[name] {
			return nil, apperr.Invalid("template %s is not in category %d", name, req.Category)
		}
	}

	p := newPlan("reorder", "", sn.branch, s.logger)
	p.warnUnplaced("order", master.Reorder(req.Category, req.Order))
	p.write(ComponentMaster, s.settings.IndexPath, master.Bytes())

	s.syncLocales(ctx, sn, p, cfg, i18n.Mutation{
		Kind:        i18n.MutationReorder,
		Category:    req.Category,
		OldCategory: -1,
	}, master, i18n.NewMemory())

	return s.publish(ctx, actor, sn, p, "Reorder templates: "+master.CategoryTitle(req.Category))
}
