package templateservice

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/i18n"
)

// ApplyTranslations stores a translation memory document and rewrites the
// translated text of every locale index from it in one commit.
func (s *Service) ApplyTranslations(ctx context.Context, actor Actor, req TranslationsRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mem, err := i18n.ParseMemory(req.Memory)
	if err != nil {
		return nil, apperr.Invalid("translations: %v", err)
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
	source := master.Clone()

	p := newPlan("translations", "", sn.branch, s.logger)
	p.write(ComponentTranslations, cfg.MemoryPath(), mem.Bytes())

	for _, loc := range cfg.SupportedLocales {
		component := ComponentLocale
		if loc.IsDefault {
			component = ComponentMaster
		}
		docPath := s.localePath(loc)
		raw, err := sn.read(ctx, docPath)
		if err != nil {
			p.skip(component, docPath, "read: "+err.Error())
			continue
		}
		doc, err := catalog.Parse(raw)
		if err != nil {
			p.skip(component, docPath, err.Error())
			continue
		}
		i18n.ApplyTranslations(doc, source, mem, loc.Code)
		out := doc.Bytes()
		if bytes.Equal(out, raw) {
			p.unchanged(component, docPath)
			continue
		}
		p.write(component, docPath, out)
	}

	return s.publish(ctx, actor, sn, p, "Update translations")
}

// ReadTranslations returns the translation memory at the branch head. A
// missing memory reads as an empty document.
func (s *Service) ReadTranslations(ctx context.Context, actor Actor, branch string) (json.RawMessage, error) {
	sn, err := s.snapshot(ctx, actor, branch, false)
	if err != nil {
		return nil, err
	}
	cfg, err := s.localeConfig(ctx, sn)
	if err != nil {
		return nil, err
	}
	mem, _, err := s.loadMemory(ctx, sn, cfg)
	if err != nil {
		return nil, err
	}
	return mem.Bytes(), nil
}
