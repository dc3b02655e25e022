package templateservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/jsondoc"
)

// UpdateUsage sets the usage count of many templates across the master
// index and every locale index in one commit.
func (s *Service) UpdateUsage(ctx context.Context, actor Actor, req UsageRequest) (*Result, error) {
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

	p := newPlan("usage", "", sn.branch, s.logger)
	matched := setUsage(master, req.Usage)
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: no template in usage data exists", apperr.ErrNoChanges)
	}
	p.write(ComponentMaster, s.settings.IndexPath, master.Bytes())

	var unknown []string
	for name := range req.Usage {
		if !matched[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		p.warn("unknown template " + name)
	}

	for _, loc := range cfg.SupportedLocales {
		if loc.IsDefault {
			continue
		}
		docPath := s.localePath(loc)
		raw, err := sn.read(ctx, docPath)
		if err != nil {
			p.skip(ComponentLocale, docPath, "read: "+err.Error())
			continue
		}
		doc, err := catalog.Parse(raw)
		if err != nil {
			p.skip(ComponentLocale, docPath, err.Error())
			continue
		}
		setUsage(doc, req.Usage)
		out := doc.Bytes()
		if bytes.Equal(out, raw) {
			p.unchanged(ComponentLocale, docPath)
			continue
		}
		p.write(ComponentLocale, docPath, out)
	}

	return s.publish(ctx, actor, sn, p, fmt.Sprintf("Update usage for %d templates", len(matched)))
}

// setUsage writes usage counts into doc and returns the names it found.
func setUsage(doc *catalog.Index, usage map[string]json.Number) map[string]bool {
	found := make(map[string]bool)
	for c := 0; c < doc.Len(); c++ {
		for _, t := range doc.Templates(c) {
			entry, ok := t.(*jsondoc.Object)
			if !ok {
				continue
			}
			name := jsondoc.String(entry, "name")
			n, ok := usage[name]
			if !ok {
				continue
			}
			found[name] = true
			entry.Set("usage", n)
		}
	}
	return found
}
