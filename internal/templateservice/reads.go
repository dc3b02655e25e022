package templateservice

import (
	"context"
	"encoding/json"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/translate"
)

// ReadIndex returns a template index at the branch head: the master index
// when locale is empty or the default, otherwise the locale's index.
func (s *Service) ReadIndex(ctx context.Context, actor Actor, branch, locale string) (json.RawMessage, error) {
	sn, err := s.snapshot(ctx, actor, branch, false)
	if err != nil {
		return nil, err
	}
	docPath := s.settings.IndexPath
	if locale != "" {
		cfg, err := s.localeConfig(ctx, sn)
		if err != nil {
			return nil, err
		}
		loc, ok := findLocale(cfg, locale)
		if !ok {
			return nil, apperr.Invalid("unsupported locale %q", locale)
		}
		docPath = s.localePath(loc)
	}
	return sn.read(ctx, docPath)
}

// Locales returns the locales in effect on a branch.
func (s *Service) Locales(ctx context.Context, actor Actor, branch string) ([]i18n.Locale, error) {
	sn, err := s.snapshot(ctx, actor, branch, false)
	if err != nil {
		return nil, err
	}
	cfg, err := s.localeConfig(ctx, sn)
	if err != nil {
		return nil, err
	}
	return cfg.SupportedLocales, nil
}

// ListCommits returns journaled commits, newest first, and the total count.
func (s *Service) ListCommits(f journal.Filter) ([]journal.Entry, int, error) {
	if s.journal == nil {
		return []journal.Entry{}, 0, nil
	}
	return s.journal.List(f)
}

// Translate machine-translates texts. Its output is never stored by the
// service itself.
func (s *Service) Translate(ctx context.Context, actor Actor, texts []string, from, to string) ([]string, error) {
	if actor.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	if err := translate.Validate(texts, from, to); err != nil {
		return nil, err
	}
	return s.translator.Translate(ctx, texts, from, to)
}

func findLocale(cfg *i18n.Config, code string) (i18n.Locale, bool) {
	for _, l := range cfg.SupportedLocales {
		if l.Code == code {
			return l, true
		}
	}
	return i18n.Locale{}, false
}
