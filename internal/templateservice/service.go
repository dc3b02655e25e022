// Package templateservice runs every template operation end to end: it reads
// the branch head, computes the new master index, locale indexes,
// translation memory, bundle map and assets, and publishes them as one
// commit.
package templateservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/bundles"
	"github.com/starford/raido/internal/commit"
	"github.com/starford/raido/internal/i18n"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/translate"
)

// LocaleSource supplies the locale configuration used when the repository
// does not carry its own.
type LocaleSource interface {
	Get() (*i18n.Config, error)
}

// RulesSource supplies the category to bundle mapping.
type RulesSource interface {
	Get() (*bundles.Rules, error)
}

// Journal records published commits.
type Journal interface {
	Record(e journal.Entry) (*journal.Entry, error)
	List(f journal.Filter) ([]journal.Entry, int, error)
}

// Publisher announces published commits.
type Publisher interface {
	PublishCommit(ev sse.CommitEvent)
}

// Settings holds repository layout and behaviour switches.
type Settings struct {
	DefaultBranch      string
	IndexPath          string
	TemplatesDir       string
	InputDir           string
	OutputDir          string
	MessageFooter      string
	BlobConcurrency    int
	BranchResetEnabled bool
}

// DefaultSettings returns the standard repository layout.
func DefaultSettings() Settings {
	return Settings{
		DefaultBranch:   "main",
		IndexPath:       "templates/index.json",
		TemplatesDir:    "templates",
		InputDir:        "input",
		OutputDir:       "output",
		BlobConcurrency: 4,
	}
}

// Actor is the caller of an operation. An actor without a credential is
// anonymous and may only read, unless Server is set: the operation then runs
// with the server's own repository credential.
type Actor struct {
	Credential string
	UserID     string
	Server     bool
}

// Anonymous reports whether the actor may not write.
func (a Actor) Anonymous() bool { return a.Credential == "" && !a.Server }

// Service coordinates the object store, the document engines and the
// commit journal.
type Service struct {
	opener     storage.Opener
	hosting    storage.HostingOpener
	locales    LocaleSource
	rules      RulesSource
	journal    Journal
	events     Publisher
	translator translate.Translator
	settings   Settings
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRules sets the bundle rules source. Without it bundle updates are
// skipped.
func WithRules(r RulesSource) Option { return func(s *Service) { s.rules = r } }

// WithJournal sets the commit journal.
func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

// WithPublisher sets the commit event publisher.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithTranslator sets the machine translation collaborator.
func WithTranslator(t translate.Translator) Option { return func(s *Service) { s.translator = t } }

// WithHosting enables pull requests and forks. Without it those operations
// fail with ErrUnsupported.
func WithHosting(h storage.HostingOpener) Option { return func(s *Service) { s.hosting = h } }

// WithSettings overrides the repository layout.
func WithSettings(st Settings) Option { return func(s *Service) { s.settings = st } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New creates a template service.
func New(opener storage.Opener, locales LocaleSource, opts ...Option) *Service {
	s := &Service{
		opener:     opener,
		locales:    locales,
		translator: translate.Identity{},
		settings:   DefaultSettings(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// snapshot is the branch state an operation is computed against.
type snapshot struct {
	store  storage.ObjectStore
	branch string
	head   string
	tree   string

	files   map[string]bool
	listErr error
	listed  bool
}

func (s *Service) branchOrDefault(b string) string {
	if b == "" {
		return s.settings.DefaultBranch
	}
	return b
}

func (s *Service) open(ctx context.Context, actor Actor, write bool) (storage.ObjectStore, error) {
	if write && actor.Anonymous() {
		return nil, fmt.Errorf("%w: sign in to change templates", apperr.ErrUnauthorized)
	}
	return s.opener.Open(ctx, actor.Credential)
}

func (s *Service) snapshot(ctx context.Context, actor Actor, branch string, write bool) (*snapshot, error) {
	store, err := s.open(ctx, actor, write)
	if err != nil {
		return nil, err
	}
	branch = s.branchOrDefault(branch)
	head, err := store.GetRef(ctx, branch)
	if err != nil {
		return nil, err
	}
	c, err := store.GetCommit(ctx, head)
	if err != nil {
		return nil, err
	}
	return &snapshot{store: store, branch: branch, head: head, tree: c.TreeSHA}, nil
}

func (sn *snapshot) read(ctx context.Context, path string) ([]byte, error) {
	c, err := sn.store.GetContent(ctx, path, sn.head)
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

// exists reports whether path is in the head tree, listing it once. A tree
// too large to list is checked path by path.
func (sn *snapshot) exists(ctx context.Context, path string) (bool, error) {
	if !sn.listed {
		sn.listed = true
		entries, err := sn.store.GetTree(ctx, sn.tree)
		if err != nil {
			sn.listErr = err
		} else {
			sn.files = make(map[string]bool, len(entries))
			for _, e := range entries {
				sn.files[e.Path] = true
			}
		}
	}
	if errors.Is(sn.listErr, storage.ErrTreeTruncated) {
		_, err := sn.store.GetContent(ctx, path, sn.head)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, apperr.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
	if sn.listErr != nil {
		return false, sn.listErr
	}
	return sn.files[path], nil
}

// localeConfig prefers the repository's own locale config at the head and
// falls back to the locally configured one.
func (s *Service) localeConfig(ctx context.Context, sn *snapshot) (*i18n.Config, error) {
	data, err := sn.read(ctx, i18n.RepositoryConfigPath)
	switch {
	case err == nil:
		cfg, perr := i18n.ParseConfig(data)
		if perr == nil {
			return cfg, nil
		}
		s.logger.Warn("repository locale config ignored",
			slog.String("path", i18n.RepositoryConfigPath),
			slog.String("error", perr.Error()))
	case !errors.Is(err, apperr.ErrNotFound):
		s.logger.Warn("repository locale config unreadable",
			slog.String("path", i18n.RepositoryConfigPath),
			slog.String("error", err.Error()))
	}
	cfg, err := s.locales.Get()
	if err != nil {
		return nil, fmt.Errorf("locale config: %w", err)
	}
	return cfg, nil
}

// loadMemory reads the translation memory. A missing document yields an
// empty memory.
func (s *Service) loadMemory(ctx context.Context, sn *snapshot, cfg *i18n.Config) (*i18n.Memory, string, error) {
	path := cfg.MemoryPath()
	data, err := sn.read(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) && cfg.I18nDataPath.Fallback != "" {
		if fb, ferr := sn.read(ctx, cfg.I18nDataPath.Fallback); ferr == nil {
			data, err = fb, nil
		}
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return i18n.NewMemory(), path, nil
	}
	if err != nil {
		return nil, path, err
	}
	mem, err := i18n.ParseMemory(data)
	if err != nil {
		return nil, path, err
	}
	return mem, path, nil
}

func (s *Service) message(subject string) string {
	if s.settings.MessageFooter == "" {
		return subject
	}
	return subject + "\n\n" + s.settings.MessageFooter
}

// publish commits the plan and reports the result.
func (s *Service) publish(ctx context.Context, actor Actor, sn *snapshot, p *plan, subject string) (*Result, error) {
	composer := commit.New(sn.store,
		commit.WithBlobConcurrency(s.settings.BlobConcurrency),
		commit.WithLogger(s.logger))
	res, err := composer.Compose(ctx, commit.Request{
		Branch:  sn.branch,
		Parent:  sn.head,
		Message: s.message(subject),
		Writes:  p.writes,
	})
	if err != nil {
		return nil, err
	}
	p.reconcile(res)
	out := p.result
	out.NoOp = res.NoOp
	if !res.NoOp {
		out.Commit = &Commit{SHA: res.SHA, URL: res.URL}
	}
	s.record(actor, out)
	return out, nil
}

func (s *Service) record(actor Actor, r *Result) {
	if s.journal != nil {
		e := journal.Entry{
			Operation: r.Operation,
			Template:  r.Template,
			Branch:    r.Branch,
			UserID:    actor.UserID,
			NoOp:      r.NoOp,
			Warnings:  r.Warnings,
		}
		if r.Commit != nil {
			e.CommitSHA, e.CommitURL = r.Commit.SHA, r.Commit.URL
		}
		for _, o := range r.Outcomes {
			e.Outcomes = append(e.Outcomes, journal.Outcome{
				Component: o.Component, Path: o.Path, Status: string(o.Status), Reason: o.Reason,
			})
		}
		if _, err := s.journal.Record(e); err != nil {
			s.logger.Warn("journal record failed", slog.String("error", err.Error()))
		}
	}
	if s.events != nil && r.Commit != nil {
		s.events.PublishCommit(sse.CommitEvent{
			Branch:    r.Branch,
			SHA:       r.Commit.SHA,
			URL:       r.Commit.URL,
			Operation: r.Operation,
			Template:  r.Template,
		})
	}
}
