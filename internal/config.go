package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/templateservice"
)

// Auth modes.
const (
	AuthModeDisabled    = "disabled"
	AuthModeToken       = "token"
	AuthModePassthrough = "passthrough"
)

// Repository backends.
const (
	BackendGitHub = "github"
	BackendGit    = "git"
)

// Translate providers.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Repository  RepositoryConfig  `yaml:"repository"`
	Content     ContentConfig     `yaml:"content"`
	I18n        I18nConfig        `yaml:"i18n"`
	Bundles     BundlesConfig     `yaml:"bundles"`
	Journal     JournalConfig     `yaml:"journal"`
	Limits      LimitsConfig      `yaml:"limits"`
	BranchReset BranchResetConfig `yaml:"branch_reset"`
	Translate   TranslateConfig   `yaml:"translate"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Repository, &c.Content, &c.I18n, &c.Journal, &c.Limits, &c.Translate, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Profile selects config reload behaviour: "production" caches external
	// config files until they change on disk, anything else re-reads them
	// on every call.
	Profile string     `yaml:"profile"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RepositoryConfig selects the template repository and how it is reached.
type RepositoryConfig struct {
	Backend       string `yaml:"backend"`
	Owner         string `yaml:"owner"`
	Name          string `yaml:"name"`
	BaseURL       string `yaml:"base_url"`
	Token         string `yaml:"token"`
	DefaultBranch string `yaml:"default_branch"`
	// GitPath is the bare repository used by the git backend. Empty keeps
	// the repository in memory.
	GitPath           string `yaml:"git_path"`
	CommitURLTemplate string `yaml:"commit_url_template"`
}

// Validate validates the repository configuration.
func (c *RepositoryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendGitHub, BackendGit)),
		validation.Field(&c.DefaultBranch, validation.Required),
	); err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	if c.Backend == BackendGitHub {
		if err := validation.ValidateStruct(c,
			validation.Field(&c.Owner, validation.Required),
			validation.Field(&c.Name, validation.Required),
		); err != nil {
			return fmt.Errorf("repository: %w", err)
		}
	}
	return nil
}

// ContentConfig holds the repository layout.
type ContentConfig struct {
	IndexPath     string `yaml:"index_path"`
	TemplatesDir  string `yaml:"templates_dir"`
	InputDir      string `yaml:"input_dir"`
	OutputDir     string `yaml:"output_dir"`
	MessageFooter string `yaml:"message_footer"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.IndexPath, validation.Required),
		validation.Field(&c.TemplatesDir, validation.Required),
		validation.Field(&c.InputDir, validation.Required),
		validation.Field(&c.OutputDir, validation.Required),
	); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	return nil
}

// I18nConfig points at the locale configuration used when the repository
// does not carry its own.
type I18nConfig struct {
	ConfigFile string `yaml:"config_file"`
}

// Validate validates the i18n configuration.
func (c *I18nConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ConfigFile, validation.Required),
	); err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	return nil
}

// BundlesConfig points at the category to bundle rules. Without a rules
// file bundle membership is not maintained.
type BundlesConfig struct {
	RulesFile string `yaml:"rules_file"`
}

// JournalConfig holds the commit journal database location.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LimitsConfig bounds request sizes and upload fan-out.
type LimitsConfig struct {
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
	BlobConcurrency int   `yaml:"blob_concurrency"`
}

// Validate validates the limits configuration.
func (c *LimitsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxRequestBytes, validation.Required, validation.Min(int64(1024))),
		validation.Field(&c.BlobConcurrency, validation.Required, validation.Min(1), validation.Max(32)),
	); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	return nil
}

// BranchResetConfig gates the force-moving branch reset operation.
type BranchResetConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TranslateConfig selects the machine translation provider.
type TranslateConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Validate validates the translate configuration.
func (c *TranslateConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderNone, ProviderAnthropic)),
	); err != nil {
		return fmt.Errorf("translate: %w", err)
	}
	if c.Provider == ProviderAnthropic && c.APIKey == "" {
		return fmt.Errorf("translate: provider is %q but api_key is empty", ProviderAnthropic)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls who acts against the repository:
//   - "passthrough" (default): the request's Bearer credential is the
//     user's own repository token; requests without one may only read.
//   - "token": requests must carry "Authorization: Bearer <Token>" and act
//     with the server's repository token.
//   - "disabled": no authentication, every request acts with the server's
//     repository token. Suitable for local dev.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModePassthrough
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModePassthrough)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// Settings returns the template service settings the config describes.
func (c *Config) Settings() templateservice.Settings {
	return templateservice.Settings{
		DefaultBranch:      c.Repository.DefaultBranch,
		IndexPath:          c.Content.IndexPath,
		TemplatesDir:       c.Content.TemplatesDir,
		InputDir:           c.Content.InputDir,
		OutputDir:          c.Content.OutputDir,
		MessageFooter:      c.Content.MessageFooter,
		BlobConcurrency:    c.Limits.BlobConcurrency,
		BranchResetEnabled: c.BranchReset.Enabled,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	settings := templateservice.DefaultSettings()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Profile:  "development",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Repository: RepositoryConfig{
			Backend:       BackendGitHub,
			DefaultBranch: settings.DefaultBranch,
		},
		Content: ContentConfig{
			IndexPath:    settings.IndexPath,
			TemplatesDir: settings.TemplatesDir,
			InputDir:     settings.InputDir,
			OutputDir:    settings.OutputDir,
		},
		I18n: I18nConfig{
			ConfigFile: "config/i18n-config.json",
		},
		Journal: JournalConfig{
			Path: "./raido.db",
		},
		Limits: LimitsConfig{
			MaxRequestBytes: 50 << 20,
			BlobConcurrency: settings.BlobConcurrency,
		},
		Translate: TranslateConfig{
			Provider: ProviderNone,
		},
		Auth: AuthConfig{
			Mode: AuthModePassthrough,
		},
	}
}
