// Package i18n keeps locale index documents and the translation memory
// consistent with the master template index.
package i18n

import (
	"errors"
	"fmt"
	"path"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultMemoryPath is where the translation memory lives unless configured.
const DefaultMemoryPath = "scripts/i18n.json"

// RepositoryConfigPath is where a repository may carry its own locale config.
const RepositoryConfigPath = "config/i18n-config.json"

// Locale is one supported language.
type Locale struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	IndexFile string `yaml:"indexFile" json:"indexFile"`
	IsDefault bool   `yaml:"isDefault" json:"isDefault"`
}

// Validate validates the locale.
func (l *Locale) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Code, validation.Required),
		validation.Field(&l.IndexFile, validation.Required),
	)
}

// Config is the locale configuration shared by the sync engine and the
// translation memory updater.
type Config struct {
	SupportedLocales []Locale `yaml:"supportedLocales" json:"supportedLocales"`
	I18nDataPath     struct {
		Default  string `yaml:"default" json:"default"`
		Fallback string `yaml:"fallback" json:"fallback"`
	} `yaml:"i18nDataPath" json:"i18nDataPath"`
	TranslatableFields []string `yaml:"translatableFields" json:"translatableFields"`
	AutoSyncFields     struct {
		Fields []string `yaml:"fields" json:"fields"`
	} `yaml:"autoSyncFields" json:"autoSyncFields"`
}

// Validate checks that exactly one locale is the default.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.SupportedLocales, validation.Required),
	); err != nil {
		return err
	}
	defaults := 0
	seen := make(map[string]bool, len(c.SupportedLocales))
	for i := range c.SupportedLocales {
		l := &c.SupportedLocales[i]
		if err := l.Validate(); err != nil {
			return fmt.Errorf("supportedLocales[%d]: %w", i, err)
		}
		if seen[l.Code] {
			return fmt.Errorf("supportedLocales: duplicate code %q", l.Code)
		}
		seen[l.Code] = true
		if l.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		return errors.New("supportedLocales: exactly one locale must be the default")
	}
	return nil
}

// ParseConfig decodes and validates a locale configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("i18n: parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("i18n: invalid config: %w", err)
	}
	return &c, nil
}

// Default returns the default locale.
func (c *Config) Default() Locale {
	for _, l := range c.SupportedLocales {
		if l.IsDefault {
			return l
		}
	}
	return Locale{}
}

// Codes returns every locale code in configured order.
func (c *Config) Codes() []string {
	codes := make([]string, len(c.SupportedLocales))
	for i, l := range c.SupportedLocales {
		codes[i] = l.Code
	}
	return codes
}

// MemoryPath returns the repository path of the translation memory.
func (c *Config) MemoryPath() string {
	if c.I18nDataPath.Default != "" {
		return c.I18nDataPath.Default
	}
	return DefaultMemoryPath
}

// IndexPath returns the repository path of a locale's index document.
func IndexPath(l Locale) string {
	return path.Join("templates", l.IndexFile)
}

// translatable reports whether field holds per-locale text.
func (c *Config) translatable(field string) bool {
	switch field {
	case "title", "description", "tags":
		return true
	}
	for _, f := range c.TranslatableFields {
		if f == field {
			return true
		}
	}
	return false
}
