package internal

import (
	"io"

	"github.com/starford/raido/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	opener    storage.Opener
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the structured log. The MCP server logs to
// stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithOpener replaces the repository backend selected by the config.
func WithOpener(o storage.Opener) Option {
	return func(a *application) {
		a.opener = o
	}
}
