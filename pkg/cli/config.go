package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/vibeoracle/oracle/pkg/oracle"
)

const (
	// DefaultBaseDir is the directory under $HOME holding every app.
	DefaultBaseDir = ".vibeoracle"
	// DefaultConfigFile is the config file name inside the app directory.
	DefaultConfigFile = "config.yaml"
	// EnvAPIKey is consulted when a context carries no API key.
	EnvAPIKey = "GEMINI_API_KEY"
)

// Config is the kubectl-style configuration of the CLI: named contexts and
// the one in use.
type Config struct {
	AppName string `yaml:"-"`

	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is one named set of model settings.
type Context struct {
	Name string `yaml:"name"`

	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	// Model overrides; empty means the client default.
	TextModel   string `yaml:"text_model,omitempty"`
	SpeechModel string `yaml:"speech_model,omitempty"`
	LiveModel   string `yaml:"live_model,omitempty"`

	Voice string `yaml:"voice,omitempty"`

	// Language is the default reply language code.
	Language string `yaml:"language,omitempty"`

	// DataDir holds saved profiles and conversations. Empty means the app
	// data directory.
	DataDir string `yaml:"data_dir,omitempty"`
}

// ResolveAPIKey returns the context key, falling back to $GEMINI_API_KEY.
func (c *Context) ResolveAPIKey() string {
	if c != nil && c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(EnvAPIKey)
}

// Validate rejects values that would only fail later, mid-reading.
func (c *Context) Validate() error {
	if c.Language != "" && !oracle.IsLanguage(c.Language) {
		return fmt.Errorf("cli: unsupported language %q", c.Language)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("cli: invalid base url %q", c.BaseURL)
		}
	}
	return nil
}

// Redacted returns a copy with the API key masked, for display.
func (c *Context) Redacted() *Context {
	out := *c
	out.APIKey = MaskAPIKey(c.APIKey)
	return &out
}

// LoadConfig loads or creates the configuration of appName in its default
// location.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath is LoadConfig with an explicit file. A missing file is
// created empty.
func LoadConfigWithPath(appName, path string) (*Config, error) {
	if path == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("cli: locate home: %w", err)
		}
		path = paths.ConfigFile()
	}
	cfg := &Config{AppName: appName, path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg.Contexts = make(map[string]*Context)
		return cfg, cfg.Save()
	case err != nil:
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	return cfg, nil
}

// Save writes the configuration through a temporary file, readable only by
// the owner since it holds API keys.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("cli: create config dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.path }

// Dir returns the directory of the config file.
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// AddContext validates ctx and stores it under name, replacing any context
// of that name.
func (c *Config) AddContext(name string, ctx *Context) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("cli: context name is required")
	}
	if err := ctx.Validate(); err != nil {
		return err
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context. Deleting the current context leaves no
// context current.
func (c *Config) DeleteContext(name string) error {
	if _, err := c.GetContext(name); err != nil {
		return err
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext makes name the current context.
func (c *Config) UseContext(name string) error {
	if _, err := c.GetContext(name); err != nil {
		return err
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns the context called name.
func (c *Config) GetContext(name string) (*Context, error) {
	if ctx, ok := c.Contexts[name]; ok {
		return ctx, nil
	}
	return nil, fmt.Errorf("context %q not found", name)
}

// ResolveContext returns the named context, or the current one when name is
// empty. With no current context it returns an empty context so that
// $GEMINI_API_KEY alone is enough to run.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return &Context{}, nil
	}
	return c.GetContext(name)
}

// ListContexts returns the context names in sorted order.
func (c *Config) ListContexts() []string {
	return slices.Sorted(maps.Keys(c.Contexts))
}

// Redacted returns a copy of the configuration with every key masked.
func (c *Config) Redacted() *Config {
	out := &Config{AppName: c.AppName, CurrentContext: c.CurrentContext, Contexts: make(map[string]*Context, len(c.Contexts))}
	for name, ctx := range c.Contexts {
		out.Contexts[name] = ctx.Redacted()
	}
	return out
}

// MaskAPIKey keeps the first and last four characters of keys longer than
// eight and masks the rest.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
