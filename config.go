package folio

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/eringen/folio/admin"
)

// SiteConfig holds all configuration for a folio site. It is read from the
// environment by LoadConfig.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // default "Portfolio"
	URL         string `env:"SITE_URL"`         // canonical URL (default "http://localhost:3000")
	Description string `env:"SITE_DESCRIPTION"` // RSS and meta description
	Author      string `env:"SITE_AUTHOR"`      // JSON-LD author

	Addr         string `env:"ADDR"`          // default ":3000"
	DatabasePath string `env:"DATABASE_PATH"` // default "data/folio.db"
	UploadsDir   string `env:"UPLOADS_DIR"`   // default "<static dir>/uploads"

	SessionSecret string `env:"SESSION_SECRET"` // required
	CookieSecure  bool   `env:"COOKIE_SECURE"`
	AdminEmails   string `env:"ADMIN_EMAILS"`  // comma separated allow-list
	AuthAccounts  string `env:"AUTH_ACCOUNTS"` // email=bcrypt-hash pairs

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ContactTo    string `env:"CONTACT_RECEIVER_EMAIL"`
	ContactFrom  string `env:"CONTACT_FROM_EMAIL"`

	ImportFile    string `env:"IMPORT_FILE"` // default "thongtin.md"
	ImportRepoURL string `env:"IMPORT_REPO_URL"`

	RedisURL string `env:"REDIS_URL"`

	CacheTTL time.Duration `env:"CACHE_TTL"` // default 5m
	LogLevel string        `env:"LOG_LEVEL"` // debug, info, warn, error
}

// LoadConfig reads SiteConfig from the environment and applies defaults.
func LoadConfig() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("folio: parsing environment: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Portfolio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/folio.db"
	}
	if c.ImportFile == "" {
		c.ImportFile = "thongtin.md"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c SiteConfig) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithHTTPClient sets the client used for outgoing calls to the email
// provider.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) {
		a.httpClient = client
	}
}

// WithMailEndpoint overrides the base URL of the email provider API.
func WithMailEndpoint(url string) Option {
	return func(a *App) {
		a.mailEndpoint = url
	}
}

// WithImportSource replaces the profile document import source.
func WithImportSource(src admin.ImportSource) Option {
	return func(a *App) {
		a.importSource = src
	}
}

// WithToastDelay sets how long admin notifications stay visible.
func WithToastDelay(d time.Duration) Option {
	return func(a *App) {
		a.toastDelay = d
	}
}
