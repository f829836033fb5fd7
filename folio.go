// Package folio is a portfolio and blog site built with Go, Echo, and templ.
// It serves published posts and projects, RSS and a sitemap, a contact
// form, and an admin area for managing both collections.
//
// Templates are supplied through the ViewFuncs struct; folio owns the
// handlers, middleware, storage and admin workflow.
package folio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"

	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/contact"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
	"github.com/eringen/folio/importer"
)

// ViewFuncs holds the templ components folio renders. Every field must be
// set; the views package provides defaults.
type ViewFuncs struct {
	Home        func(page HomePage) templ.Component
	Posts       func(posts []content.Post, tag string, tags []string, meta PageMeta) templ.Component
	Post        func(post content.Post, related []content.Post, meta PageMeta) templ.Component
	Projects    func(projects []content.Project, meta PageMeta) templ.Component
	Project     func(project content.Project, meta PageMeta) templ.Component
	Login       func(form LoginForm) templ.Component
	Dashboard   func(d Dashboard, csrfToken string) templ.Component
	PostList    func(s admin.Snapshot[content.Post], csrfToken string) templ.Component
	ProjectList func(s admin.Snapshot[content.Project], csrfToken string) templ.Component
	AdminImages func(images []Image, csrfToken string) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App is the central folio application. It wires together the store,
// cache, admin controllers, handlers and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	DB       *docstore.DB
	Posts    *collection.Store[content.Post]
	Projects *collection.Store[content.Project]
	Cache    *SiteCache
	Views    ViewFuncs
	Logger   *slog.Logger

	sessions       *auth.Sessions
	gate           *auth.Gate
	postLists      *admin.Registry[content.Post]
	projectLists   *admin.Registry[content.Project]
	images         *docstore.Collection
	loginLimiter   *LoginLimiter
	contactLimiter *contact.Limiter
	mailer         *contact.Mailer
	importSource   admin.ImportSource
	notifier       *docstore.RedisNotifier
	cron           *cron.Cron

	httpClient   *http.Client
	mailEndpoint string
	toastDelay   time.Duration
	customRoutes []func(*App)
	staticDir    string

	ctx    context.Context
	cancel context.CancelFunc
	ready  bool
}

// New creates a folio App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Logger:    slog.Default(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Config.UploadsDir == "" {
		a.Config.UploadsDir = filepath.Join(a.staticDir, uploadsSubdir)
	}
	return a
}

// Setup opens the database and builds every component, middleware and
// route. Start calls it when needed; tests call it directly.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return errors.New("folio: SESSION_SECRET is required")
	}
	accounts, err := auth.ParseAccounts(a.Config.AuthAccounts)
	if err != nil {
		return fmt.Errorf("folio: AUTH_ACCOUNTS: %w", err)
	}
	allow := auth.ParseAllowList(a.Config.AdminEmails)
	if allow.Len() == 0 {
		a.Logger.Warn("ADMIN_EMAILS is empty; nobody can use the admin area")
	}

	mailer, err := contact.NewMailer(contact.Config{
		APIKey:  a.Config.ResendAPIKey,
		To:      a.Config.ContactTo,
		From:    a.Config.ContactFrom,
		BaseURL: a.mailEndpoint,
	}, a.httpClient)
	if err != nil {
		return err
	}
	a.mailer = mailer

	a.ctx, a.cancel = context.WithCancel(ctx)

	var dbOpts []docstore.Option
	if a.Config.RedisURL != "" {
		n, err := docstore.NewRedisNotifier(a.ctx, a.Config.RedisURL, "", a.Logger)
		if err != nil {
			return fmt.Errorf("folio: connecting to redis: %w", err)
		}
		a.notifier = n
		dbOpts = append(dbOpts, docstore.WithNotifier(n))
	}

	db, err := docstore.Open(a.Config.DatabasePath, dbOpts...)
	if err != nil {
		return fmt.Errorf("folio: init store: %w", err)
	}
	a.DB = db
	a.Posts = collection.Posts(db, a.Logger)
	a.Projects = collection.Projects(db, a.Logger)
	a.images = db.Collection(imagesCollection)

	a.Cache = NewSiteCache(a.Posts, a.Projects, a.Config.CacheTTL)
	a.Cache.Watch(a.ctx)

	a.sessions = auth.NewSessions(accounts)
	a.gate = auth.NewGate(allow, a.sessions)

	if a.importSource == nil {
		a.importSource = admin.DocumentSource{Source: importer.FileSource{Path: a.Config.ImportFile}}
	}
	a.postLists = admin.NewRegistry(a.ctx, func(sid string) *admin.Controller[content.Post] {
		return admin.New(controllerOptions[content.Post](a, content.KindPost, sid, a.Posts))
	})
	a.projectLists = admin.NewRegistry(a.ctx, func(sid string) *admin.Controller[content.Project] {
		return admin.New(controllerOptions[content.Project](a, content.KindProject, sid, a.Projects))
	})

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.contactLimiter = contact.NewLimiter(contactRate, contactBurst)

	if err := a.startHousekeeping(); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

func controllerOptions[R content.Record](a *App, kind content.Kind, sid string, src admin.Source[R]) admin.Options[R] {
	return admin.Options[R]{
		Kind:       kind,
		SessionID:  sid,
		Source:     src,
		Gate:       a.gate,
		Importer:   a.importSource,
		RepoURL:    a.Config.ImportRepoURL,
		ToastDelay: a.toastDelay,
		Logger:     a.Logger,
	}
}

// Start runs Setup and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "url", a.Config.URL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public pages
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/rss.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blog/", handleBlogRedirect)
	e.GET("/posts/", a.handlePosts)
	e.GET("/posts/:slug/", a.handlePost)
	e.GET("/projects/", a.handleProjects)
	e.GET("/projects/:slug/", a.handleProject)

	// Public API
	e.POST("/api/contact", a.handleContact)
	e.GET("/api/thongtin-sections", a.handleImportSections)
	e.GET("/api/thongtin-projects", a.handleImportProjects)

	// Sign-in
	e.GET("/login/", a.handleLoginPage)
	e.POST("/login/", a.handleLogin)
	e.POST("/logout/", a.handleLogout)

	// Admin
	g := e.Group("/admin", a.requireAdmin)
	g.GET("/", a.handleDashboard)
	g.GET("/api/dashboard", a.handleDashboardAPI)
	g.GET("/images/", a.handleImageList)
	g.POST("/images/upload/", a.handleImageUpload)
	g.DELETE("/images/:filename/", a.handleImageDelete)

	newListAPI(a, content.KindPost, a.Posts, a.postLists, a.Views.PostList).register(g)
	newListAPI(a, content.KindProject, a.Projects, a.projectLists, a.Views.ProjectList).register(g)
}

// Close releases every resource. Call it after Shutdown.
func (a *App) Close() error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.postLists != nil {
		a.postLists.Close()
	}
	if a.projectLists != nil {
		a.projectLists.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	return errors.Join(errs...)
}
