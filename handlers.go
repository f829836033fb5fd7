package folio

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/contact"
	"github.com/eringen/folio/importer"
	"github.com/eringen/folio/markdown"
)

const (
	homePosts    = 5
	homeProjects = 6

	// One contact message every few minutes per IP, with a small burst.
	contactRate  = 1.0 / 180
	contactBurst = 3

	metaDescriptionLen = 160
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	posts := a.Cache.ListPosts(ctx, "")
	projects := a.Cache.ListProjects(ctx)
	page := HomePage{
		Posts:    head(posts, homePosts),
		Projects: head(featuredFirst(projects), homeProjects),
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
			JSONLD:      WebsiteJsonLD(a.Config),
			SiteName:    a.Config.Name,
		},
	}
	return Render(c, a.Views.Home(page))
}

func (a *App) handlePosts(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.QueryParam("tag")
	meta := a.pageMeta("Blog", a.Config.Description, "website", "posts")
	return Render(c, a.Views.Posts(a.Cache.ListPosts(ctx, tag), tag, a.Cache.ListTags(ctx), meta))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, ok := a.Cache.GetPost(ctx, c.Param("slug"))
	if !ok {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	desc := post.Description
	if desc == "" {
		desc = markdown.PlainText(post.Content, metaDescriptionLen)
	}
	meta := a.pageMeta(post.Title, desc, "article", "posts", post.Slug)
	meta.JSONLD = BlogPostingJsonLD(post, a.Config)
	related := FilterRelatedPosts(post, a.Cache.ListPosts(ctx, ""))
	return Render(c, a.Views.Post(post, related, meta))
}

func (a *App) handleProjects(c echo.Context) error {
	meta := a.pageMeta("Projects", a.Config.Description, "website", "projects")
	return Render(c, a.Views.Projects(featuredFirst(a.Cache.ListProjects(c.Request().Context())), meta))
}

func (a *App) handleProject(c echo.Context) error {
	project, ok := a.Cache.GetProject(c.Request().Context(), c.Param("slug"))
	if !ok {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	meta := a.pageMeta(project.Title, project.Excerpt(), "article", "projects", project.Slug)
	return Render(c, a.Views.Project(project, meta))
}

func (a *App) pageMeta(title, desc, ogType string, path ...string) PageMeta {
	return PageMeta{
		Title:       title + " | " + a.Config.Name,
		Description: desc,
		URL:         BuildURL(a.Config.URL, path...),
		OGType:      ogType,
		SiteName:    a.Config.Name,
	}
}

func (a *App) handleContact(c echo.Context) error {
	if !a.contactLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many messages. Try again later."})
	}
	var req contact.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": contact.ErrMissingFields.Error()})
	}
	id, err := a.mailer.Send(c.Request().Context(), req)

	var (
		cfgErr      *contact.ConfigError
		providerErr *contact.ProviderError
	)
	switch {
	case err == nil:
		var msgID any
		if id != "" {
			msgID = id
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "id": msgID})
	case errors.Is(err, contact.ErrMissingFields), errors.Is(err, contact.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &cfgErr):
		a.Logger.Error("contact form is not configured", "missing", cfgErr.Missing)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case errors.As(err, &providerErr):
		a.Logger.Warn("email provider rejected contact message", "error", providerErr.Message)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": providerErr.Message})
	}
	a.Logger.Error("sending contact message", "error", err)
	msg := err.Error()
	if msg == "" {
		msg = "Server error."
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
}

func (a *App) handleImportSections(c echo.Context) error {
	doc, err := importer.FileSource{Path: a.Config.ImportFile}.Read(c.Request().Context())
	if err != nil {
		a.Logger.Error("reading import document", "path", a.Config.ImportFile, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read " + a.Config.ImportFile + "."})
	}
	return c.JSON(http.StatusOK, map[string]any{"sections": importer.ParseSections(doc)})
}

func (a *App) handleImportProjects(c echo.Context) error {
	doc, err := importer.FileSource{Path: a.Config.ImportFile}.Read(c.Request().Context())
	if err != nil {
		a.Logger.Error("reading import document", "path", a.Config.ImportFile, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not read " + a.Config.ImportFile + "."})
	}
	return c.JSON(http.StatusOK, map[string]any{"projects": importer.ParseProjects(doc)})
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	return a.renderSitemap(c, a.Cache.ListPosts(ctx, ""), a.Cache.ListProjects(ctx))
}

func (a *App) handleFeed(c echo.Context) error {
	ctx := c.Request().Context()
	return a.renderRSS(c, a.Cache.ListPosts(ctx, ""), a.Cache.ListProjects(ctx))
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/posts/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if isAPIRequest(c) {
		msg := http.StatusText(code)
		if ok && code < 500 {
			if s, isString := he.Message.(string); isString {
				msg = s
			}
		}
		if code >= 500 {
			a.Logger.Error("server error", "path", c.Request().URL.Path, "error", err)
		}
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	if code >= 500 {
		a.Logger.Error("server error", "path", c.Request().URL.Path, "error", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
