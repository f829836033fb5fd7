package folio

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/folio/auth"
)

const (
	sessionName     = "admin_session"
	sessionIDKey    = "sid"
	sessionEmailKey = "email"

	ctxSessionID = "folio.sid"
	ctxIdentity  = "folio.identity"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			a.Logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") || strings.HasPrefix(path, "/admin/ws/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self' ws: wss:",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			// Public JSON endpoints carry no session state.
			return strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/api/") ||
				strings.HasPrefix(path, "/admin/api/") ||
				strings.HasPrefix(path, "/admin/ws/") ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/rss.xml" ||
				path == "/robots.txt" || path == "/favicon.svg" ||
				path == "/blog"
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/rss.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
		case strings.HasPrefix(path, "/admin"), strings.HasPrefix(path, "/api/"),
			strings.HasPrefix(path, "/login"), strings.HasPrefix(path, "/logout"):
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// requireAdmin lets authorized sessions through. Others are sent to the
// sign-in page, or get a JSON 401 on API and websocket routes.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, sid, ok := a.currentAdmin(c)
		if !ok {
			if isAPIRequest(c) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return c.Redirect(http.StatusSeeOther, "/login/")
		}
		c.Set(ctxSessionID, sid)
		c.Set(ctxIdentity, id)
		return next(c)
	}
}

func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/admin/api/") ||
		strings.HasPrefix(path, "/admin/ws/") ||
		strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// currentAdmin restores the identity carried by the session cookie and runs
// it through the gate.
func (a *App) currentAdmin(c echo.Context) (auth.Identity, string, bool) {
	sess, _ := session.Get(sessionName, c)
	if sess == nil {
		return auth.Identity{}, "", false
	}
	sid, _ := sess.Values[sessionIDKey].(string)
	email, _ := sess.Values[sessionEmailKey].(string)
	if sid == "" || email == "" {
		return auth.Identity{}, "", false
	}
	if _, ok := a.sessions.Restore(sid, email); !ok {
		return auth.Identity{}, "", false
	}
	id, ok := a.gate.Check(sid)
	return id, sid, ok
}

// browserSession returns the session cookie's id, issuing one on first use.
func browserSession(c echo.Context) (*sessions.Session, string, error) {
	sess, err := session.Get(sessionName, c)
	if sess == nil {
		return nil, "", err
	}
	sid, _ := sess.Values[sessionIDKey].(string)
	if sid == "" {
		sid = uuid.NewString()
		sess.Values[sessionIDKey] = sid
	}
	return sess, sid, nil
}

func setAdminSession(c echo.Context, sess *sessions.Session, email string) error {
	sess.Values[sessionEmailKey] = email
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if sess == nil {
		return err
	}
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

func adminIdentity(c echo.Context) auth.Identity {
	id, _ := c.Get(ctxIdentity).(auth.Identity)
	return id
}

func adminSessionID(c echo.Context) string {
	sid, _ := c.Get(ctxSessionID).(string)
	return sid
}
