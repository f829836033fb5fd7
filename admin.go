package folio

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/auth"
	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
)

const recentLimit = 5

func (a *App) handleLoginPage(c echo.Context) error {
	if _, _, ok := a.currentAdmin(c); ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.Login(LoginForm{CSRFToken: CsrfToken(c)}))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	email := strings.TrimSpace(c.FormValue("email"))
	form := LoginForm{Email: email, CSRFToken: CsrfToken(c)}

	sess, sid, err := browserSession(c)
	if err != nil {
		return err
	}
	id, err := a.sessions.SignIn(sid, email, c.FormValue("password"))
	if err != nil {
		a.loginLimiter.Record(ip)
		form.Error = "Invalid email or password."
		return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(form))
	}
	if !a.gate.Authorized(&id) {
		a.sessions.SignOut(sid)
		a.Logger.Warn("sign-in refused by allow-list", "email", id.Email)
		form.Error = "This account does not have admin access."
		return RenderStatus(c, http.StatusForbidden, a.Views.Login(form))
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c, sess, id.Email); err != nil {
		return err
	}
	a.Logger.Info("admin signed in", "email", id.Email)
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleLogout(c echo.Context) error {
	if sess, sid, err := browserSession(c); err == nil && sess != nil {
		// Signing out re-runs the gate for this session's open controllers.
		a.sessions.SignOut(sid)
		a.postLists.Drop(sid)
		a.projectLists.Drop(sid)
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login/")
}

func (a *App) handleDashboard(c echo.Context) error {
	return Render(c, a.Views.Dashboard(a.dashboard(c.Request().Context(), adminIdentity(c)), CsrfToken(c)))
}

func (a *App) handleDashboardAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, a.dashboard(c.Request().Context(), adminIdentity(c)))
}

func (a *App) dashboard(ctx context.Context, id auth.Identity) Dashboard {
	return Dashboard{
		Identity: id,
		Posts:    stats(content.KindPost, a.Posts.List(ctx)),
		Projects: stats(content.KindProject, a.Projects.List(ctx)),
	}
}

// stats counts records, which arrive newest first.
func stats[R content.Record](kind content.Kind, records []R) CollectionStats {
	s := CollectionStats{Kind: kind, Recent: []Summary{}}
	for _, r := range records {
		if r.IsDraft() {
			s.Drafts++
		} else {
			s.Published++
		}
		if len(s.Recent) < recentLimit {
			s.Recent = append(s.Recent, Summary{
				ID:    r.GetID(),
				Title: r.GetTitle(),
				Slug:  r.GetSlug(),
				Date:  r.GetDate(),
				Draft: r.IsDraft(),
			})
		}
	}
	return s
}

// recordStore is the part of a collection store the record endpoints use.
type recordStore[R content.Record] interface {
	Get(ctx context.Context, id string) (R, error)
	Create(ctx context.Context, in content.Input) (string, error)
	Update(ctx context.Context, id string, in content.Input) error
}

func getRecord[R content.Record](store recordStore[R]) echo.HandlerFunc {
	return func(c echo.Context) error {
		r, err := store.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func createRecord[R content.Record](store recordStore[R]) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := bindInput(c)
		if err != nil {
			return err
		}
		id, err := store.Create(c.Request().Context(), in)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]any{"ok": true, "id": id})
	}
}

func updateRecord[R content.Record](store recordStore[R]) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := bindInput(c)
		if err != nil {
			return err
		}
		if err := store.Update(c.Request().Context(), c.Param("id"), in); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": true})
	}
}

// bindInput reads a JSON body, or form fields where list fields may be
// repeated or comma separated.
func bindInput(c echo.Context) (content.Input, error) {
	in := content.Input{}
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := c.Bind(&in); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body.")
		}
		return in, nil
	}
	form, err := c.FormParams()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid form body.")
	}
	for key, vals := range form {
		if key == "_csrf" || len(vals) == 0 {
			continue
		}
		switch key {
		case "categories", "tags":
			in[key] = vals
		case "draft", "featured":
			in[key] = vals[len(vals)-1] != "" && vals[len(vals)-1] != "false"
		default:
			in[key] = vals[0]
		}
	}
	return in, nil
}

// storeError maps store errors to JSON responses.
func storeError(c echo.Context, err error) error {
	var (
		invalid   *content.ValidationError
		conflict  *content.ConflictError
		notFound  *content.NotFoundError
		transport *collection.TransportError
	)
	switch {
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": invalid.Error(), "problems": invalid.Problems})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, map[string]any{"ok": false, "error": conflict.Error()})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": notFound.Error()})
	case errors.As(err, &transport):
		return c.JSON(http.StatusBadGateway, map[string]any{"ok": false, "error": transport.Error()})
	}
	return err
}
