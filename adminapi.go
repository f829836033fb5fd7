package folio

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
)

const (
	// firstSnapshotWait bounds how long a request waits for a new
	// controller's first snapshot before answering with a loading state.
	firstSnapshotWait = 2 * time.Second
	wsPingInterval    = 30 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// listAPI serves one collection's admin list page and its controller API.
type listAPI[R content.Record] struct {
	app   *App
	kind  content.Kind
	store *collection.Store[R]
	lists *admin.Registry[R]
	page  func(admin.Snapshot[R], string) templ.Component
}

type listResponse[R content.Record] struct {
	admin.Snapshot[R]
	Location string `json:"location"`
}

func newListAPI[R content.Record](a *App, kind content.Kind, store *collection.Store[R], lists *admin.Registry[R], page func(admin.Snapshot[R], string) templ.Component) *listAPI[R] {
	return &listAPI[R]{app: a, kind: kind, store: store, lists: lists, page: page}
}

func (l *listAPI[R]) register(g *echo.Group) {
	k := string(l.kind)
	g.GET("/"+k+"/", l.handlePage)
	g.GET("/ws/"+k, l.handleStream)

	api := "/api/" + k
	g.GET(api, l.handleSnapshot)
	g.POST(api+"/state", l.handleState)
	g.POST(api+"/select", l.handleSelect)
	g.POST(api+"/select-page", l.handleSelectPage)
	g.POST(api+"/actions/:action", l.handleAction)
	g.POST(api+"/confirm", l.handleConfirm)
	g.POST(api+"/cancel", l.handleCancel)
	g.POST(api+"/import", l.handleImport)
	g.DELETE(api+"/toasts/:id", l.handleDismiss)
	g.POST(api+"/records", createRecord[R](l.store))
	g.GET(api+"/records/:id", getRecord[R](l.store))
	g.PUT(api+"/records/:id", updateRecord[R](l.store))
}

func (l *listAPI[R]) path() string {
	return "/admin/" + string(l.kind) + "/"
}

// controller returns the session's controller, waiting briefly for its
// first snapshot when it is new.
func (l *listAPI[R]) controller(c echo.Context) *admin.Controller[R] {
	ctl := l.lists.Get(adminSessionID(c))
	awaitLoaded(c.Request().Context(), ctl, firstSnapshotWait)
	return ctl
}

func awaitLoaded[R content.Record](ctx context.Context, ctl *admin.Controller[R], limit time.Duration) {
	if ctl.Snapshot().Phase != admin.PhaseLoading {
		return
	}
	ch, stop := ctl.Changes()
	defer stop()
	timer := time.NewTimer(limit)
	defer timer.Stop()
	for ctl.Snapshot().Phase == admin.PhaseLoading {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *listAPI[R]) respond(c echo.Context, ctl *admin.Controller[R]) error {
	s := ctl.Snapshot()
	loc := s.State.Location(l.path())
	c.Response().Header().Set("HX-Replace-Url", loc)
	if htmx(c) {
		return Render(c, l.page(s, CsrfToken(c)))
	}
	return c.JSON(http.StatusOK, listResponse[R]{Snapshot: s, Location: loc})
}

func (l *listAPI[R]) handlePage(c echo.Context) error {
	ctl := l.controller(c)
	ctl.Seed(c.QueryParams())
	return Render(c, l.page(ctl.Snapshot(), CsrfToken(c)))
}

func (l *listAPI[R]) handleSnapshot(c echo.Context) error {
	ctl := l.controller(c)
	if q := c.QueryParams(); len(q) > 0 {
		ctl.Seed(q)
	}
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleState(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form body.")
	}
	ctl := l.controller(c)
	ctl.SetState(admin.ParseQuery(form))
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleSelect(c echo.Context) error {
	ctl := l.controller(c)
	ctl.Select(c.FormValue("id"), checked(c))
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleSelectPage(c echo.Context) error {
	ctl := l.controller(c)
	ctl.SelectPage(checked(c))
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleAction(c echo.Context) error {
	action, ok := admin.ParseAction(c.Param("action"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Unknown action.")
	}
	ctl := l.controller(c)
	if err := ctl.Request(action, c.FormValue("id")); err != nil {
		return controllerError(err)
	}
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleConfirm(c echo.Context) error {
	ctl := l.controller(c)
	// The action finishes even if the client goes away.
	if err := ctl.Confirm(context.WithoutCancel(c.Request().Context())); err != nil {
		return controllerError(err)
	}
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleCancel(c echo.Context) error {
	ctl := l.controller(c)
	if !ctl.Cancel() {
		return controllerError(admin.ErrBusy)
	}
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleImport(c echo.Context) error {
	ctl := l.controller(c)
	if err := ctl.Import(context.WithoutCancel(c.Request().Context())); err != nil {
		return controllerError(err)
	}
	return l.respond(c, ctl)
}

func (l *listAPI[R]) handleDismiss(c echo.Context) error {
	ctl := l.controller(c)
	if !ctl.Dismiss(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "Unknown notification.")
	}
	return l.respond(c, ctl)
}

// handleStream pushes a snapshot over a websocket after every controller
// change.
func (l *listAPI[R]) handleStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctl := l.lists.Get(adminSessionID(c))
	changes, stop := ctl.Changes()
	defer stop()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		s := ctl.Snapshot()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(listResponse[R]{Snapshot: s, Location: s.State.Location(l.path())})
	}
	if err := send(); err != nil {
		return nil
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteTimeout))
				return nil
			}
			if err := send(); err != nil {
				l.app.Logger.Debug("admin stream write failed", "kind", string(l.kind), "error", err)
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return nil
			}
		case <-gone:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func checked(c echo.Context) bool {
	switch c.FormValue("checked") {
	case "true", "on", "1":
		return true
	}
	return false
}

func controllerError(err error) error {
	switch {
	case errors.Is(err, admin.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, admin.ErrUnknownID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrBusy), errors.Is(err, admin.ErrNoConfirm):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
