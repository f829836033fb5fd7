package folio

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
// HEAD requests get the headers only.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	if c.Request().Method == http.MethodHead {
		return nil
	}
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// htmx reports whether the request came from an htmx swap. Admin list
// handlers answer those with the rendered page instead of JSON.
func htmx(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}
