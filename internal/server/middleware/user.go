package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const UserHeader = "X-User-ID"

// UserMiddleware attaches the requesting user named by the X-User-ID header.
// Authentication happens upstream; the header is trusted as is.
func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc, ok := c.(*AppContext)
		if !ok {
			return next(c)
		}
		if id := strings.TrimSpace(c.Request().Header.Get(UserHeader)); id != "" {
			cc.User = &AppUser{UserID: id}
		}
		return next(cc)
	}
}

// RequireUser rejects requests without a requesting user.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc, ok := c.(*AppContext)
		if !ok || cc.User == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"message": "Unauthorized",
			})
		}
		return next(c)
	}
}
