package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// ctxActor extracts the authenticated caller injected by the Auth middleware
// and performs a fast-fail check before any service call: both user_id and
// role must be present, otherwise the token is structurally valid but
// operationally unusable.
func ctxActor(c echo.Context) (ports.Actor, error) {
	userID, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	if userID == "" || role == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return ports.Actor{ID: userID, Role: role}, nil
}
