package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayush-jadaun/VidVsita/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Guards      *middleware.Guards
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api/auth")
	api.POST("/register", d.AuthHandler.Register)
	api.POST("/login", d.AuthHandler.Login)
	api.POST("/logout", d.AuthHandler.Logout, d.Guards.RequireAuth)
	api.POST("/refresh-token", d.AuthHandler.Refresh, d.Guards.RequireRefresh)
}
