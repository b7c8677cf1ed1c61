package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayush-jadaun/VidVsita/internal/hash"
	"github.com/ayush-jadaun/VidVsita/internal/logging"
	"github.com/ayush-jadaun/VidVsita/internal/middleware"
	"github.com/ayush-jadaun/VidVsita/internal/models"
	"github.com/ayush-jadaun/VidVsita/internal/repo"
	"github.com/ayush-jadaun/VidVsita/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) setAuthCookies(c echo.Context, pair *service.TokenPair) {
	secure := h.Svc.Tokens.SecureCookies
	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp, secure))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp, secure))
}

func (h *AuthHTTP) clearAuthCookies(c echo.Context) {
	secure := h.Svc.Tokens.SecureCookies
	c.SetCookie(DeleteCookie("accessToken", "/", secure))
	c.SetCookie(DeleteCookie("refreshToken", "/", secure))
}

// httpError maps service failures onto the response taxonomy. Anything
// unrecognized becomes a generic 500; details stay in the log.
func httpError(err error) *echo.HTTPError {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, hash.ErrWeakPassword):
		return echo.NewHTTPError(http.StatusBadRequest, hash.ErrWeakPassword.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, service.ErrConflict.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, repo.ErrStaleRefresh):
		return echo.NewHTTPError(http.StatusConflict, "Session was updated concurrently, please retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Register(ctx, req.Name, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.setAuthCookies(c, &res.TokenPair)

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    res.User,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.setAuthCookies(c, &res.TokenPair)

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"user":    res.User,
	})
}

// Logout clears the cookies client-side even when the server-side
// revocation fails; the 500 then only signals that the stored token
// may still be live.
func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get(middleware.UserKey).(*models.User)
	if ok {
		if err := h.Svc.Logout(ctx, user); err != nil {
			h.clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
	}

	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Logged out successfully",
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := c.Get(middleware.UserKey).(*models.User)
	presented, ok2 := c.Get(middleware.RefreshTokenKey).(string)
	if !ok || !ok2 {
		return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token required")
	}

	res, err := h.Svc.Refresh(ctx, user, presented)
	if err != nil {
		return httpError(err)
	}

	h.setAuthCookies(c, &res.TokenPair)

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Access token refreshed",
	})
}
