package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayush-jadaun/VidVsita/internal/config"
	"github.com/ayush-jadaun/VidVsita/internal/repo"
	"github.com/ayush-jadaun/VidVsita/internal/tokens"
)

// Context keys the guards attach the resolved identity under.
const (
	UserKey         = "user"
	RefreshTokenKey = "refreshToken"
)

type Guards struct {
	Repo   *repo.GormRepo
	Tokens config.TokenConfig
}

func NewGuards(r *repo.GormRepo, cfg config.TokenConfig) *Guards {
	return &Guards{Repo: r, Tokens: cfg}
}

// RequireAuth is the access guard: access-token cookie, verified with
// the access secret, then the user loaded without its secret columns.
// An expired token is reported distinctly from a forged one.
func (g *Guards) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie("accessToken")
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized, no access token")
		}

		claims, err := tokens.Parse(cookie.Value, g.Tokens.AccessSecret)
		if err != nil {
			if errors.Is(err, tokens.ErrExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized, invalid token")
		}

		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized, invalid token")
		}

		user, err := g.Repo.FindPublicByID(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found or account deactivated")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
		if !user.IsActive {
			return echo.NewHTTPError(http.StatusUnauthorized, "User not found or account deactivated")
		}

		c.Set(UserKey, user)
		return next(c)
	}
}

// RequireRefresh is the refresh guard. Signature validity alone does
// not authorize: the presented token's digest must equal the one
// stored on the user row, or a rotated-out or revoked token would
// still pass.
func (g *Guards) RequireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie("refreshToken")
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token required")
		}

		claims, err := tokens.Parse(cookie.Value, g.Tokens.RefreshSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "Invalid refresh token")
		}

		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "Invalid refresh token")
		}

		user, err := g.Repo.FindByID(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid refresh token")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
		}
		if user.RefreshToken != tokens.Sha256Hex(cookie.Value) {
			return echo.NewHTTPError(http.StatusForbidden, "Invalid refresh token")
		}

		c.Set(UserKey, user)
		c.Set(RefreshTokenKey, cookie.Value)
		return next(c)
	}
}
