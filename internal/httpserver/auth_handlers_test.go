package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ayush-jadaun/VidVsita/internal/config"
	"github.com/ayush-jadaun/VidVsita/internal/middleware"
	"github.com/ayush-jadaun/VidVsita/internal/models"
	"github.com/ayush-jadaun/VidVsita/internal/repo"
	"github.com/ayush-jadaun/VidVsita/internal/service"
	"github.com/ayush-jadaun/VidVsita/internal/tokens"
)

type testEnv struct {
	e    *echo.Echo
	svc  *service.AuthService
	repo *repo.GormRepo
	cfg  config.TokenConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	cfg := config.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}

	r := &repo.GormRepo{DB: db}
	svc := &service.AuthService{Repo: r, Tokens: cfg}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc},
		Guards:      middleware.NewGuards(r, cfg),
	})

	return &testEnv{e: e, svc: svc, repo: r, cfg: cfg}
}

func (env *testEnv) do(t *testing.T, path string, body map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func registerAlice(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
	t.Helper()

	rec := env.do(t, "/api/auth/register", map[string]string{
		"name":     "A",
		"username": "Alice",
		"password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return rec
}

func TestRegisterThenLogin_CaseInsensitiveUsername(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := registerAlice(t, env)

	var created struct {
		Message string            `json:"message"`
		User    models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "User registered successfully", created.Message)
	assert.Equal(t, "alice", created.User.Username)
	assert.Equal(t, "A", created.User.Name)

	assert.NotEmpty(t, cookieByName(t, rec, "accessToken").Value)
	assert.NotEmpty(t, cookieByName(t, rec, "refreshToken").Value)

	stored, err := env.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, stored.ID)

	rec = env.do(t, "/api/auth/login", map[string]string{
		"username": "ALICE",
		"password": "Passw0rd!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var loggedIn struct {
		Message string            `json:"message"`
		User    models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loggedIn))
	assert.Equal(t, "Login successful", loggedIn.Message)
	assert.Equal(t, created.User.ID, loggedIn.User.ID)
}

func TestRegister_PolicyViolationCreatesNoUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, "/api/auth/register", map[string]string{
		"name":     "A",
		"username": "alice",
		"password": "weakpass",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, env.repo.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAlice(t, env)

	rec := env.do(t, "/api/auth/register", map[string]string{
		"name":     "B",
		"username": "ALICE",
		"password": "Passw0rd!",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username is already taken")

	var count int64
	require.NoError(t, env.repo.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Wrong password and unknown username must be indistinguishable on the
// wire, or the endpoint doubles as a username oracle.
func TestLogin_FailureBodiesIdentical(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	registerAlice(t, env)

	wrongPw := env.do(t, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "Wr0ngPass!",
	})
	unknown := env.do(t, "/api/auth/login", map[string]string{
		"username": "nobody",
		"password": "Passw0rd!",
	})

	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPw.Body.Bytes(), unknown.Body.Bytes())
}

func TestLogin_MissingFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, "/api/auth/login", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username and password are required")
}

func TestRefresh_RotatesCookiesAndRejectsReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := registerAlice(t, env)
	oldAccess := cookieByName(t, reg, "accessToken")
	oldRefresh := cookieByName(t, reg, "refreshToken")

	// tokens carry second-resolution timestamps; step past them so the
	// rotated pair cannot collide with the registration pair
	time.Sleep(1100 * time.Millisecond)

	rec := env.do(t, "/api/auth/refresh-token", nil, oldRefresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access token refreshed")

	newAccess := cookieByName(t, rec, "accessToken")
	newRefresh := cookieByName(t, rec, "refreshToken")
	assert.NotEmpty(t, newAccess.Value)
	assert.NotEqual(t, oldAccess.Value, newAccess.Value)
	assert.NotEqual(t, oldRefresh.Value, newRefresh.Value)

	// the stored digest moved with the rotation
	stored, err := env.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, tokens.Sha256Hex(newRefresh.Value), stored.RefreshToken)

	// the superseded refresh token is dead
	rec = env.do(t, "/api/auth/refresh-token", nil, oldRefresh)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefresh_MissingCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, "/api/auth/refresh-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Refresh token required")
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := registerAlice(t, env)
	access := cookieByName(t, reg, "accessToken")
	refresh := cookieByName(t, reg, "refreshToken")

	rec := env.do(t, "/api/auth/logout", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged out successfully")

	// both cookies are cleared client-side
	assert.Empty(t, cookieByName(t, rec, "accessToken").Value)
	assert.Empty(t, cookieByName(t, rec, "refreshToken").Value)
	assert.Negative(t, cookieByName(t, rec, "accessToken").MaxAge)

	// and the stored token is gone, so refresh is forbidden
	rec = env.do(t, "/api/auth/refresh-token", nil, refresh)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_ExpiredAccessTokenDistinguishedFromInvalid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := registerAlice(t, env)

	var created struct {
		User models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(reg.Body.Bytes(), &created))

	expired, _, err := tokens.Issue(created.User.ID.String(), env.cfg.AccessSecret, -time.Minute)
	require.NoError(t, err)

	rec := env.do(t, "/api/auth/logout", nil, &http.Cookie{Name: "accessToken", Value: expired})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access token expired")

	rec = env.do(t, "/api/auth/logout", nil, &http.Cookie{Name: "accessToken", Value: "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized, invalid token")
}

func TestLogin_SupersedesPreviousRefreshToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reg := registerAlice(t, env)
	firstRefresh := cookieByName(t, reg, "refreshToken")

	time.Sleep(1100 * time.Millisecond)

	rec := env.do(t, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "Passw0rd!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the registration-time refresh token was rotated out by the login
	rec = env.do(t, "/api/auth/refresh-token", nil, firstRefresh)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
