package entrypoint

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/bookshelf/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(t.TempDir(), "bookshelf.db")
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.SessionLifetime = time.Hour
	cfg.Auth.TokenExpiry = time.Hour
	cfg.GoogleBooks.BaseURL = "http://127.0.0.1:1"
	cfg.Tasks.Workers = 1
	cfg.CoverSync.Schedule = "0 3 * * *"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

func get(app *App, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	return rr
}

// register creates an account over the API and returns its bearer token.
func register(t *testing.T, app *App) string {
	t.Helper()

	rr := get(app, "/api/auth/csrf", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var csrf struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &csrf))

	body := `{"name":"Ana","email":"ana@x.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf.Token)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestNewApp_WithoutTasks(t *testing.T) {
	app := newApp(t, testConfig(t))

	rr := get(app, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"tasks": "disabled"`)

	assert.Nil(t, app.taskClient)
	assert.Nil(t, app.coverSync)
	assert.Equal(t, http.StatusUnauthorized, get(app, "/api/books", "").Code)
}

func TestNewApp_WithTasks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tasks.Enabled = true
	cfg.CoverSync.Enabled = true
	app := newApp(t, cfg)

	rr := get(app, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"tasks": "enabled"`)
	require.NotNil(t, app.coverSync)
	assert.True(t, app.coverSync.IsRunning())

	token := register(t, app)

	rr = get(app, "/api/books/covers/sync", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Daily at 03:00")

	assert.Equal(t, http.StatusNotFound, get(app, "/api/tasks/does-not-exist", token).Code)
}

func TestNewApp_CoverCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Covers.CacheDir = filepath.Join(t.TempDir(), "covers")
	app := newApp(t, cfg)

	token := register(t, app)

	// The book does not exist, but the route is there and authenticated
	rr := get(app, "/api/books/99/cover", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "book not found")
	assert.DirExists(t, cfg.Covers.CacheDir)
}

func TestNewApp_InvalidCoverSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tasks.Enabled = true
	cfg.CoverSync.Enabled = true
	cfg.CoverSync.Schedule = "whenever"

	_, err := NewApp(cfg, "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
}

func TestSecret(t *testing.T) {
	decoded, err := secret("00ff", "X")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, decoded)

	raw, err := secret("not hex at all", "X")
	require.NoError(t, err)
	assert.Equal(t, []byte("not hex at all"), raw)

	generated, err := secret("", "X")
	require.NoError(t, err)
	assert.Len(t, generated, 32)

	again, err := secret("", "X")
	require.NoError(t, err)
	assert.NotEqual(t, hex.EncodeToString(generated), hex.EncodeToString(again))
}
