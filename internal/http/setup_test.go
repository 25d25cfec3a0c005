package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/tasks"
	"github.com/mrlokans/bookshelf/internal/watch"
)

var testTokenSecret = []byte("test-token-secret-32-bytes-long!")

const duneVolumes = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "Dune",
      "authors": ["Frank Herbert"],
      "publishedDate": "1965",
      "categories": ["Fiction"],
      "imageLinks": {"thumbnail": "http://books.google.com/dune.jpg"}
    }
  }]
}`

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "http.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type apiEnv struct {
	router  *gin.Engine
	cfg     RouterConfig
	service *auth.Service
	tokens  *auth.TokenIssuer
	books   *books.Repository
}

// setupAPI builds the full router over a temp database and a fake Google
// Books server that answers every query with volumes.
func setupAPI(t *testing.T, volumes string, opts ...func(*RouterConfig)) *apiEnv {
	t.Helper()
	db := setupTestDB(t)

	authCfg := config.Auth{
		BcryptCost:      bcrypt.MinCost,
		SessionLifetime: time.Hour,
		TokenExpiry:     time.Hour,
	}
	service := auth.NewService(users.NewRepository(db.DB), authCfg)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)
	tokens := auth.NewTokenIssuer(testTokenSecret, authCfg.TokenExpiry)

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(volumes))
	}))
	t.Cleanup(google.Close)

	repo := books.NewRepository(db.DB)
	cfg := RouterConfig{
		Database:       db,
		Books:          repo,
		Hub:            watch.NewHub(),
		Lookup:         metadata.NewGoogleBooksClient(metadata.GoogleBooksConfig{BaseURL: google.URL}),
		AuthService:    service,
		SessionManager: sessions,
		Tokens:         tokens,
		Version:        "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &apiEnv{
		router:  NewRouter(cfg),
		cfg:     cfg,
		service: service,
		tokens:  tokens,
		books:   repo,
	}
}

// user registers an account and returns its id and a bearer token.
func (e *apiEnv) user(t *testing.T, email string) (uint, string) {
	t.Helper()
	user, err := e.service.Register(context.Background(), "User", email, "secret1")
	require.NoError(t, err)
	token, _, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return user.ID, token
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// fakeQueue records enqueued tasks and reports them as pending to their
// owner.
type fakeQueue struct {
	tasks  []backlite.Task
	owners map[string]uint
}

func (q *fakeQueue) Enqueue(_ context.Context, batch ...backlite.Task) ([]string, error) {
	if q.owners == nil {
		q.owners = make(map[string]uint)
	}
	ids := make([]string, 0, len(batch))
	for _, task := range batch {
		q.tasks = append(q.tasks, task)
		id := fmt.Sprintf("task-%d", len(q.tasks))
		if owned, ok := task.(tasks.Owned); ok {
			q.owners[id] = owned.OwnerID()
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *fakeQueue) Status(_ context.Context, ownerID uint, id string) (string, error) {
	owner, ok := q.owners[id]
	if !ok || owner != ownerID {
		return "not_found", nil
	}
	return "pending", nil
}
