package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/watch"
)

type fixture struct {
	db    *database.Database
	store *books.Repository
	hub   *watch.Hub
	users *users.Repository
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "library.db"), database.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:    db,
		store: books.NewRepository(db.DB),
		hub:   watch.NewHub(),
		users: users.NewRepository(db.DB),
	}
}

func (f *fixture) user(t *testing.T, email string) uint {
	t.Helper()
	id, err := f.users.InsertUser(&entities.User{Name: email, Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return id
}

func (f *fixture) service(ownerID uint, lookup VolumeLookup) *Service {
	svc := NewService(f.store, f.hub, lookup, ownerID)
	return svc
}

func (f *fixture) book(t *testing.T, svc *Service, title string) *entities.Book {
	t.Helper()
	book := &entities.Book{UserID: svc.OwnerID(), Title: title, Author: "Someone"}
	require.NoError(t, svc.Insert(context.Background(), book))
	return book
}

// googleFake serves a fixed volumes payload and records the queries it saw.
func googleFake(t *testing.T, status int, body string) (*metadata.GoogleBooksClient, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client := metadata.NewGoogleBooksClient(metadata.GoogleBooksConfig{BaseURL: server.URL, Timeout: 2 * time.Second})
	return client, &queries
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	var zero T
	return zero
}

func titles(list []entities.Book) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.Title)
	}
	return out
}
