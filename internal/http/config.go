package http

import (
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/watch"
)

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Books    library.BookStore
	Hub      *watch.Hub
	Lookup   library.VolumeLookup

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	Tokens         *auth.TokenIssuer
	RateLimiter    *auth.RateLimiter
	CSRFSecret     []byte
	SecureCookies  bool

	// Background work (optional)
	TaskClient TaskQueue
	CoverSync  CoverSyncReporter
	CoverCache CoverCache

	// Application info
	Version string
}
