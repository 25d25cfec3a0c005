package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/covers"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/settings"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/settingsstore"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// UserStore implementations
var _ auth.UserStore = (*users.Repository)(nil)

// BookStore implementations
var _ library.BookStore = (*books.Repository)(nil)

// Settings implementations
var _ settingsstore.Settings = (*settings.Repository)(nil)

// =============================================================================
// External Services
// =============================================================================

// VolumeLookup implementations
var _ library.VolumeLookup = (*metadata.GoogleBooksClient)(nil)

// CoverCache implementations
var _ http.CoverCache = (*covers.Cache)(nil)

// =============================================================================
// Sessions
// =============================================================================

// SessionWatcher implementations
var _ library.SessionWatcher = (*auth.Session)(nil)

// Searcher implementations
var _ library.Searcher = (*library.Service)(nil)

// =============================================================================
// Background Work
// =============================================================================

// Library implementations used by task processors
var _ tasks.Library = (*library.Service)(nil)

// TaskQueue implementations
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)

// OwnerLister implementations
var _ scheduler.OwnerLister = (*books.Repository)(nil)

// CoverSyncReporter implementations
var _ http.CoverSyncReporter = (*scheduler.CoverSyncScheduler)(nil)
