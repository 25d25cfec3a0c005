// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - UserStore: user rows for registration and login (internal/auth/service.go)
//   - BookStore: owner-scoped book rows (internal/library/interfaces.go)
//   - Settings: key/value rows (internal/settingsstore/settingsstore.go)
//
// ## External Service Interfaces
//
//   - VolumeLookup: Google Books volumes search (internal/library/interfaces.go)
//   - CoverCache: local copies of cover images (internal/http/interfaces.go)
//
// ## Session Interfaces
//
//   - SessionWatcher: login state stream that drives a Provisioner (internal/library/provisioner.go)
//   - Searcher: ISBN search behind a SearchSlot (internal/library/search.go)
//
// ## Background Work Interfaces
//
//   - TaskQueue / Enqueuer: backlite task submission (internal/http/interfaces.go, internal/scheduler/cover_sync.go)
//   - Library: per-owner operations run by task processors (internal/tasks/books.go)
//   - OwnerLister: owners visited by the cover sync (internal/scheduler/cover_sync.go)
//
// # Adding a New Metadata Provider
//
// To look books up somewhere other than Google Books:
//
//  1. Implement VolumeLookup in internal/metadata/
//
//     type OpenLibraryClient struct {
//         httpClient *http.Client
//     }
//
//     func (c *OpenLibraryClient) Query(ctx context.Context, q string) (*VolumesResponse, error)
//
//     var _ library.VolumeLookup = (*OpenLibraryClient)(nil)
//
//  2. Pass it to library.NewService in entrypoint.go and cli/shell.go
//
// # Adding a New Background Task
//
//  1. Define the task and its queue config in internal/tasks/
//
//     type RefreshMetadataTask struct {
//         UserID uint `json:"user_id"`
//     }
//
//     func (t RefreshMetadataTask) Config() backlite.QueueConfig
//
//  2. Write a processor over tasks.LibraryFor and register the queue in entrypoint.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
