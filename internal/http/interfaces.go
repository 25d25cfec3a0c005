package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/settingsstore"
)

// TaskQueue enqueues background work and reports on it. Status only
// answers for tasks owned by ownerID. tasks.Client implements it.
type TaskQueue interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, ownerID uint, taskID string) (string, error)
}

// CoverSyncReporter describes the scheduled cover sync.
// scheduler.CoverSyncScheduler implements it.
type CoverSyncReporter interface {
	Status() settingsstore.CoverSyncStatus
}

// CoverCache keeps local copies of cover images. covers.Cache implements it.
type CoverCache interface {
	Get(ctx context.Context, bookID uint, coverURL string) (string, error)
	Invalidate(bookID uint) error
}
