package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/library"
)

// Library is the per-owner book service a task runs against.
// *library.Service implements it.
type Library interface {
	ImportByISBN(ctx context.Context, isbn string) (*entities.Book, error)
	BackfillCovers(ctx context.Context) (int, error)
}

// LibraryFor returns the library of one owner.
type LibraryFor func(ownerID uint) Library

func retention() *backlite.Retention {
	return &backlite.Retention{
		Duration:   24 * time.Hour,
		OnlyFailed: false,
		Data:       &backlite.RetainData{OnlyFailed: true},
	}
}

// ImportISBNTask adds the book found for ISBN to the owner's library.
type ImportISBNTask struct {
	UserID uint   `json:"user_id"`
	ISBN   string `json:"isbn"`
}

func (t ImportISBNTask) OwnerID() uint { return t.UserID }

// Config allows a single attempt: lookup failures already surface as
// library.ErrNotFound.
func (t ImportISBNTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_isbn",
		MaxAttempts: 1,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention:   retention(),
	}
}

func ImportISBNProcessor(libraryFor LibraryFor) backlite.QueueProcessor[ImportISBNTask] {
	return func(ctx context.Context, task ImportISBNTask) error {
		if task.UserID == 0 {
			return errors.New("import task without owner")
		}

		book, err := libraryFor(task.UserID).ImportByISBN(ctx, task.ISBN)
		if errors.Is(err, library.ErrBookExists) {
			log.Printf("[TASK] ISBN %s already in library of user %d", task.ISBN, task.UserID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("import ISBN %s for user %d: %w", task.ISBN, task.UserID, err)
		}

		log.Printf("[TASK] Imported %q (ISBN %s) for user %d", book.Title, task.ISBN, task.UserID)
		return nil
	}
}

func NewImportISBNQueue(libraryFor LibraryFor) backlite.Queue {
	return backlite.NewQueue(ImportISBNProcessor(libraryFor))
}

// BackfillCoversTask fetches missing cover images for one owner's books.
type BackfillCoversTask struct {
	UserID uint `json:"user_id"`
}

func (t BackfillCoversTask) OwnerID() uint { return t.UserID }

func (t BackfillCoversTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "backfill_covers",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention:   retention(),
	}
}

func BackfillCoversProcessor(libraryFor LibraryFor) backlite.QueueProcessor[BackfillCoversTask] {
	return func(ctx context.Context, task BackfillCoversTask) error {
		if task.UserID == 0 {
			return errors.New("backfill task without owner")
		}

		updated, err := libraryFor(task.UserID).BackfillCovers(ctx)
		if err != nil {
			return fmt.Errorf("backfill covers for user %d: %w", task.UserID, err)
		}

		log.Printf("[TASK] Backfilled %d covers for user %d", updated, task.UserID)
		return nil
	}
}

func NewBackfillCoversQueue(libraryFor LibraryFor) backlite.Queue {
	return backlite.NewQueue(BackfillCoversProcessor(libraryFor))
}
