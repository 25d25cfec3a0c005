// Package library holds the per-user book operations.
//
// A Service is bound to one owner when it is built. Every mutation checks
// that the book belongs to that owner before the store is touched, and every
// successful write is published so live collections refresh.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/watch"
)

var (
	ErrOwnershipMismatch = errors.New("book does not belong to the current user")
	ErrBookExists        = errors.New("book already exists")
	ErrNotFound          = errors.New("book not found")
	ErrBookRequired      = errors.New("book is required")
	ErrUnknownView       = errors.New("unknown view")
)

// View selects one of the owner's collections.
type View string

const (
	ViewAll       View = "all"
	ViewFavorites View = "favorites"
	ViewRead      View = "read"
	ViewUnread    View = "unread"
)

// ParseView maps a query value to a View. An empty value means ViewAll.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewFavorites, ViewRead, ViewUnread:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Service performs book operations on behalf of a single owner.
type Service struct {
	store   BookStore
	hub     *watch.Hub
	lookup  VolumeLookup
	ownerID uint

	life  context.Context
	close context.CancelFunc
}

func NewService(store BookStore, hub *watch.Hub, lookup VolumeLookup, ownerID uint) *Service {
	life, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   store,
		hub:     hub,
		lookup:  lookup,
		ownerID: ownerID,
		life:    life,
		close:   cancel,
	}
}

// OwnerID returns the user id the service is bound to.
func (s *Service) OwnerID() uint {
	return s.ownerID
}

// Close ends every live collection opened through this service.
func (s *Service) Close() {
	s.close()
}

func (s *Service) checkOwner(book *entities.Book) error {
	if book == nil {
		return ErrBookRequired
	}
	if book.UserID != s.ownerID {
		return ErrOwnershipMismatch
	}
	return nil
}

func (s *Service) publish() {
	if s.hub != nil {
		s.hub.Publish(s.ownerID)
	}
}

// Insert stores a new book for the owner.
func (s *Service) Insert(ctx context.Context, book *entities.Book) error {
	if err := s.checkOwner(book); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	inserted, err := s.store.Insert(book)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	if !inserted {
		return ErrBookExists
	}

	s.publish()
	return nil
}

// Update overwrites the stored book with the given record. Concurrent updates
// are last-write-wins.
func (s *Service) Update(ctx context.Context, book *entities.Book) error {
	if err := s.checkOwner(book); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Update(book); err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update book %d: %w", book.ID, err)
	}

	s.publish()
	return nil
}

func (s *Service) Delete(ctx context.Context, book *entities.Book) error {
	if err := s.checkOwner(book); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Delete(book); err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete book %d: %w", book.ID, err)
	}

	s.publish()
	return nil
}

// ToggleFavorite flips the favorite flag of the given snapshot and writes it
// back. The caller's record is not modified; the written copy is returned.
func (s *Service) ToggleFavorite(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	return s.toggle(ctx, book, func(b *entities.Book) { b.IsFavorite = !b.IsFavorite })
}

// ToggleRead flips the read flag the same way ToggleFavorite does.
func (s *Service) ToggleRead(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	return s.toggle(ctx, book, func(b *entities.Book) { b.IsRead = !b.IsRead })
}

func (s *Service) toggle(ctx context.Context, book *entities.Book, flip func(*entities.Book)) (*entities.Book, error) {
	if err := s.checkOwner(book); err != nil {
		return nil, err
	}

	updated := *book
	flip(&updated)
	if err := s.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// live derives a context that also ends when the service is closed.
func (s *Service) live(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	context.AfterFunc(ctx, func() { stop() })
	return ctx
}

func (s *Service) fetcher(view View) (func() ([]entities.Book, error), error) {
	var list func(uint) ([]entities.Book, error)
	switch view {
	case ViewAll, "":
		list = s.store.ListAll
	case ViewFavorites:
		list = s.store.ListFavorites
	case ViewRead:
		list = s.store.ListRead
	case ViewUnread:
		list = s.store.ListUnread
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	return func() ([]entities.Book, error) { return list(s.ownerID) }, nil
}

// List returns a one-off snapshot of a collection.
func (s *Service) List(view View) ([]entities.Book, error) {
	fetch, err := s.fetcher(view)
	if err != nil {
		return nil, err
	}
	return fetch()
}

// Watch streams a collection: the full list now and again after every change
// to the owner's books. The channel closes when ctx is done or the service is
// closed.
func (s *Service) Watch(ctx context.Context, view View) (<-chan []entities.Book, error) {
	fetch, err := s.fetcher(view)
	if err != nil {
		return nil, err
	}
	return watch.Query(s.live(ctx), s.hub, s.ownerID, fetch), nil
}

func (s *Service) mustWatch(ctx context.Context, view View) <-chan []entities.Book {
	ch, _ := s.Watch(ctx, view)
	return ch
}

func (s *Service) All(ctx context.Context) <-chan []entities.Book {
	return s.mustWatch(ctx, ViewAll)
}

func (s *Service) Favorites(ctx context.Context) <-chan []entities.Book {
	return s.mustWatch(ctx, ViewFavorites)
}

func (s *Service) Read(ctx context.Context) <-chan []entities.Book {
	return s.mustWatch(ctx, ViewRead)
}

func (s *Service) Unread(ctx context.Context) <-chan []entities.Book {
	return s.mustWatch(ctx, ViewUnread)
}

// Get returns the owner's book with the given id, or ErrNotFound.
func (s *Service) Get(id uint) (*entities.Book, error) {
	book, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrNotFound
	}
	return book, nil
}

// find returns nil without error for id 0 and for missing books.
func (s *Service) find(id uint) (*entities.Book, error) {
	if id == 0 {
		return nil, nil
	}
	book, err := s.store.GetByID(id, s.ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return book, nil
}

// GetByID streams one book, delivering nil while it does not exist. An id of
// 0 always yields nil.
func (s *Service) GetByID(ctx context.Context, id uint) <-chan *entities.Book {
	return watch.Query(s.live(ctx), s.hub, s.ownerID, func() (*entities.Book, error) {
		return s.find(id)
	})
}

// SearchByISBN looks the ISBN up and maps the first match into an unsaved
// book owned by the bound user. Failures are logged and reported as not
// found.
func (s *Service) SearchByISBN(ctx context.Context, isbn string) (*entities.Book, bool) {
	normalized := metadata.NormalizeISBN(isbn)
	if normalized == "" {
		log.Printf("Search skipped, invalid ISBN %q", isbn)
		return nil, false
	}
	if s.lookup == nil {
		return nil, false
	}

	resp, err := s.lookup.Query(ctx, metadata.ISBNQuery(normalized))
	if err != nil {
		log.Printf("ISBN lookup for %s failed: %v", normalized, err)
		return nil, false
	}
	if resp == nil || len(resp.Items) == 0 {
		return nil, false
	}

	return bookFromVolume(resp.Items[0].VolumeInfo, s.ownerID, normalized), true
}

// ImportByISBN looks the ISBN up and saves the result to the library.
func (s *Service) ImportByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	book, ok := s.SearchByISBN(ctx, isbn)
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.Insert(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// BackfillCovers fetches thumbnails for the owner's books that have an ISBN
// but no image. Books that fail or have no thumbnail are skipped. It returns
// how many books were updated.
func (s *Service) BackfillCovers(ctx context.Context) (int, error) {
	missing, err := s.store.ListMissingCovers(s.ownerID)
	if err != nil {
		return 0, fmt.Errorf("list books without covers: %w", err)
	}

	updated := 0
	for i := range missing {
		if err := ctx.Err(); err != nil {
			s.publishIf(updated > 0)
			return updated, err
		}

		book := &missing[i]
		found, ok := s.SearchByISBN(ctx, book.ISBN)
		if !ok || found.ImageURL == nil {
			continue
		}

		book.ImageURL = found.ImageURL
		if err := s.store.Update(book); err != nil {
			log.Printf("Failed to store cover for book %d: %v", book.ID, err)
			continue
		}
		updated++
	}

	s.publishIf(updated > 0)
	return updated, nil
}

func (s *Service) publishIf(changed bool) {
	if changed {
		s.publish()
	}
}
