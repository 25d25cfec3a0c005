package library

import (
	"context"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/metadata"
)

// BookStore is the owner-scoped persistence a Service writes through.
// books.Repository implements it.
type BookStore interface {
	ListAll(ownerID uint) ([]entities.Book, error)
	ListFavorites(ownerID uint) ([]entities.Book, error)
	ListRead(ownerID uint) ([]entities.Book, error)
	ListUnread(ownerID uint) ([]entities.Book, error)
	ListMissingCovers(ownerID uint) ([]entities.Book, error)
	GetByID(id, ownerID uint) (*entities.Book, error)
	Insert(book *entities.Book) (bool, error)
	Update(book *entities.Book) error
	Delete(book *entities.Book) error
}

// VolumeLookup runs a metadata search. metadata.GoogleBooksClient
// implements it.
type VolumeLookup interface {
	Query(ctx context.Context, q string) (*metadata.VolumesResponse, error)
}
