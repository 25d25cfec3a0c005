// Package books provides per-owner database operations for books.
//
// Every query except OwnerIDs is scoped by the owner's user id. Lists are
// ordered by title.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	favorites, err := repo.ListFavorites(userID)
package books

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// ErrBookNotFound is returned by Update and Delete when no row matches both
// the book id and its owner.
var ErrBookNotFound = errors.New("book not found")

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) list(ownerID uint, scope func(*gorm.DB) *gorm.DB) ([]entities.Book, error) {
	books := []entities.Book{}
	query := r.db.Where("user_id = ?", ownerID)
	if scope != nil {
		query = scope(query)
	}
	err := query.Order("title ASC").Find(&books).Error
	return books, err
}

func flag(column string, value bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}

// ListAll returns every book owned by ownerID.
func (r *Repository) ListAll(ownerID uint) ([]entities.Book, error) {
	return r.list(ownerID, nil)
}

// ListFavorites returns the owner's books marked as favorite.
func (r *Repository) ListFavorites(ownerID uint) ([]entities.Book, error) {
	return r.list(ownerID, flag("is_favorite", true))
}

// ListRead returns the owner's books marked as read.
func (r *Repository) ListRead(ownerID uint) ([]entities.Book, error) {
	return r.list(ownerID, flag("is_read", true))
}

// ListUnread returns the owner's books not yet read.
func (r *Repository) ListUnread(ownerID uint) ([]entities.Book, error) {
	return r.list(ownerID, flag("is_read", false))
}

// ListMissingCovers returns the owner's books that have an ISBN but no image.
func (r *Repository) ListMissingCovers(ownerID uint) ([]entities.Book, error) {
	return r.list(ownerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("isbn <> '' AND (image_url IS NULL OR image_url = '')")
	})
}

// GetByID looks a book up by id and owner. A book owned by someone else is
// reported as gorm.ErrRecordNotFound.
func (r *Repository) GetByID(id, ownerID uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("id = ? AND user_id = ?", id, ownerID).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Insert stores book. A primary key collision is ignored; the returned flag
// reports whether a row was written.
func (r *Repository) Insert(book *entities.Book) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(book)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update overwrites every column of the stored row matching the book's id and
// owner, including false and empty values.
func (r *Repository) Update(book *entities.Book) error {
	book.UpdatedAt = time.Now()
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND user_id = ?", book.ID, book.UserID).
		Select("*").
		Omit("id", "user_id", "created_at", "User").
		Updates(book)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// Delete removes the row matching the book's id and owner.
func (r *Repository) Delete(book *entities.Book) error {
	result := r.db.Where("id = ? AND user_id = ?", book.ID, book.UserID).Delete(&entities.Book{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// OwnerIDs returns the distinct ids of users that own at least one book.
func (r *Repository) OwnerIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&entities.Book{}).Distinct().Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
