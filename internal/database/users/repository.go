// Package users provides database operations for user management.
//
// Users are created on registration and never updated or deleted through
// this package.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.FindByEmail(email)
package users

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// ErrDuplicateEmail is returned when the unique email index rejects an insert.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertUser stores a new user and returns the assigned id.
func (r *Repository) InsertUser(user *entities.User) (uint, error) {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	return user.ID, nil
}

// FindByEmail returns the user registered with email.
func (r *Repository) FindByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("email = ?", email).Limit(1).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CountByEmail returns how many users are registered with email.
func (r *Repository) CountByEmail(email string) (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Where("email = ?", email).Count(&count).Error
	return count, err
}

// FindByID retrieves a user by ID.
func (r *Repository) FindByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Count returns the total number of registered users.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
