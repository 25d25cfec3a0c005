package entities

import "time"

type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	User            *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title           string    `gorm:"index;size:512" json:"title"`
	Author          string    `gorm:"size:256" json:"author"`
	Genre           string    `gorm:"size:128" json:"genre"`
	PublicationYear int       `json:"publication_year"`
	Description     string    `gorm:"type:text" json:"description"`
	IsFavorite      bool      `gorm:"not null;default:false" json:"is_favorite"`
	IsRead          bool      `gorm:"not null;default:false" json:"is_read"`
	ImageURL        *string   `gorm:"size:2048" json:"image_url,omitempty"`
	ISBN            string    `gorm:"index;size:20" json:"isbn,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasCover reports whether the book carries a non-empty image URL.
func (b *Book) HasCover() bool {
	return b.ImageURL != nil && *b.ImageURL != ""
}
