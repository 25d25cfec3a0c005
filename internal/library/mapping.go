package library

import (
	"strings"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/metadata"
)

const (
	defaultTitle  = "Untitled"
	defaultAuthor = "Unknown author"
	defaultGenre  = "Unspecified"
)

func bookFromVolume(info metadata.VolumeInfo, ownerID uint, isbn string) *entities.Book {
	book := &entities.Book{
		UserID:          ownerID,
		Title:           defaultTitle,
		Author:          defaultAuthor,
		Genre:           defaultGenre,
		PublicationYear: metadata.ParsePublishedYear(info.PublishedDate),
		Description:     info.Description,
		ISBN:            isbn,
	}

	if title := strings.TrimSpace(info.Title); title != "" {
		book.Title = title
	}
	if len(info.Authors) > 0 {
		book.Author = strings.Join(info.Authors, ", ")
	}
	if len(info.Categories) > 0 && info.Categories[0] != "" {
		book.Genre = info.Categories[0]
	}
	if thumb := info.Thumbnail(); thumb != "" {
		book.ImageURL = &thumb
	}

	return book
}
