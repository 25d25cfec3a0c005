package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/metadata"
)

// BooksResponse is one snapshot of a collection.
type BooksResponse struct {
	Books []entities.Book `json:"books"`
	Count int             `json:"count"`
	View  library.View    `json:"view"`
}

// BookRequest is the body of create and update calls. UserID may be left
// out; when set it must be the caller's own id.
type BookRequest struct {
	UserID          uint    `json:"user_id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Genre           string  `json:"genre"`
	PublicationYear int     `json:"publication_year"`
	Description     string  `json:"description"`
	IsFavorite      *bool   `json:"is_favorite"`
	IsRead          *bool   `json:"is_read"`
	ImageURL        *string `json:"image_url"`
	ISBN            string  `json:"isbn"`
}

// apply copies the request onto book. Flags left out keep their value.
func (r BookRequest) apply(book *entities.Book) {
	book.Title = strings.TrimSpace(r.Title)
	book.Author = strings.TrimSpace(r.Author)
	book.Genre = strings.TrimSpace(r.Genre)
	book.PublicationYear = r.PublicationYear
	book.Description = r.Description
	book.ImageURL = r.ImageURL
	book.ISBN = r.ISBN
	if r.IsFavorite != nil {
		book.IsFavorite = *r.IsFavorite
	}
	if r.IsRead != nil {
		book.IsRead = *r.IsRead
	}
}

// validate normalizes the ISBN and returns a message for the first problem
// found, or "".
func (r *BookRequest) validate() string {
	if strings.TrimSpace(r.Title) == "" {
		return "title is required"
	}
	if r.PublicationYear < 0 {
		return "publication_year must not be negative"
	}
	if r.ISBN != "" {
		isbn := metadata.NormalizeISBN(r.ISBN)
		if isbn == "" {
			return "invalid isbn"
		}
		r.ISBN = isbn
	}
	if r.ImageURL != nil && *r.ImageURL == "" {
		r.ImageURL = nil
	}
	return ""
}

type BooksController struct {
	covers CoverCache
}

// NewBooksController builds the book routes. covers may be nil.
func NewBooksController(covers CoverCache) *BooksController {
	return &BooksController{covers: covers}
}

func (bc *BooksController) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/books", bc.List)
	api.GET("/books/stream", bc.Stream)
	api.POST("/books", bc.Create)
	api.GET("/books/:id", bc.Get)
	api.PUT("/books/:id", bc.Update)
	api.DELETE("/books/:id", bc.Delete)
	api.POST("/books/:id/favorite", bc.ToggleFavorite)
	api.POST("/books/:id/read", bc.ToggleRead)
}

// List handles GET /api/books?view=all|favorites|read|unread
func (bc *BooksController) List(c *gin.Context) {
	view, err := library.ParseView(c.Query("view"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	books, err := libraryFrom(c).List(view)
	if err != nil {
		respondLibraryError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, BooksResponse{Books: books, Count: len(books), View: view})
}

// Stream handles GET /api/books/stream as Server-Sent Events. A "books"
// event carries the full collection now and after every change.
func (bc *BooksController) Stream(c *gin.Context) {
	view, err := library.ParseView(c.Query("view"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	snapshots, err := libraryFrom(c).Watch(c.Request.Context(), view)
	if err != nil {
		respondLibraryError(c, err, "stream books")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		books, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("books", BooksResponse{Books: books, Count: len(books), View: view})
		return true
	})
}

// Get handles GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := libraryFrom(c).Get(id)
	if err != nil {
		respondLibraryError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// Create handles POST /api/books
func (bc *BooksController) Create(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondBadRequest(c, msg)
		return
	}

	svc := libraryFrom(c)
	book := &entities.Book{UserID: ownerOf(c, req)}
	req.apply(book)

	if err := svc.Insert(c.Request.Context(), book); err != nil {
		respondLibraryError(c, err, "create book")
		return
	}
	respondCreated(c, book)
}

// Update handles PUT /api/books/:id. The stored record is replaced by the
// request; concurrent updates are last-write-wins.
func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondBadRequest(c, msg)
		return
	}

	svc := libraryFrom(c)
	book, err := svc.Get(id)
	if err != nil {
		respondLibraryError(c, err, "load book")
		return
	}
	oldCover := coverOf(book)
	req.apply(book)
	book.UserID = ownerOf(c, req)

	if err := svc.Update(c.Request.Context(), book); err != nil {
		respondLibraryError(c, err, "update book")
		return
	}
	if coverOf(book) != oldCover {
		bc.dropCover(book.ID)
	}
	c.JSON(http.StatusOK, book)
}

// Delete handles DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	svc := libraryFrom(c)
	book, err := svc.Get(id)
	if err != nil {
		respondLibraryError(c, err, "load book")
		return
	}
	if err := svc.Delete(c.Request.Context(), book); err != nil {
		respondLibraryError(c, err, "delete book")
		return
	}
	bc.dropCover(book.ID)
	c.Status(http.StatusNoContent)
}

func (bc *BooksController) dropCover(bookID uint) {
	if bc.covers == nil {
		return
	}
	if err := bc.covers.Invalidate(bookID); err != nil {
		log.Printf("Failed to drop cached cover of book %d: %v", bookID, err)
	}
}

func coverOf(book *entities.Book) string {
	if book.ImageURL == nil {
		return ""
	}
	return *book.ImageURL
}

// ToggleFavorite handles POST /api/books/:id/favorite
func (bc *BooksController) ToggleFavorite(c *gin.Context) {
	bc.toggle(c, (*library.Service).ToggleFavorite)
}

// ToggleRead handles POST /api/books/:id/read
func (bc *BooksController) ToggleRead(c *gin.Context) {
	bc.toggle(c, (*library.Service).ToggleRead)
}

type toggleFunc func(*library.Service, context.Context, *entities.Book) (*entities.Book, error)

func (bc *BooksController) toggle(c *gin.Context, flip toggleFunc) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	svc := libraryFrom(c)
	book, err := svc.Get(id)
	if err != nil {
		respondLibraryError(c, err, "load book")
		return
	}

	updated, err := flip(svc, c.Request.Context(), book)
	if err != nil {
		respondLibraryError(c, err, "toggle book flag")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ownerOf returns the owner named in the request, defaulting to the caller.
func ownerOf(c *gin.Context, req BookRequest) uint {
	if req.UserID != 0 {
		return req.UserID
	}
	return auth.GetUserID(c)
}
