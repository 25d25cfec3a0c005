package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CoversController serves locally cached cover images.
type CoversController struct {
	cache CoverCache
}

func NewCoversController(cache CoverCache) *CoversController {
	return &CoversController{cache: cache}
}

// GetCover handles GET /api/books/:id/cover. When the image cannot be cached
// the client is redirected to the original link.
func (cc *CoversController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := libraryFrom(c).Get(id)
	if err != nil {
		respondLibraryError(c, err, "get book")
		return
	}
	if !book.HasCover() {
		respondNotFound(c, "cover")
		return
	}

	cachePath, err := cc.cache.Get(c.Request.Context(), book.ID, *book.ImageURL)
	if err != nil || cachePath == "" {
		c.Redirect(http.StatusTemporaryRedirect, *book.ImageURL)
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.File(cachePath)
}
