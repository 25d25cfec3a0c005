package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// ImportRequest is the body of POST /api/import/isbn. With Async set the
// imports are queued and the task ids returned.
type ImportRequest struct {
	ISBN  string   `json:"isbn"`
	ISBNs []string `json:"isbns"`
	Async bool     `json:"async"`
}

// TasksResponse lists the ids of queued tasks.
type TasksResponse struct {
	TaskIDs []string `json:"task_ids"`
}

// LookupController covers metadata search, imports and cover backfills.
type LookupController struct {
	tasks     TaskQueue
	coverSync CoverSyncReporter
}

func NewLookupController(queue TaskQueue, coverSync CoverSyncReporter) *LookupController {
	return &LookupController{tasks: queue, coverSync: coverSync}
}

func (lc *LookupController) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/search/isbn/:isbn", lc.SearchISBN)
	api.POST("/import/isbn", lc.ImportISBN)
	api.POST("/books/covers/backfill", lc.BackfillCovers)
	if lc.coverSync != nil {
		api.GET("/books/covers/sync", lc.CoverSyncStatus)
	}
}

// SearchISBN handles GET /api/search/isbn/:isbn. The result is not saved.
func (lc *LookupController) SearchISBN(c *gin.Context) {
	isbn := metadata.NormalizeISBN(c.Param("isbn"))
	if isbn == "" {
		respondBadRequest(c, "invalid isbn")
		return
	}

	book, found := libraryFrom(c).SearchByISBN(c.Request.Context(), isbn)
	if !found {
		respondNotFound(c, "book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// ImportISBN handles POST /api/import/isbn
func (lc *LookupController) ImportISBN(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	isbns := req.ISBNs
	if req.ISBN != "" {
		isbns = append([]string{req.ISBN}, isbns...)
	}
	if len(isbns) == 0 {
		respondBadRequest(c, "isbn is required")
		return
	}
	for i, raw := range isbns {
		isbn := metadata.NormalizeISBN(raw)
		if isbn == "" {
			respondBadRequest(c, "invalid isbn: "+raw)
			return
		}
		isbns[i] = isbn
	}

	if req.Async && lc.tasks != nil {
		userID := auth.GetUserID(c)
		batch := make([]backlite.Task, 0, len(isbns))
		for _, isbn := range isbns {
			batch = append(batch, tasks.ImportISBNTask{UserID: userID, ISBN: isbn})
		}
		lc.enqueue(c, batch...)
		return
	}

	if len(isbns) > 1 {
		respondBadRequest(c, "importing several isbns requires async")
		return
	}

	book, err := libraryFrom(c).ImportByISBN(c.Request.Context(), isbns[0])
	if err != nil {
		respondLibraryError(c, err, "import isbn")
		return
	}
	respondCreated(c, book)
}

// BackfillCovers handles POST /api/books/covers/backfill. The work is
// queued when a task queue is available and runs inline otherwise.
func (lc *LookupController) BackfillCovers(c *gin.Context) {
	if lc.tasks != nil {
		lc.enqueue(c, tasks.BackfillCoversTask{UserID: auth.GetUserID(c)})
		return
	}

	updated, err := libraryFrom(c).BackfillCovers(c.Request.Context())
	if err != nil {
		respondLibraryError(c, err, "backfill covers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// CoverSyncStatus handles GET /api/books/covers/sync
func (lc *LookupController) CoverSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, lc.coverSync.Status())
}

func (lc *LookupController) enqueue(c *gin.Context, batch ...backlite.Task) {
	ids, err := lc.tasks.Enqueue(c.Request.Context(), batch...)
	if err != nil {
		respondInternalError(c, err, "enqueue tasks")
		return
	}
	respondAccepted(c, TasksResponse{TaskIDs: ids})
}
