package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/library"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 response without
// exposing the cause.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondLibraryError maps book service errors to status codes. Anything
// unrecognised is a 500.
func respondLibraryError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, library.ErrOwnershipMismatch):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, library.ErrNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, library.ErrBookExists):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, library.ErrUnknownView), errors.Is(err, library.ErrBookRequired):
		respondBadRequest(c, err.Error())
	default:
		respondInternalError(c, err, context)
	}
}

// --- Success Response Helpers ---

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response for queued work.
func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// --- Per-user library ---

const contextKeyLibrary = "library"

// bindLibrary gives each authenticated request a book service bound to the
// caller. It must run after auth.Middleware.RequireAuth.
func bindLibrary(cfg RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrAuthRequired.Error()})
			return
		}

		svc := library.NewService(cfg.Books, cfg.Hub, cfg.Lookup, userID)
		defer svc.Close()

		c.Set(contextKeyLibrary, svc)
		c.Next()
	}
}

// libraryFrom returns the service bound by bindLibrary.
func libraryFrom(c *gin.Context) *library.Service {
	if v, ok := c.Get(contextKeyLibrary); ok {
		if svc, ok := v.(*library.Service); ok {
			return svc
		}
	}
	return nil
}
