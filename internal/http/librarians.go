package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"librarium/internal/audit"
	"librarium/internal/database/librarians"
	"librarium/internal/entities"
)

// LibrarianStore defines the database operations the librarians API needs.
type LibrarianStore interface {
	Create(librarian *entities.Librarian) error
	GetByID(id uint) (*entities.Librarian, error)
	List(limit, offset int) ([]entities.Librarian, int64, error)
	Update(librarian *entities.Librarian) error
	Delete(id uint) error
}

type LibrariansController struct {
	store   LibrarianStore
	auditor *audit.Service
}

func NewLibrariansController(store LibrarianStore, auditor *audit.Service) *LibrariansController {
	return &LibrariansController{store: store, auditor: auditor}
}

type librarianRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	LibraryID uint   `json:"library_id" binding:"required"`
}

// ListLibrarians returns librarians with their libraries, ordered by name.
// GET /api/librarians?limit=&offset=
func (lc *LibrariansController) ListLibrarians(c *gin.Context) {
	limit, offset := parsePagination(c)

	results, total, err := lc.store.List(limit, offset)
	if err != nil {
		respondInternalError(c, err, "list librarians")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

// CreateLibrarian hires a librarian for a library. Each library has at most
// one librarian.
// POST /api/librarians
func (lc *LibrariansController) CreateLibrarian(c *gin.Context) {
	var req librarianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	librarian := &entities.Librarian{Name: req.Name, LibraryID: req.LibraryID}
	if err := lc.store.Create(librarian); err != nil {
		switch {
		case errors.Is(err, librarians.ErrLibraryTaken):
			respondConflict(c, "library already has a librarian")
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondBadRequest(c, "library not found")
		default:
			respondInternalError(c, err, "create librarian")
		}
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogCreate(GetUserID(c), "librarian", librarian.ID, librarian.Name, c.ClientIP())
	}
	respondCreated(c, librarian)
}

// GetLibrarian returns a librarian with their library.
// GET /api/librarians/:id
func (lc *LibrariansController) GetLibrarian(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	librarian, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "librarian")
			return
		}
		respondInternalError(c, err, "get librarian")
		return
	}
	c.JSON(http.StatusOK, librarian)
}

// UpdateLibrarian renames a librarian or reassigns them to another library.
// PUT /api/librarians/:id
func (lc *LibrariansController) UpdateLibrarian(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req librarianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	librarian, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "librarian")
			return
		}
		respondInternalError(c, err, "get librarian")
		return
	}

	librarian.Name = req.Name
	librarian.LibraryID = req.LibraryID
	if err := lc.store.Update(librarian); err != nil {
		switch {
		case errors.Is(err, librarians.ErrLibraryTaken):
			respondConflict(c, "library already has a librarian")
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondBadRequest(c, "library not found")
		default:
			respondInternalError(c, err, "update librarian")
		}
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogUpdate(GetUserID(c), "librarian", librarian.ID, librarian.Name, c.ClientIP())
	}
	c.JSON(http.StatusOK, librarian)
}

// DeleteLibrarian removes a librarian record. The library stays.
// DELETE /api/librarians/:id
func (lc *LibrariansController) DeleteLibrarian(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	librarian, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "librarian")
			return
		}
		respondInternalError(c, err, "get librarian")
		return
	}

	if err := lc.store.Delete(id); err != nil {
		respondInternalError(c, err, "delete librarian")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogDelete(GetUserID(c), "librarian", librarian.ID, librarian.Name, c.ClientIP())
	}
	respondNoContent(c)
}
