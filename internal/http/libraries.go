package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"librarium/internal/audit"
	"librarium/internal/entities"
)

// LibraryStore defines the database operations the libraries API needs.
type LibraryStore interface {
	Create(library *entities.Library) error
	GetByID(id uint) (*entities.Library, error)
	GetByName(name string) (*entities.Library, error)
	List(query string, limit, offset int) ([]entities.Library, int64, error)
	Update(library *entities.Library) error
	Delete(id uint) error
	AddBook(libraryID, bookID uint) error
	RemoveBook(libraryID, bookID uint) error
	Books(libraryID uint) ([]entities.Book, error)
}

// LibrarianFinder resolves a library's assigned librarian.
type LibrarianFinder interface {
	GetByLibrary(libraryID uint) (*entities.Librarian, error)
}

type LibrariesController struct {
	store      LibraryStore
	librarians LibrarianFinder
	auditor    *audit.Service
}

func NewLibrariesController(store LibraryStore, librarians LibrarianFinder, auditor *audit.Service) *LibrariesController {
	return &LibrariesController{store: store, librarians: librarians, auditor: auditor}
}

type libraryRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// ListLibraries returns libraries ordered by name.
// GET /api/libraries?q=&limit=&offset=
func (lc *LibrariesController) ListLibraries(c *gin.Context) {
	limit, offset := parsePagination(c)

	results, total, err := lc.store.List(c.Query("q"), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list libraries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

// CreateLibrary adds a library.
// POST /api/libraries
func (lc *LibrariesController) CreateLibrary(c *gin.Context) {
	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	if _, err := lc.store.GetByName(req.Name); err == nil {
		respondConflict(c, "library already exists")
		return
	}

	library := &entities.Library{Name: req.Name}
	if err := lc.store.Create(library); err != nil {
		respondInternalError(c, err, "create library")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogCreate(GetUserID(c), "library", library.ID, library.Name, c.ClientIP())
	}
	respondCreated(c, library)
}

// GetLibrary returns a library with its books.
// GET /api/libraries/:id
func (lc *LibrariesController) GetLibrary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	library, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library")
			return
		}
		respondInternalError(c, err, "get library")
		return
	}
	c.JSON(http.StatusOK, library)
}

// UpdateLibrary renames a library.
// PUT /api/libraries/:id
func (lc *LibrariesController) UpdateLibrary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	library, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library")
			return
		}
		respondInternalError(c, err, "get library")
		return
	}

	if existing, err := lc.store.GetByName(req.Name); err == nil && existing.ID != library.ID {
		respondConflict(c, "library already exists")
		return
	}

	library.Name = req.Name
	if err := lc.store.Update(library); err != nil {
		respondInternalError(c, err, "update library")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogUpdate(GetUserID(c), "library", library.ID, library.Name, c.ClientIP())
	}
	c.JSON(http.StatusOK, library)
}

// DeleteLibrary removes a library. Its books stay in the catalog.
// DELETE /api/libraries/:id
func (lc *LibrariesController) DeleteLibrary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	library, err := lc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library")
			return
		}
		respondInternalError(c, err, "get library")
		return
	}

	if err := lc.store.Delete(id); err != nil {
		respondInternalError(c, err, "delete library")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogDelete(GetUserID(c), "library", library.ID, library.Name, c.ClientIP())
	}
	respondNoContent(c)
}

// LibraryBooks lists the books held by a library.
// GET /api/libraries/:id/books
func (lc *LibrariesController) LibraryBooks(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booksList, err := lc.store.Books(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library")
			return
		}
		respondInternalError(c, err, "list library books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(booksList),
		"results": booksList,
	})
}

// AddLibraryBook places a book in the library's collection.
// POST /api/libraries/:id/books/:bookId
func (lc *LibrariesController) AddLibraryBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	if err := lc.store.AddBook(id, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library or book")
			return
		}
		respondInternalError(c, err, "add book to library")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogUpdate(GetUserID(c), "library", id, "book added", c.ClientIP())
	}
	respondSuccess(c, "book added to library")
}

// RemoveLibraryBook takes a book out of the library's collection.
// DELETE /api/libraries/:id/books/:bookId
func (lc *LibrariesController) RemoveLibraryBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "bookId")
	if !ok {
		return
	}

	if err := lc.store.RemoveBook(id, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "library or book")
			return
		}
		respondInternalError(c, err, "remove book from library")
		return
	}

	if lc.auditor != nil {
		lc.auditor.LogUpdate(GetUserID(c), "library", id, "book removed", c.ClientIP())
	}
	respondNoContent(c)
}

// LibraryLibrarian returns the librarian assigned to a library.
// GET /api/libraries/:id/librarian
func (lc *LibrariesController) LibraryLibrarian(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	librarian, err := lc.librarians.GetByLibrary(id)
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
