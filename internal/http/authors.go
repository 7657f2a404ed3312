package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"librarium/internal/audit"
	"librarium/internal/entities"
)

// AuthorStore defines the database operations the authors API needs.
type AuthorStore interface {
	Create(author *entities.Author) error
	GetByID(id uint) (*entities.Author, error)
	GetByName(name string) (*entities.Author, error)
	List(query string, limit, offset int) ([]entities.Author, int64, error)
	Update(author *entities.Author) error
	Delete(id uint) error
	Books(authorID uint) ([]entities.Book, error)
}

type AuthorsController struct {
	store   AuthorStore
	auditor *audit.Service
}

func NewAuthorsController(store AuthorStore, auditor *audit.Service) *AuthorsController {
	return &AuthorsController{store: store, auditor: auditor}
}

type authorRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// ListAuthors returns authors ordered by name.
// GET /api/authors?q=&limit=&offset=
func (ac *AuthorsController) ListAuthors(c *gin.Context) {
	limit, offset := parsePagination(c)

	results, total, err := ac.store.List(c.Query("q"), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list authors")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

// CreateAuthor adds an author.
// POST /api/authors
func (ac *AuthorsController) CreateAuthor(c *gin.Context) {
	var req authorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	if _, err := ac.store.GetByName(req.Name); err == nil {
		respondConflict(c, "author already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "check author name")
		return
	}

	author := &entities.Author{Name: req.Name}
	if err := ac.store.Create(author); err != nil {
		respondInternalError(c, err, "create author")
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogCreate(GetUserID(c), "author", author.ID, author.Name, c.ClientIP())
	}
	respondCreated(c, author)
}

// GetAuthor returns a single author.
// GET /api/authors/:id
func (ac *AuthorsController) GetAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	author, err := ac.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "author")
			return
		}
		respondInternalError(c, err, "get author")
		return
	}
	c.JSON(http.StatusOK, author)
}

// UpdateAuthor renames an author.
// PUT /api/authors/:id
func (ac *AuthorsController) UpdateAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req authorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	author, err := ac.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "author")
			return
		}
		respondInternalError(c, err, "get author")
		return
	}

	if existing, err := ac.store.GetByName(req.Name); err == nil && existing.ID != author.ID {
		respondConflict(c, "author already exists")
		return
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "check author name")
		return
	}

	author.Name = req.Name
	if err := ac.store.Update(author); err != nil {
		respondInternalError(c, err, "update author")
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogUpdate(GetUserID(c), "author", author.ID, author.Name, c.ClientIP())
	}
	c.JSON(http.StatusOK, author)
}

// DeleteAuthor removes an author together with their books.
// DELETE /api/authors/:id
func (ac *AuthorsController) DeleteAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	author, err := ac.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "author")
			return
		}
		respondInternalError(c, err, "get author")
		return
	}

	if err := ac.store.Delete(id); err != nil {
		respondInternalError(c, err, "delete author")
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogDelete(GetUserID(c), "author", author.ID, author.Name, c.ClientIP())
	}
	respondNoContent(c)
}

// AuthorBooks lists the author's books.
// GET /api/authors/:id/books
func (ac *AuthorsController) AuthorBooks(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	author, err := ac.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "author")
			return
		}
		respondInternalError(c, err, "get author")
		return
	}

	booksList, err := ac.store.Books(id)
	if err != nil {
		respondInternalError(c, err, "list author books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"author":  author,
		"count":   len(booksList),
		"results": booksList,
	})
}
