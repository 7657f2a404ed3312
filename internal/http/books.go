package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"librarium/internal/audit"
	"librarium/internal/database/books"
	"librarium/internal/entities"
)

// BookStore defines the database operations the books API needs.
type BookStore interface {
	Create(book *entities.Book) error
	GetByID(id uint) (*entities.Book, error)
	List(query string, authorID uint, limit, offset int) ([]entities.Book, int64, error)
	Update(book *entities.Book) error
	Delete(id uint) error
}

// AuthorResolver resolves author references on book writes.
type AuthorResolver interface {
	GetOrCreate(name string) (*entities.Author, error)
	GetByID(id uint) (*entities.Author, error)
}

type BooksController struct {
	store   BookStore
	authors AuthorResolver
	auditor *audit.Service
}

func NewBooksController(store BookStore, authors AuthorResolver, auditor *audit.Service) *BooksController {
	return &BooksController{store: store, authors: authors, auditor: auditor}
}

// bookRequest is the full write shape. Author may be given by ID or by name;
// an unknown name is created on the fly.
type bookRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	AuthorID        uint   `json:"author_id" binding:"required_without=Author"`
	Author          string `json:"author" binding:"required_without=AuthorID,max=100"`
	PublicationYear int    `json:"publication_year" binding:"omitempty,gte=0,notfuture"`
}

// bookPatch is the partial write shape; absent fields stay untouched.
type bookPatch struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=200"`
	AuthorID        *uint   `json:"author_id"`
	Author          *string `json:"author" binding:"omitempty,min=1,max=100"`
	PublicationYear *int    `json:"publication_year" binding:"omitempty,gte=0,notfuture"`
}

// resolveAuthor turns an ID or a name into a stored author.
func (bc *BooksController) resolveAuthor(authorID uint, name string) (*entities.Author, error) {
	if authorID != 0 {
		return bc.authors.GetByID(authorID)
	}
	return bc.authors.GetOrCreate(name)
}

// ListBooks returns the catalog ordered by title.
// GET /api/books?q=&author_id=&limit=&offset=
func (bc *BooksController) ListBooks(c *gin.Context) {
	authorID, ok := parseOptionalQueryID(c, "author_id")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	results, total, err := bc.store.List(c.Query("q"), authorID, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   total,
		"results": results,
	})
}

// CreateBook adds a book to the catalog.
// POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	author, err := bc.resolveAuthor(req.AuthorID, req.Author)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondBadRequest(c, "author not found")
			return
		}
		respondInternalError(c, err, "resolve author")
		return
	}

	book := &entities.Book{
		Title:           req.Title,
		AuthorID:        author.ID,
		PublicationYear: req.PublicationYear,
	}
	if err := bc.store.Create(book); err != nil {
		if errors.Is(err, books.ErrDuplicate) {
			respondConflict(c, err.Error())
			return
		}
		respondInternalError(c, err, "create book")
		return
	}

	if bc.auditor != nil {
		bc.auditor.LogCreate(GetUserID(c), "book", book.ID, book.Title, c.ClientIP())
	}
	respondCreated(c, book)
}

// GetBook returns a single book with its author.
// GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// UpdateBook replaces all writable fields of a book.
// PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	author, err := bc.resolveAuthor(req.AuthorID, req.Author)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondBadRequest(c, "author not found")
			return
		}
		respondInternalError(c, err, "resolve author")
		return
	}

	book.Title = req.Title
	book.AuthorID = author.ID
	book.Author = *author
	book.PublicationYear = req.PublicationYear

	if err := bc.store.Update(book); err != nil {
		if errors.Is(err, books.ErrDuplicate) {
			respondConflict(c, err.Error())
			return
		}
		respondInternalError(c, err, "update book")
		return
	}

	if bc.auditor != nil {
		bc.auditor.LogUpdate(GetUserID(c), "book", book.ID, book.Title, c.ClientIP())
	}
	c.JSON(http.StatusOK, book)
}

// PatchBook updates only the provided fields of a book.
// PATCH /api/books/:id
func (bc *BooksController) PatchBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req bookPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, bindErrorMessage(err))
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
	}
	if req.AuthorID != nil || req.Author != nil {
		var authorID uint
		var name string
		if req.AuthorID != nil {
			authorID = *req.AuthorID
		}
		if req.Author != nil {
			name = *req.Author
		}
		author, err := bc.resolveAuthor(authorID, name)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				respondBadRequest(c, "author not found")
				return
			}
			respondInternalError(c, err, "resolve author")
			return
		}
		book.AuthorID = author.ID
		book.Author = *author
	}

	if err := bc.store.Update(book); err != nil {
		if errors.Is(err, books.ErrDuplicate) {
			respondConflict(c, err.Error())
			return
		}
		respondInternalError(c, err, "update book")
		return
	}

	if bc.auditor != nil {
		bc.auditor.LogUpdate(GetUserID(c), "book", book.ID, book.Title, c.ClientIP())
	}
	c.JSON(http.StatusOK, book)
}

// DeleteBook removes a book from the catalog.
// DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	if err := bc.store.Delete(id); err != nil {
		respondInternalError(c, err, "delete book")
		return
	}

	if bc.auditor != nil {
		bc.auditor.LogDelete(GetUserID(c), "book", book.ID, book.Title, c.ClientIP())
	}
	respondNoContent(c)
}

// SearchBooks runs a title/author substring search.
// GET /api/books/search?q=
func (bc *BooksController) SearchBooks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		respondBadRequest(c, "q query parameter is required")
		return
	}
	limit, offset := parsePagination(c)

	results, total, err := bc.store.List(query, 0, limit, offset)
	if err != nil {
		respondInternalError(c, err, "search books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   total,
		"results": results,
	})
}

// BookSummary returns a one-line description of a book.
// GET /api/books/:id/summary
func (bc *BooksController) BookSummary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      book.ID,
		"title":   book.Title,
		"author":  book.Author.Name,
		"summary": fmt.Sprintf("'%s' is a book written by %s.", book.Title, book.Author.Name),
	})
}
