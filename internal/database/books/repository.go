// Package books provides database operations for the book catalog.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByID(123)
package books

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"librarium/internal/entities"
)

// ErrDuplicate is returned when a book with the same title and author
// already exists. The comparison is case-insensitive.
var ErrDuplicate = errors.New("book with this title and author already exists")

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new book after checking the (title, author) pair is unique.
func (r *Repository) Create(book *entities.Book) error {
	taken, err := r.titleTaken(book.Title, book.AuthorID, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicate
	}

	if err := r.db.Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return r.db.Preload("Author").First(book, book.ID).Error
}

// GetByID retrieves a book with its author.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Author").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books ordered by title. The query string, when non-empty,
// filters on book title or author name (case-insensitive substring).
// A non-zero authorID restricts results to that author. Returns the page
// plus the total number of matches.
func (r *Repository) List(query string, authorID uint, limit, offset int) ([]entities.Book, int64, error) {
	base := r.db.Model(&entities.Book{}).
		Joins("JOIN authors ON authors.id = books.author_id")

	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		base = base.Where("LOWER(books.title) LIKE ? OR LOWER(authors.name) LIKE ?", pattern, pattern)
	}
	if authorID != 0 {
		base = base.Where("books.author_id = ?", authorID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Preload("Author").Order("books.title ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var books []entities.Book
	if err := q.Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Update persists changed fields of an existing book, keeping the
// (title, author) pair unique across the catalog.
func (r *Repository) Update(book *entities.Book) error {
	taken, err := r.titleTaken(book.Title, book.AuthorID, book.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicate
	}

	// AuthorID drives the relationship; the preloaded Author struct is
	// refreshed below rather than written back.
	if err := r.db.Omit("Author").Save(book).Error; err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	return r.db.Preload("Author").First(book, book.ID).Error
}

// Delete removes a book and its library memberships.
func (r *Repository) Delete(id uint) error {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return err
	}
	if err := r.db.Model(&book).Association("Libraries").Clear(); err != nil {
		return err
	}
	return r.db.Delete(&book).Error
}

// CountAll returns the number of books in the catalog.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Count(&count).Error
	return count, err
}

// titleTaken reports whether another book (excluding excludeID) already uses
// the given title for the same author, ignoring case.
func (r *Repository) titleTaken(title string, authorID, excludeID uint) (bool, error) {
	var count int64
	q := r.db.Model(&entities.Book{}).
		Where("LOWER(title) = LOWER(?) AND author_id = ?", title, authorID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
