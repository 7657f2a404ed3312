// Package libraries provides database operations for libraries and their
// book collections.
package libraries

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"librarium/internal/entities"
)

// Repository handles all library database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new libraries repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new library.
func (r *Repository) Create(library *entities.Library) error {
	if err := r.db.Create(library).Error; err != nil {
		return fmt.Errorf("failed to create library: %w", err)
	}
	return nil
}

// GetByID retrieves a library with its books (and their authors),
// ordered by title.
func (r *Repository) GetByID(id uint) (*entities.Library, error) {
	var library entities.Library
	err := r.db.Preload("Books", func(db *gorm.DB) *gorm.DB {
		return db.Order("books.title ASC")
	}).Preload("Books.Author").First(&library, id).Error
	if err != nil {
		return nil, err
	}
	return &library, nil
}

// GetByName retrieves a library by exact name.
func (r *Repository) GetByName(name string) (*entities.Library, error) {
	var library entities.Library
	if err := r.db.Where("name = ?", name).First(&library).Error; err != nil {
		return nil, err
	}
	return &library, nil
}

// List returns libraries ordered by name, with an optional case-insensitive
// name filter, plus the total number of matches.
func (r *Repository) List(query string, limit, offset int) ([]entities.Library, int64, error) {
	base := r.db.Model(&entities.Library{})
	if query != "" {
		base = base.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var libraries []entities.Library
	if err := q.Find(&libraries).Error; err != nil {
		return nil, 0, err
	}
	return libraries, total, nil
}

// Update persists changes to a library. The book collection is managed
// through AddBook and RemoveBook, not through Save.
func (r *Repository) Update(library *entities.Library) error {
	return r.db.Omit("Books").Save(library).Error
}

// Delete removes a library, its book memberships, and via the cascading FK
// its librarian. The books themselves stay in the catalog.
func (r *Repository) Delete(id uint) error {
	var library entities.Library
	if err := r.db.First(&library, id).Error; err != nil {
		return err
	}
	if err := r.db.Model(&library).Association("Books").Clear(); err != nil {
		return err
	}
	return r.db.Delete(&library).Error
}

// AddBook places a book into the library's collection. Adding a book twice
// is a no-op.
func (r *Repository) AddBook(libraryID, bookID uint) error {
	var library entities.Library
	if err := r.db.First(&library, libraryID).Error; err != nil {
		return err
	}
	var book entities.Book
	if err := r.db.First(&book, bookID).Error; err != nil {
		return err
	}
	return r.db.Model(&library).Association("Books").Append(&book)
}

// RemoveBook takes a book out of the library's collection.
func (r *Repository) RemoveBook(libraryID, bookID uint) error {
	var library entities.Library
	if err := r.db.First(&library, libraryID).Error; err != nil {
		return err
	}
	var book entities.Book
	if err := r.db.First(&book, bookID).Error; err != nil {
		return err
	}
	return r.db.Model(&library).Association("Books").Delete(&book)
}

// Books returns the library's books with authors, ordered by title.
func (r *Repository) Books(libraryID uint) ([]entities.Book, error) {
	var library entities.Library
	if err := r.db.First(&library, libraryID).Error; err != nil {
		return nil, err
	}

	var books []entities.Book
	err := r.db.Preload("Author").
		Joins("JOIN library_books ON library_books.book_id = books.id").
		Where("library_books.library_id = ?", libraryID).
		Order("books.title ASC").
		Find(&books).Error
	return books, err
}

// CountAll returns the number of libraries.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Library{}).Count(&count).Error
	return count, err
}
