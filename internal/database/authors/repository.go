// Package authors provides database operations for author management.
package authors

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"librarium/internal/entities"
)

// Repository handles all author database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new authors repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new author.
func (r *Repository) Create(author *entities.Author) error {
	if err := r.db.Create(author).Error; err != nil {
		return fmt.Errorf("failed to create author: %w", err)
	}
	return nil
}

// GetOrCreate returns the author with the given name, creating it when absent.
// Name matching is case-insensitive; the stored spelling wins.
func (r *Repository) GetOrCreate(name string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("LOWER(name) = LOWER(?)", name).First(&author).Error
	if err == nil {
		return &author, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	author = entities.Author{Name: name}
	if err := r.db.Create(&author).Error; err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}
	return &author, nil
}

// GetByID retrieves an author by ID.
func (r *Repository) GetByID(id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.First(&author, id).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// GetByName retrieves an author by exact name.
func (r *Repository) GetByName(name string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("name = ?", name).First(&author).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// List returns authors ordered by name, with an optional case-insensitive
// name filter, plus the total number of matches.
func (r *Repository) List(query string, limit, offset int) ([]entities.Author, int64, error) {
	base := r.db.Model(&entities.Author{})
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

	var authors []entities.Author
	if err := q.Find(&authors).Error; err != nil {
		return nil, 0, err
	}
	return authors, total, nil
}

// Update persists changes to an author.
func (r *Repository) Update(author *entities.Author) error {
	return r.db.Save(author).Error
}

// Delete removes an author. Their books go with them (cascading FK).
func (r *Repository) Delete(id uint) error {
	var author entities.Author
	if err := r.db.First(&author, id).Error; err != nil {
		return err
	}
	return r.db.Delete(&author).Error
}

// Books returns the author's books ordered by title.
func (r *Repository) Books(authorID uint) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Preload("Author").
		Where("author_id = ?", authorID).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

// DeleteOrphans removes authors that no longer have any books.
// Returns the number of authors removed.
func (r *Repository) DeleteOrphans() (int64, error) {
	result := r.db.Where(
		"id NOT IN (SELECT DISTINCT author_id FROM books)",
	).Delete(&entities.Author{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete orphan authors: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountAll returns the number of authors.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Author{}).Count(&count).Error
	return count, err
}
