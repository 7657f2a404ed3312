// Package librarians provides database operations for librarian staff
// records. Each library has at most one librarian.
package librarians

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"librarium/internal/entities"
)

// ErrLibraryTaken is returned when the target library already has a librarian.
var ErrLibraryTaken = errors.New("library already has a librarian")

// Repository handles all librarian database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new librarians repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new librarian, enforcing one librarian per library.
func (r *Repository) Create(librarian *entities.Librarian) error {
	var library entities.Library
	if err := r.db.First(&library, librarian.LibraryID).Error; err != nil {
		return err
	}

	taken, err := r.libraryTaken(librarian.LibraryID, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrLibraryTaken
	}

	if err := r.db.Create(librarian).Error; err != nil {
		return fmt.Errorf("failed to create librarian: %w", err)
	}
	return r.db.Preload("Library").First(librarian, librarian.ID).Error
}

// GetByID retrieves a librarian with their library.
func (r *Repository) GetByID(id uint) (*entities.Librarian, error) {
	var librarian entities.Librarian
	err := r.db.Preload("Library").First(&librarian, id).Error
	if err != nil {
		return nil, err
	}
	return &librarian, nil
}

// GetByLibrary retrieves the librarian responsible for a library.
func (r *Repository) GetByLibrary(libraryID uint) (*entities.Librarian, error) {
	var librarian entities.Librarian
	err := r.db.Preload("Library").
		Where("library_id = ?", libraryID).
		First(&librarian).Error
	if err != nil {
		return nil, err
	}
	return &librarian, nil
}

// List returns librarians ordered by name, plus the total count.
func (r *Repository) List(limit, offset int) ([]entities.Librarian, int64, error) {
	var total int64
	if err := r.db.Model(&entities.Librarian{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.db.Preload("Library").Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var librarians []entities.Librarian
	if err := q.Find(&librarians).Error; err != nil {
		return nil, 0, err
	}
	return librarians, total, nil
}

// Update persists changes to a librarian. Reassigning them to a library that
// already has a different librarian fails with ErrLibraryTaken.
func (r *Repository) Update(librarian *entities.Librarian) error {
	var library entities.Library
	if err := r.db.First(&library, librarian.LibraryID).Error; err != nil {
		return err
	}

	taken, err := r.libraryTaken(librarian.LibraryID, librarian.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrLibraryTaken
	}

	// Omit the preloaded association so a stale Library struct cannot
	// overwrite the reassigned foreign key.
	if err := r.db.Omit("Library").Save(librarian).Error; err != nil {
		return fmt.Errorf("failed to update librarian: %w", err)
	}
	return r.db.Preload("Library").First(librarian, librarian.ID).Error
}

// Delete removes a librarian record.
func (r *Repository) Delete(id uint) error {
	var librarian entities.Librarian
	if err := r.db.First(&librarian, id).Error; err != nil {
		return err
	}
	return r.db.Delete(&librarian).Error
}

// CountAll returns the number of librarians.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Librarian{}).Count(&count).Error
	return count, err
}

func (r *Repository) libraryTaken(libraryID, excludeID uint) (bool, error) {
	var count int64
	q := r.db.Model(&entities.Librarian{}).Where("library_id = ?", libraryID)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
