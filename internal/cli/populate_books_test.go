package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"librarium/internal/database"
	"librarium/internal/database/authors"
	"librarium/internal/database/books"
	"librarium/internal/database/librarians"
	"librarium/internal/database/libraries"
	"librarium/internal/entities"
)

func TestPopulateBooksCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	cmd := NewPopulateBooksCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath}))
	require.NoError(t, cmd.Run())

	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	bookRepo := books.NewRepository(db.DB)
	authorRepo := authors.NewRepository(db.DB)
	libraryRepo := libraries.NewRepository(db.DB)
	librarianRepo := librarians.NewRepository(db.DB)

	t.Run("seeds the catalog", func(t *testing.T) {
		totalBooks, err := bookRepo.CountAll()
		require.NoError(t, err)
		assert.Equal(t, int64(18), totalBooks)

		// Orwell, Austen and Tolkien each wrote two of the samples
		totalAuthors, err := authorRepo.CountAll()
		require.NoError(t, err)
		assert.Equal(t, int64(15), totalAuthors)

		totalLibraries, err := libraryRepo.CountAll()
		require.NoError(t, err)
		assert.Equal(t, int64(3), totalLibraries)
	})

	t.Run("links books to their libraries", func(t *testing.T) {
		central, err := libraryRepo.GetByName("Central Library")
		require.NoError(t, err)

		members, err := libraryRepo.Books(central.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)

		titles := make([]string, len(members))
		for i, b := range members {
			titles[i] = b.Title
		}
		assert.Contains(t, titles, "1984")
		assert.Contains(t, titles, "Animal Farm")
		assert.Contains(t, titles, "Pride and Prejudice")
	})

	t.Run("assigns librarians and leaves one branch vacant", func(t *testing.T) {
		central, err := libraryRepo.GetByName("Central Library")
		require.NoError(t, err)
		librarian, err := librarianRepo.GetByLibrary(central.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Johnson", librarian.Name)

		academy, err := libraryRepo.GetByName("Academy Library")
		require.NoError(t, err)
		_, err = librarianRepo.GetByLibrary(academy.ID)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	})

	t.Run("rerunning changes nothing", func(t *testing.T) {
		again := NewPopulateBooksCommand()
		require.NoError(t, again.ParseFlags([]string{"-db", dbPath}))
		require.NoError(t, again.Run())

		totalBooks, err := bookRepo.CountAll()
		require.NoError(t, err)
		assert.Equal(t, int64(18), totalBooks)

		totalLibrarians, err := librarianRepo.CountAll()
		require.NoError(t, err)
		assert.Equal(t, int64(2), totalLibrarians)
	})
}

func TestPopulateBooksCommandClear(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	// Pre-existing catalog row that -clear should remove
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	authorRepo := authors.NewRepository(db.DB)
	bookRepo := books.NewRepository(db.DB)
	author, err := authorRepo.GetOrCreate("Leo Tolstoy")
	require.NoError(t, err)
	require.NoError(t, bookRepo.Create(&entities.Book{
		Title:           "War and Peace",
		AuthorID:        author.ID,
		PublicationYear: 1869,
	}))
	require.NoError(t, db.Close())

	cmd := NewPopulateBooksCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-db", dbPath, "-clear"}))
	require.NoError(t, cmd.Run())

	db, err = database.NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	total, err := books.NewRepository(db.DB).CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(18), total, "the pre-existing book should be gone")

	_, err = authors.NewRepository(db.DB).GetByName("Leo Tolstoy")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
