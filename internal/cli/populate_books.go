package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/internal/database/authors"
	"librarium/internal/database/books"
	"librarium/internal/database/librarians"
	"librarium/internal/database/libraries"
	"librarium/internal/entities"
)

// seedBook is one catalog entry created by populate-books.
type seedBook struct {
	title  string
	author string
	year   int
}

// seedBooks is the sample catalog. The first fifteen are the classics used
// for API testing; the remaining three exist for the library memberships.
var seedBooks = []seedBook{
	{"The Great Gatsby", "F. Scott Fitzgerald", 1925},
	{"To Kill a Mockingbird", "Harper Lee", 1960},
	{"1984", "George Orwell", 1949},
	{"Pride and Prejudice", "Jane Austen", 1813},
	{"The Catcher in the Rye", "J.D. Salinger", 1951},
	{"Lord of the Flies", "William Golding", 1954},
	{"The Lord of the Rings", "J.R.R. Tolkien", 1954},
	{"Harry Potter and the Philosopher's Stone", "J.K. Rowling", 1997},
	{"The Hobbit", "J.R.R. Tolkien", 1937},
	{"Fahrenheit 451", "Ray Bradbury", 1953},
	{"Brave New World", "Aldous Huxley", 1932},
	{"The Chronicles of Narnia", "C.S. Lewis", 1950},
	{"Dune", "Frank Herbert", 1965},
	{"The Hitchhiker's Guide to the Galaxy", "Douglas Adams", 1979},
	{"Foundation", "Isaac Asimov", 1951},
	{"Animal Farm", "George Orwell", 1945},
	{"Emma", "Jane Austen", 1815},
	{"The Adventures of Tom Sawyer", "Mark Twain", 1876},
}

// seedLibraries assigns books and a librarian to each branch. Academy Library
// is deliberately left without a librarian.
var seedLibraries = []struct {
	name      string
	books     []string
	librarian string
}{
	{"Central Library", []string{"1984", "Animal Farm", "Pride and Prejudice"}, "Alice Johnson"},
	{"Community Library", []string{"Pride and Prejudice", "Emma", "The Adventures of Tom Sawyer"}, "Bob Smith"},
	{"Academy Library", []string{"The Hobbit", "The Lord of the Rings", "Foundation"}, ""},
}

// PopulateBooksCommand seeds the catalog with sample books, libraries and
// librarians. Safe to run repeatedly; existing rows are left alone.
type PopulateBooksCommand struct {
	DatabasePath string
	Clear        bool
}

func NewPopulateBooksCommand() *PopulateBooksCommand {
	return &PopulateBooksCommand{}
}

func (cmd *PopulateBooksCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("populate-books", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database file")
	fs.BoolVar(&cmd.Clear, "clear", false, "Clear existing catalog rows before adding sample data")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s populate-books [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Populate the database with sample books for testing the API.\n\n")
		fmt.Fprintf(os.Stderr, "Seeds %d books with their authors, three libraries with book\n", len(seedBooks))
		fmt.Fprintf(os.Stderr, "memberships, and the librarians running them. Rerunning the command\n")
		fmt.Fprintf(os.Stderr, "is harmless: rows that already exist are reported and skipped.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Seed the default database:\n")
		fmt.Fprintf(os.Stderr, "  %s populate-books\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Start from an empty catalog:\n")
		fmt.Fprintf(os.Stderr, "  %s populate-books -clear\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *PopulateBooksCommand) Run() error {
	fmt.Println("Populate Books")
	fmt.Println("==============")

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cmd.Clear {
		fmt.Println("Clearing existing catalog...")
		if err := clearCatalog(db.DB); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}
		fmt.Println("Existing catalog cleared.")
	}

	authorRepo := authors.NewRepository(db.DB)
	bookRepo := books.NewRepository(db.DB)
	libraryRepo := libraries.NewRepository(db.DB)
	librarianRepo := librarians.NewRepository(db.DB)

	// Books and authors
	created := 0
	byTitle := make(map[string]*entities.Book, len(seedBooks))
	for _, seed := range seedBooks {
		author, err := authorRepo.GetOrCreate(seed.author)
		if err != nil {
			return fmt.Errorf("failed to get or create author %q: %w", seed.author, err)
		}

		book := &entities.Book{
			Title:           seed.title,
			AuthorID:        author.ID,
			PublicationYear: seed.year,
		}
		err = bookRepo.Create(book)
		switch {
		case err == nil:
			created++
			fmt.Printf("Created: %s by %s\n", seed.title, seed.author)
		case errors.Is(err, books.ErrDuplicate):
			fmt.Printf("Already exists: %s by %s\n", seed.title, seed.author)
			book, err = findBookByTitle(bookRepo, seed.title, author.ID)
			if err != nil {
				return fmt.Errorf("failed to look up existing book %q: %w", seed.title, err)
			}
		default:
			return fmt.Errorf("failed to create book %q: %w", seed.title, err)
		}
		byTitle[seed.title] = book
	}

	// Libraries, memberships and librarians
	for _, seed := range seedLibraries {
		library, err := libraryRepo.GetByName(seed.name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			library = &entities.Library{Name: seed.name}
			if err := libraryRepo.Create(library); err != nil {
				return fmt.Errorf("failed to create library %q: %w", seed.name, err)
			}
			fmt.Printf("Created: %s\n", seed.name)
		} else if err != nil {
			return fmt.Errorf("failed to look up library %q: %w", seed.name, err)
		}

		for _, title := range seed.books {
			book, ok := byTitle[title]
			if !ok {
				return fmt.Errorf("library %q references unknown book %q", seed.name, title)
			}
			if err := libraryRepo.AddBook(library.ID, book.ID); err != nil {
				return fmt.Errorf("failed to add %q to %q: %w", title, seed.name, err)
			}
		}

		if seed.librarian == "" {
			continue
		}
		_, err = librarianRepo.GetByLibrary(library.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			librarian := &entities.Librarian{Name: seed.librarian, LibraryID: library.ID}
			if err := librarianRepo.Create(librarian); err != nil {
				return fmt.Errorf("failed to create librarian %q: %w", seed.librarian, err)
			}
			fmt.Printf("Created: %s (librarian of %s)\n", seed.librarian, seed.name)
		} else if err != nil {
			return fmt.Errorf("failed to look up librarian for %q: %w", seed.name, err)
		}
	}

	totalBooks, err := bookRepo.CountAll()
	if err != nil {
		return fmt.Errorf("failed to count books: %w", err)
	}
	fmt.Printf("\nSuccessfully populated database with %d new books. Total books in database: %d\n",
		created, totalBooks)
	return nil
}

// clearCatalog deletes all catalog rows, leaving users and audit events
// untouched. Order follows the foreign keys.
func clearCatalog(db *gorm.DB) error {
	for _, stmt := range []string{
		"DELETE FROM librarians",
		"DELETE FROM library_books",
		"DELETE FROM libraries",
		"DELETE FROM books",
		"DELETE FROM authors",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// findBookByTitle resolves a seed title to its existing row. List matches on
// substrings, so the exact title still has to be compared.
func findBookByTitle(repo *books.Repository, title string, authorID uint) (*entities.Book, error) {
	results, _, err := repo.List(title, authorID, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if strings.EqualFold(results[i].Title, title) {
			return &results[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
