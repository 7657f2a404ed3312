package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"librarium/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens (creating if necessary) the SQLite database at dbPath and
// migrates the full schema. Foreign keys are enabled so that author and
// library deletes cascade the way the schema declares.
func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Author{},
		&entities.Book{},
		&entities.Library{},
		&entities.Librarian{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	raw, err := d.DB.DB()
	if err != nil {
		return err
	}
	return raw.Close()
}

// Ping verifies the underlying connection is still usable.
func (d *Database) Ping() error {
	raw, err := d.DB.DB()
	if err != nil {
		return err
	}
	return raw.Ping()
}
