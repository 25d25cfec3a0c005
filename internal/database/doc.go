// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, schema versioning, migrations
//	├── books/           # Per-owner book CRUD and list queries
//	├── settings/        # Key/value application settings
//	└── users/           # User registration and lookup
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./bookshelf.db")
//
//	usersRepo := users.NewRepository(db.DB)
//	booksRepo := books.NewRepository(db.DB)
//
//	books, err := booksRepo.ListAll(userID)
//
// # Schema Versioning
//
// The current SchemaVersion is stored in the settings table. Opening a database
// written with another version drops the users, books and settings tables and
// recreates them. There is no incremental migration path.
package database
