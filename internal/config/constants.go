package config

// Default paths and endpoints
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./bookshelf.db"

	// DefaultGoogleBooksURL is the base URL of the Google Books volumes API
	DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"
)
