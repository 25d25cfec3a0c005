package database

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/database/settings"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// SchemaVersion is bumped whenever the entity layout changes. A database
// recorded with a different version is dropped and recreated on open.
const SchemaVersion = 1

// sessionsTable holds HTTP login sessions. auth.SessionManager creates it.
const sessionsTable = "sessions"

type Database struct {
	DB *gorm.DB
}

// Options tweak how the connection is opened.
type Options struct {
	LogLevel logger.LogLevel
}

func NewDatabase(dbPath string) (*Database, error) {
	return Open(dbPath, Options{LogLevel: logger.Warn})
}

func Open(dbPath string, opts Options) (*Database, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.resetOnSchemaMismatch(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.Setting{},
	)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := settings.NewRepository(db).SetSetting(entities.SettingKeySchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	log.Printf("Database initialized successfully at %s (schema v%d)", dbPath, SchemaVersion)

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// resetOnSchemaMismatch drops every application table when the stored schema
// version differs from SchemaVersion. A database without a settings table but
// with leftover application tables is treated as a mismatch too.
func (d *Database) resetOnSchemaMismatch() error {
	migrator := d.DB.Migrator()

	hasData := migrator.HasTable(&entities.User{}) || migrator.HasTable(&entities.Book{})
	if !migrator.HasTable(&entities.Setting{}) {
		if !hasData {
			return nil
		}
		return d.dropAll("unversioned")
	}

	setting, err := settings.NewRepository(d.DB).GetSetting(entities.SettingKeySchemaVersion)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !hasData {
			return nil
		}
		return d.dropAll("unversioned")
	}
	if err != nil {
		return err
	}

	if setting.Value == strconv.Itoa(SchemaVersion) {
		return nil
	}
	return d.dropAll("v" + setting.Value)
}

func (d *Database) dropAll(found string) error {
	log.Printf("Database schema %s does not match v%d, recreating tables", found, SchemaVersion)
	// Books reference users, so they go first.
	if err := d.DB.Migrator().DropTable(&entities.Book{}, &entities.User{}, &entities.Setting{}); err != nil {
		return err
	}

	// User ids restart after the drop, so old logins must not survive it
	if d.DB.Migrator().HasTable(sessionsTable) {
		if err := d.DB.Exec("DELETE FROM " + sessionsTable).Error; err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
	}
	return nil
}

// dsn enables foreign key enforcement so deleting a user cascades to books.
func dsn(dbPath string) string {
	if strings.Contains(dbPath, "_foreign_keys") {
		return dbPath
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on"
}
