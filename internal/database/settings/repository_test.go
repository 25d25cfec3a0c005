package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Setting{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewRepository(db)
}

func TestRepository_SetSetting_New(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.SetSetting(entities.SettingKeyCoverSyncLastStatus, "ok")
	require.NoError(t, err)

	setting, err := repo.GetSetting(entities.SettingKeyCoverSyncLastStatus)
	require.NoError(t, err)
	assert.Equal(t, entities.SettingKeyCoverSyncLastStatus, setting.Key)
	assert.Equal(t, "ok", setting.Value)
}

func TestRepository_SetSetting_Update(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.SetSetting(entities.SettingKeySchemaVersion, "1"))
	require.NoError(t, repo.SetSetting(entities.SettingKeySchemaVersion, "2"))

	setting, err := repo.GetSetting(entities.SettingKeySchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "2", setting.Value)
}

func TestRepository_GetSetting_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetSetting("nonexistent")

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_GetValue(t *testing.T) {
	repo := setupTestDB(t)

	value, err := repo.GetValue("missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", value)

	require.NoError(t, repo.SetSetting("present", "stored"))
	value, err = repo.GetValue("present", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "stored", value)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.SetSetting("to-delete", "value"))
	require.NoError(t, repo.DeleteSetting("to-delete"))

	_, err := repo.GetSetting("to-delete")
	assert.Error(t, err)
}

func TestRepository_DeleteSetting_NonExistent(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.DeleteSetting("nonexistent")

	assert.NoError(t, err)
}
