package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	SettingKeySchemaVersion = "schema_version"

	SettingKeyCoverSyncLastAt      = "cover_sync_last_at"
	SettingKeyCoverSyncLastStatus  = "cover_sync_last_status"
	SettingKeyCoverSyncLastMessage = "cover_sync_last_message"
	SettingKeyCoverSyncTasksQueued = "cover_sync_tasks_queued"
)
