// Package settingsstore keeps derived application state in the settings
// table, such as the outcome of the last scheduled cover sync.
package settingsstore

import (
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Settings is the key/value table behind a SettingsStore.
// settings.Repository implements it.
type Settings interface {
	GetSetting(key string) (*entities.Setting, error)
	SetSetting(key, value string) error
}

type SettingsStore struct {
	db Settings
}

func New(db Settings) *SettingsStore {
	return &SettingsStore{db: db}
}

// CoverSyncStatus describes the last scheduled cover sync.
type CoverSyncStatus struct {
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	Status       string     `json:"status,omitempty"` // "success", "failed" or ""
	Message      string     `json:"message,omitempty"`
	TasksQueued  int        `json:"tasks_queued"`
	NextSyncAt   *time.Time `json:"next_sync_at,omitempty"`
	Enabled      bool       `json:"enabled"`
	Schedule     string     `json:"schedule,omitempty"`
	ScheduleDesc string     `json:"schedule_description,omitempty"`
}

// GetCoverSyncStatus reads the recorded outcome. Missing or unreadable
// values are left at their zero value.
func (s *SettingsStore) GetCoverSyncStatus() CoverSyncStatus {
	status := CoverSyncStatus{}

	if setting, err := s.db.GetSetting(entities.SettingKeyCoverSyncLastAt); err == nil && setting.Value != "" {
		if ts, err := time.Parse(time.RFC3339, setting.Value); err == nil {
			status.LastSyncAt = &ts
		}
	}
	if setting, err := s.db.GetSetting(entities.SettingKeyCoverSyncLastStatus); err == nil {
		status.Status = setting.Value
	}
	if setting, err := s.db.GetSetting(entities.SettingKeyCoverSyncLastMessage); err == nil {
		status.Message = setting.Value
	}
	if setting, err := s.db.GetSetting(entities.SettingKeyCoverSyncTasksQueued); err == nil && setting.Value != "" {
		if count, err := strconv.Atoi(setting.Value); err == nil {
			status.TasksQueued = count
		}
	}

	return status
}

// SetCoverSyncStatus records the outcome of a run, stamped with the current
// time.
func (s *SettingsStore) SetCoverSyncStatus(status, message string, tasksQueued int) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if err := s.db.SetSetting(entities.SettingKeyCoverSyncLastAt, now); err != nil {
		return err
	}
	if err := s.db.SetSetting(entities.SettingKeyCoverSyncLastStatus, status); err != nil {
		return err
	}
	if err := s.db.SetSetting(entities.SettingKeyCoverSyncLastMessage, message); err != nil {
		return err
	}
	return s.db.SetSetting(entities.SettingKeyCoverSyncTasksQueued, strconv.Itoa(tasksQueued))
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a standard 5-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

func GetCronDescription(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "0 3 * * *":
		return "Daily at 03:00"
	case "0 0 * * 0":
		return "Weekly on Sunday at midnight"
	default:
		return "Custom schedule: " + schedule
	}
}

// GetNextRunTime returns the first activation of schedule after now.
func GetNextRunTime(schedule string) (*time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}
