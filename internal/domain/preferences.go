package domain

import "context"

// Preference keys understood by the settings screen.
const (
	PrefDarkMode       = "darkMode"
	PrefNotifications  = "notifications"
	PrefCycleReminders = "cycleReminders"
	PrefBackup         = "backup"
	PrefHealthKit      = "healthKit"
	PrefPrediction     = "prediction"
	PrefSharing        = "sharing"
)

// DefaultPreferences returns the value each preference has until the user
// changes it.
func DefaultPreferences() map[string]bool {
	return map[string]bool{
		PrefDarkMode:       false,
		PrefNotifications:  true,
		PrefCycleReminders: true,
		PrefBackup:         false,
		PrefHealthKit:      false,
		PrefPrediction:     true,
		PrefSharing:        false,
	}
}

// PreferenceRepository is the port for per-user key-value settings.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID int64) (map[string]bool, error)
	SetPreference(ctx context.Context, userID int64, key string, value bool) error
	DeletePreferences(ctx context.Context, userID int64) error
}
