package app

import (
	"context"
	"errors"
	"fmt"

	"cycletracker/internal/domain"
)

// ErrUnknownPreference indicates a key that is not a known setting.
var ErrUnknownPreference = errors.New("unknown preference")

// PreferencesService encapsulates the settings screen use cases.
type PreferencesService struct {
	repo domain.PreferenceRepository
}

// NewPreferencesService creates a PreferencesService backed by the given repository.
func NewPreferencesService(repo domain.PreferenceRepository) *PreferencesService {
	return &PreferencesService{repo: repo}
}

// Get returns every preference, with stored values overriding defaults.
// Stored keys that are no longer known are dropped.
func (s *PreferencesService) Get(ctx context.Context, userID int64) (map[string]bool, error) {
	prefs := domain.DefaultPreferences()
	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	for k, v := range stored {
		if _, ok := prefs[k]; ok {
			prefs[k] = v
		}
	}
	return prefs, nil
}

// Set stores a single preference and returns the full updated set.
func (s *PreferencesService) Set(ctx context.Context, userID int64, key string, value bool) (map[string]bool, error) {
	if _, ok := domain.DefaultPreferences()[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreference, key)
	}
	if err := s.repo.SetPreference(ctx, userID, key, value); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}
