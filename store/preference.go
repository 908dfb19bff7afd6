package store

import (
	"context"
)

// Preference is a single user preference key/value pair.
type Preference struct {
	UserID    string
	Key       string
	Value     string
	MemoryRef *string
	UpdatedTs int64
}

// UpsertPreference is the upsert request for a preference.
type UpsertPreference struct {
	UserID    string
	Key       string
	Value     string
	MemoryRef *string
}

// FindPreference is the find condition for preferences.
type FindPreference struct {
	UserID *string
	Key    *string
}

// UpsertPreference inserts or replaces a preference row.
func (s *Store) UpsertPreference(ctx context.Context, upsert *UpsertPreference) (*Preference, error) {
	pref, err := s.driver.UpsertPreference(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.invalidateUserContext(upsert.UserID)
	return pref, nil
}

// ListPreferences lists preference rows for a user, ordered by key.
func (s *Store) ListPreferences(ctx context.Context, find *FindPreference) ([]*Preference, error) {
	return s.driver.ListPreferences(ctx, find)
}

// GetPreference returns a single preference, nil when unset.
func (s *Store) GetPreference(ctx context.Context, userID, key string) (*Preference, error) {
	list, err := s.driver.ListPreferences(ctx, &FindPreference{UserID: &userID, Key: &key})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
