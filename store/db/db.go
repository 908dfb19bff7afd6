package db

import (
	"github.com/pkg/errors"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/store"
	"github.com/nudgebot/nudge/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
// SQLite is the only supported driver; the ground-truth store is a single
// embedded database file owned by this process.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' is supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
