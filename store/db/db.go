// Package db wires a profile to a concrete store driver.
package db

import (
	"github.com/pkg/errors"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/store/db/memory"
	"github.com/talklens/talklens/store/db/postgres"
	"github.com/talklens/talklens/store/db/sqlite"
)

// NewDBDriver creates the store driver named by profile.Driver.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	case "memory":
		return memory.NewDB(), nil
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
