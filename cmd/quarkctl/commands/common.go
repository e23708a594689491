package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quark-run/quark/internal/cluster/membership"
	"github.com/quark-run/quark/internal/reminder"
	"github.com/quark-run/quark/internal/statestore"
)

// expandHome expands a leading "~" in path to the user's home directory.
func expandHome(path string) string {
	expanded := os.ExpandEnv(path)
	if expanded == path && len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		expanded = home + path[1:]
	}
	return expanded
}

// openQueries opens the silo's state database (without running migrations,
// so quarkctl never races a live silo's schema setup) and returns a
// reminder.Queries bound to it.
func openQueries() (*reminder.Queries, func() error, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = statestore.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve default db path: %w", err)
		}
	} else {
		path = expandHome(path)
	}

	db, err := statestore.OpenSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}

	return reminder.New(db), db.Close, nil
}

// openDirectoryStore opens the silo's state database and returns a Store
// wrapping it for directory inspection.
func openDirectoryStore() (*statestore.Store, func() error, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = statestore.DefaultDBPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve default db path: %w", err)
		}
	} else {
		path = expandHome(path)
	}

	db, err := statestore.OpenSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}

	return statestore.NewStoreWithLogger(db, slog.Default()), db.Close, nil
}

// openMembershipStore opens the silo's bbolt membership store.
func openMembershipStore() (*membership.BoltStore, error) {
	path := expandHome(membershipPath)

	store, err := membership.OpenBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("open membership store: %w", err)
	}

	return store, nil
}
