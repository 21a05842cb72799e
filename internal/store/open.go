package store

import "fmt"

// Open returns the store named by driver: "sqlite", "postgres" or "memory".
func Open(driver, sqlitePath, databaseURL string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(sqlitePath)
	case "postgres":
		if databaseURL == "" {
			return nil, fmt.Errorf("store: postgres driver needs DATABASE_URL")
		}
		return OpenPostgres(databaseURL)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
