// Package database opens the SQL connection used by the database run state
// store. It selects the gorm dialector for postgres, mysql or sqlite (pure Go,
// no cgo), configures the connection pool and runs a periodic health check.
package database
