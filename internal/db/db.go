// Package db embeds the schema migrations applied at startup.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded migration set rooted at the SQL files, as
// the migration runner expects.
func Migrations() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}
