package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the embedded migrations directory, rooted so that
// file names are "0001_init.up.sql" and so on.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// The pattern above guarantees the directory exists at build time.
		panic(err)
	}
	return sub
}
