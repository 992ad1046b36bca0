// assets/embed.go
//
// Files compiled into the binary:
//   - listings.json:    default listing dataset (used when LISTINGS_FILE is unset).
//   - migrations/*.sql: SQLite schema, applied in lexical order on startup.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed listings.json migrations/*.sql
var FS embed.FS

// ListingsJSON returns the raw embedded listing dataset.
func ListingsJSON() ([]byte, error) {
	return FS.ReadFile("listings.json")
}

// Migrations returns the migrations directory as its own filesystem root.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "migrations")
	if err != nil {
		// Only possible if the embed pattern above changes.
		panic(err)
	}
	return sub
}
