// Package migrations embeds the Furnace SQL schema into the binary and
// registers it with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
)

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS

func init() {
	database.MigrationsFS = FS
	database.MigrationsDir = "."
}
