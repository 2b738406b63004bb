// Package migrations embeds the SQL migration files into the binary and
// registers them with the database package.
//
// Importing this package (for side effects) is all that is required:
//
//	import _ "github.com/observon/indi-core/migrations"
//
// Migration files follow the naming convention
// YYYYMMDD_HHMMSS_description.up.sql (with an optional matching .down.sql)
// and are applied in lexical version order by database.Migrate.
package migrations

import (
	"embed"

	"github.com/observon/indi-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
