// Package migrations compiles the namespace schema migrations into the
// binary, so deployment needs no SQL files on disk. Importing it for
// side effects is enough:
//
//	import _ "github.com/nerrad567/gray-logic-omada/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
