package db

import (
	"io/fs"

	"github.com/persistorai/credsync/internal/db/migrations"
)

// SchemaVersion is the number of embedded migrations, i.e. the schema
// version this binary expects. The readiness endpoint reports it.
func SchemaVersion() int {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return 0
	}

	return len(files)
}
