// Package migrations embeds the schema files for the local and remote databases.
package migrations

import "embed"

// FS holds sqlite/NNN_*.sql and postgres/NNN_*.sql.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
