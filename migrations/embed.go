// Package migrations embeds the command log schema into the binary.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files at its root. Pass it to
// database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
