// Package migrations embeds the SQL schema applied by golang-migrate.
package migrations

import "embed"

// Files holds the versioned up/down migrations.
//
//go:embed *.sql
var Files embed.FS
