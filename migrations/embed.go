// Package migrations embeds the SQL schema so the server binary carries it.
package migrations

import "embed"

// FS holds every NNN_name.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
