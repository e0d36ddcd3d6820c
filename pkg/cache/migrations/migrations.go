// Package migrations embeds the local cache's sqlite schema as
// golang-migrate migration files, so the on-disk format is versioned
// instead of relying on a blind AutoMigrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
