// Package db embeds the SQL migrations for the external mapping table.
package db

import "embed"

// Dir is the directory of the migration files inside Migrations
const Dir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS
