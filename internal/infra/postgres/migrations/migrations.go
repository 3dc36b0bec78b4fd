// Package migrations holds the schema for question sets and archived results.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
