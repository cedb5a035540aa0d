// Package migrations provides SQL migration generation for the replay checkpoint table.
// It renders the DDL for PostgreSQL, MySQL/MariaDB and SQLite, either as a migration
// file for teams that manage schemas themselves or as a statement the SQL checkpoint
// store runs on startup.
package migrations
