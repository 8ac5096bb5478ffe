// Package db provides embedded database schema and migration files.
package db

import _ "embed"

// Schema contains the PostgreSQL DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// MySQLSchema contains the MySQL DDL statements, separated by semicolons.
//
//go:embed migrations/mysql/001_schema.sql
var MySQLSchema string
