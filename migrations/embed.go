// Package migrations содержит SQL-миграции схемы cronfleet.
//
// Файлы встраиваются в бинарь и применяются через golang-migrate
// (repo.MigrateUp, cmd/cronfleet-migrate).
package migrations

import "embed"

// FS — встроенные файлы миграций.
//
//go:embed *.sql
var FS embed.FS
