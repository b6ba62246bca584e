// Package migrations layers a versioned, goose-backed migration runner on
// top of Store.Migrate's AutoMigrate pass, grounded in rezkam-mono's
// postgres.NewStoreWithConfig (embed.FS + goose.SetBaseFS + goose.Up). GORM
// auto-migration creates the four tables and their columns; this runner
// owns the explicit index set spec.md §6 names, so upgrading an existing
// production database never depends on AutoMigrate's best-effort index
// diffing.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Run applies every pending migration against db, which must be a
// *sql.DB over the same Postgres connection the Store's *gorm.DB wraps.
func Run(db *sql.DB) error {
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
