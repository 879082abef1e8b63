// seed bulk-loads historical SISMED consumption exports into Postgres so
// analysts can query past months without re-uploading spreadsheets.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/ingest"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Seed the database with historical consumption data",
		Commands: []*cli.Command{
			{
				Name:  "catalog",
				Usage: "Seed the item catalog from consumption exports",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing consumption export files",
						Value:   "./data/seeds/consumption",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Action: func(c *cli.Context) error {
					return runSeeder(c, seedCatalogOnly)
				},
			},
			{
				Name:  "history",
				Usage: "Seed catalog and monthly consumption history from exports",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing consumption export files",
						Value:   "./data/seeds/consumption",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Action: func(c *cli.Context) error {
					return runSeeder(c, seedCatalogAndHistory)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type seedMode int

const (
	seedCatalogOnly seedMode = iota
	seedCatalogAndHistory
)

func runSeeder(c *cli.Context, mode seedMode) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := ensureSeedSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to prepare seed schema: %w", err)
	}

	files, err := listExports(c.String("data-dir"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no consumption exports found in %s", c.String("data-dir"))
	}

	log.Printf("Seeding from %d export file(s)...", len(files))
	for _, file := range files {
		if err := seedExport(ctx, db, file, mode); err != nil {
			return fmt.Errorf("failed to seed %s: %w", filepath.Base(file), err)
		}
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

func listExports(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir %s: %w", dataDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".csv" || ext == ".xlsx" {
			files = append(files, filepath.Join(dataDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func ensureSeedSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS item_catalog (
		code       TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		form       TEXT,
		item_type  TEXT,
		petitorio  TEXT,
		situation  TEXT,
		unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS consumption_history (
		item_code   TEXT NOT NULL REFERENCES item_catalog(code),
		source_file TEXT NOT NULL,
		month_index SMALLINT NOT NULL CHECK (month_index BETWEEN 1 AND 12),
		quantity    DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (item_code, source_file, month_index)
	);`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// seedExport loads one export file in a single transaction so a broken
// file never leaves a half-loaded month behind.
func seedExport(ctx context.Context, db *sql.DB, path string, mode seedMode) error {
	items, err := ingest.ParseFile(path)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	catalogStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO item_catalog (code, name, form, item_type, petitorio, situation, unit_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name       = EXCLUDED.name,
			form       = EXCLUDED.form,
			item_type  = EXCLUDED.item_type,
			petitorio  = EXCLUDED.petitorio,
			situation  = EXCLUDED.situation,
			unit_price = EXCLUDED.unit_price,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare catalog statement: %w", err)
	}
	defer catalogStmt.Close()

	historyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO consumption_history (item_code, source_file, month_index, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_code, source_file, month_index) DO UPDATE SET
			quantity = EXCLUDED.quantity`)
	if err != nil {
		return fmt.Errorf("failed to prepare history statement: %w", err)
	}
	defer historyStmt.Close()

	sourceFile := filepath.Base(path)
	rowCount := 0
	for _, item := range items {
		if err := seedItem(ctx, catalogStmt, historyStmt, item, sourceFile, mode); err != nil {
			return err
		}
		rowCount++
		if rowCount%500 == 0 {
			log.Printf("Seeded %d items from %s...", rowCount, sourceFile)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Successfully seeded %s (%d items)", sourceFile, rowCount)
	return nil
}

func seedItem(ctx context.Context, catalogStmt, historyStmt *sql.Stmt, item domain.ItemRecord, sourceFile string, mode seedMode) error {
	if _, err := catalogStmt.ExecContext(ctx,
		item.ID,
		item.Name,
		nullIfEmpty(item.Form),
		nullIfEmpty(item.Type),
		nullIfEmpty(item.Petitorio),
		nullIfEmpty(item.Situation),
		item.UnitPrice,
	); err != nil {
		return fmt.Errorf("failed to upsert catalog entry %s: %w", item.ID, err)
	}

	if mode != seedCatalogAndHistory {
		return nil
	}

	for i, quantity := range item.History {
		if _, err := historyStmt.ExecContext(ctx, item.ID, sourceFile, i+1, quantity); err != nil {
			return fmt.Errorf("failed to upsert history for %s month %d: %w", item.ID, i+1, err)
		}
	}
	return nil
}

// nullIfEmpty returns NULL if the string is empty, otherwise returns the string
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
