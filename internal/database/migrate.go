package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const migrationsTable = "schema_migrations"

// RunMigrations applies every *.up.sql file in dir that has not been recorded
// in schema_migrations, in file name order. Files may hold several statements
// separated by semicolons at line end.
func RunMigrations(ctx context.Context, db *sqlx.DB, dir string, log *zap.Logger) error {
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	applied := map[string]bool{}
	var versions []string
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM "+migrationsTable); err != nil {
		return fmt.Errorf("could not read applied migrations: %w", err)
	}
	for _, v := range versions {
		applied[v] = true
	}

	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")
		if applied[version] {
			log.Debug("Skipping applied migration", zap.String("version", version))
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("could not execute migration %s: %w", file, err)
			}
		}
		insert := db.Rebind("INSERT INTO " + migrationsTable + " (version) VALUES (?)")
		if _, err := db.ExecContext(ctx, insert, version); err != nil {
			return fmt.Errorf("could not record migration %s: %w", file, err)
		}
		log.Info("Executed migration", zap.String("version", version))
	}

	log.Info("Migrations completed successfully", zap.Int("files", len(files)))
	return nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ensureMigrationsTable creates the bookkeeping table. Oracle before 23c has
// no IF NOT EXISTS, so existence is probed with a query instead.
func ensureMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "SELECT COUNT(*) FROM "+migrationsTable); err == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE "+migrationsTable+" (version VARCHAR(255) PRIMARY KEY)"); err != nil {
		return fmt.Errorf("could not create %s: %w", migrationsTable, err)
	}
	return nil
}

// splitStatements splits on semicolons that end a line and drops blanks and
// full-line comments. Oracle rejects a trailing semicolon, so it is stripped.
func splitStatements(content string) []string {
	var stmts []string
	var cur strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			cur.WriteString(strings.TrimSuffix(trimmed, ";"))
			if s := strings.TrimSpace(cur.String()); s != "" {
				stmts = append(stmts, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteString(trimmed)
		cur.WriteString(" ")
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
