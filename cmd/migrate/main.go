package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/climsense/climate-logger/internal/store/migrations"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Database connection string")
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	flag.Parse()

	if *dbURL == "" {
		log.Println("Database connection string is required (-db or DATABASE_URL)")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(db, *rollback); err != nil {
		log.Printf("Migration failed: %v", err)
		os.Exit(1)
	}
}

// run applies or rolls back the schema migrations against an open database
func run(db *sql.DB, rollback bool) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := migrations.New(db)

	migrationList := []*migrations.Migration{
		migrations.InitialSchema,
		migrations.RetentionPolicies,
	}

	if rollback {
		if err := migrator.Rollback(migrationList); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	}

	if err := migrator.Migrate(migrationList); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
