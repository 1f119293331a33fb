package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"sendqueue/internal/migrations"
)

func main() {
	dbPath := flag.String("db", "./sendqueue.db", "Path to the database file")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database file not found: %s", *dbPath)
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	before, err := migrations.CurrentVersion(db)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}

	if before >= migrations.LatestVersion() {
		fmt.Printf("Schema already at version %d, nothing to do\n", before)
		return
	}

	fmt.Printf("Migrating schema from version %d to %d...\n", before, migrations.LatestVersion())
	if err := migrations.Apply(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully")
	fmt.Println("Database schema updated. You can now restart SendQueue.")
}
