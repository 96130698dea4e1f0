// Command migrate prepares a database for the record store: it loads the
// service configuration, applies pending schema migrations and verifies the
// store can be constructed against the result.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/clinrec/recordstore/internal/config"
	"github.com/clinrec/recordstore/internal/db"
	"github.com/clinrec/recordstore/internal/repository"
	"github.com/clinrec/recordstore/internal/store"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	repo := repository.NewPostgresRepository(conn)
	if _, err := store.New(repo, cfg.SystemID); err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	log.Printf("Database %s ready (system id %s)", cfg.DB.DBName, cfg.SystemID)
}
