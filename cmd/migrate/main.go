// Command migrate runs schema operations for Warbler.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"warbler/internal/config"
	"warbler/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate/main.go <auto|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "auto":
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("auto migration failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		tables, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		pending := 0
		for _, t := range tables {
			if !t.Exists {
				pending++
			}
			log.Printf("table=%s exists=%t", t.Table, t.Exists)
		}
		log.Printf("driver=%s env=%s tables=%d missing=%d", db.Dialector.Name(), cfg.Env, len(tables), pending)
	default:
		return usage()
	}

	return nil
}
