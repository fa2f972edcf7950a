package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	var (
		dir       string
		direction string
		steps     int
	)
	flag.StringVar(&dir, "dir", "migrations", "directory containing migration files")
	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|version")
	flag.IntVar(&steps, "steps", 0, "number of steps (0 = all for up, 1 for down)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		log.Fatalf("Failed to init migrate: %v", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("Close migration source: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("Close migration database: %v", dbErr)
		}
	}()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migrate up failed: %v", err)
		}
		printVersion(m)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Migrate down failed: %v", err)
		}
		printVersion(m)
	case "version":
		printVersion(m)
	default:
		log.Fatalf("Unsupported direction: %s (use up|down|version)", direction)
	}
}

func printVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied yet")
		return
	}
	if err != nil {
		log.Fatalf("Read migration version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty=%v)\n", version, dirty)
}
