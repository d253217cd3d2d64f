package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/af-corp/ai-gateway/internal/config"
	"github.com/af-corp/ai-gateway/internal/store"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if _, err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("ignoring .env: %v", err)
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		dsn = config.DatabaseConfig{
			Host:     envOrDefault("DB_HOST", "localhost"),
			Port:     5432,
			Name:     envOrDefault("DB_NAME", "ai_gateway"),
			User:     envOrDefault("DB_USER", "ai_gateway"),
			Password: envOrDefault("DB_PASSWORD", "ai-gateway-dev"),
		}.DSN()
	}

	res, err := store.Migrate(dsn, *direction, *steps)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Printf("migration %s complete (version: %d, dirty: %v)\n", *direction, res.Version, res.Dirty)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
