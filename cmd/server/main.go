package main

import (
	"context"
	"log"

	"github.com/derek/church-finder/internal/api"
	"github.com/derek/church-finder/internal/config"
	"github.com/derek/church-finder/internal/db"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	srv := api.NewServer(cfg, pool)
	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
