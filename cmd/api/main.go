package main

import (
	"log"

	"github.com/joho/godotenv"

	"qcluster/adapters/api"
	"qcluster/adapters/postgres"
	"qcluster/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if !cfg.Database.Enabled {
		log.Fatal("DATABASE_URL must be set to serve stored results")
	}

	store, err := postgres.NewStudyRepository(cfg.Database.URL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer store.Close()

	srv := api.NewServer(store)
	log.Printf("serving results API on :%s", cfg.Server.Port)
	if err := srv.Start(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
