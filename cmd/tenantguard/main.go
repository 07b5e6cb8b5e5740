package main

import (
	"log"

	"github.com/okapicare/tenantguard/internal/security/app"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from a .env file when one exists; real
	// deployments set the environment directly.
	_ = godotenv.Load()

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
