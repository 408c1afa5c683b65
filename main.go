package main

import (
	"context"
	"os"
	"time"

	"gocausal/adapters/postgres"
	"gocausal/adapters/stats/model"
	"gocausal/app"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/estimator"
	"gocausal/ports"
	"gocausal/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// .env is a development convenience; absence is fine
	_ = godotenv.Load()

	logger := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration: %v", err)
		os.Exit(1)
	}

	var results ports.ResultRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			logger.Error("database connection: %v", err)
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			cancel()
			logger.Error("schema setup: %v", err)
			os.Exit(1)
		}
		cancel()
		results = postgres.NewResultRepository(db)
		logger.Info("result store enabled")
	} else {
		logger.Info("DATABASE_URL not set, running without a result store")
	}

	est := estimator.NewATEEstimator(model.NewLogisticRegression(), model.NewOLSOutcomeModel())
	service := app.NewEstimationService(est, results, cfg.Estimation)

	server := ui.NewServer(service, results)
	if err := server.Start(ui.Config{Port: cfg.Server.Port}); err != nil {
		logger.Error("server: %v", err)
		os.Exit(1)
	}
}
