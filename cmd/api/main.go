package main

import (
	"net/http"
	"os"
	"time"

	"child-health-history/internal/adapters/auth/accounts"
	"child-health-history/internal/adapters/capabilities/plans"
	pg "child-health-history/internal/adapters/storage/postgres"
	"child-health-history/internal/config"
	"child-health-history/internal/platform/logger"
	"child-health-history/internal/router"

	_ "child-health-history/docs"

	_ "github.com/joho/godotenv/autoload"
)

// @title child-health-history API
// @version 0.1
// @description Backend de historia de salud infantil: perfiles, medicamentos con horarios de dosis, registros y delegación de acceso.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger todavía no existe; stderr directo.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	opts := router.Options{Logger: log}

	if cfg.DBDSN != "" {
		db, err := pg.Open(cfg.DBDSN)
		if err != nil {
			log.Error("postgres open failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()
		opts.DB = db
		log.Info("storage: postgres", nil)
	} else {
		log.Info("storage: in-memory (dev)", nil)
	}

	if cfg.AccountsBaseURL != "" {
		client, err := accounts.NewClient(accounts.Config{
			BaseURL: cfg.AccountsBaseURL,
			APIKey:  cfg.AccountsAPIKey,
		})
		if err != nil {
			log.Error("accounts client init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		opts.AuthVerifier = accounts.NewVerifier(client)
		log.Info("auth: accounts verifier", nil)
	} else {
		log.Warn("auth: dev mode (X-Debug-User-ID)", nil)
	}

	if cfg.PlansBaseURL != "" {
		client, err := plans.NewClient(plans.Config{
			BaseURL: cfg.PlansBaseURL,
			APIKey:  cfg.PlansAPIKey,
		})
		if err != nil {
			log.Error("plans client init failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		opts.Capabilities = plans.NewResolver(client)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.NewRouter(opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": cfg.Addr()})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
