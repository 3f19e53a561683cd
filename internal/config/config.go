package config

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config junta todo lo que el servicio lee de env. godotenv/autoload en main
// carga .env antes de que esto corra.
type Config struct {
	AppName string
	Port    string

	// Vacío => repos in-memory (modo dev).
	DBDSN string

	LogLevel  string
	LogFormat string

	// Upstream de cuentas (verificación de tokens). Vacío => modo dev con
	// X-Debug-User-ID.
	AccountsBaseURL string
	AccountsAPIKey  string

	// Upstream de planes (capabilities premium). Vacío => sin gating.
	PlansBaseURL string
	PlansAPIKey  string
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.LogLevel, validation.In("", "debug", "info", "warn", "warning", "error")),
		validation.Field(&c.LogFormat, validation.In("", "text", "json")),
		validation.Field(&c.AccountsBaseURL, is.URL),
		validation.Field(&c.PlansBaseURL, is.URL),
	)
}

// Load arma la config desde env con defaults de dev.
func Load() (Config, error) {
	c := Config{
		AppName:         envOr("APP_NAME", "child-health-history"),
		Port:            envOr("PORT", "8080"),
		DBDSN:           strings.TrimSpace(os.Getenv("DB_DSN")),
		LogLevel:        strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:       strings.TrimSpace(os.Getenv("LOG_FORMAT")),
		AccountsBaseURL: strings.TrimSpace(os.Getenv("ACCOUNTS_BASE_URL")),
		AccountsAPIKey:  strings.TrimSpace(os.Getenv("ACCOUNTS_API_KEY")),
		PlansBaseURL:    strings.TrimSpace(os.Getenv("PLANS_BASE_URL")),
		PlansAPIKey:     strings.TrimSpace(os.Getenv("PLANS_API_KEY")),
	}

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
