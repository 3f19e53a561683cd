package router

import (
	"database/sql"
	"net/http"
	"os"

	mem "child-health-history/internal/adapters/storage/memory"
	pg "child-health-history/internal/adapters/storage/postgres"
	"child-health-history/internal/domain/accessgrants"
	"child-health-history/internal/domain/children"
	"child-health-history/internal/domain/medications"
	"child-health-history/internal/domain/records"
	"child-health-history/internal/middleware"
	"child-health-history/internal/platform/logger"
	"child-health-history/internal/ports/auth"
	"child-health-history/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: gating de features premium. nil => sin gating.
	Capabilities capabilities.Resolver

	// Opcional: request logging. nil => sin log por request.
	Logger logger.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if opts.Logger != nil {
		r.Use(middleware.RequestLog(opts.Logger))
	}

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		childrenRepo    children.Repository
		medicationsRepo medications.Repository
		recordsRepo     records.Repository
		grantsRepo      accessgrants.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		childrenRepo = pg.NewChildrenRepo(db)
		medicationsRepo = pg.NewMedicationsRepo(db)
		recordsRepo = pg.NewRecordsRepo(db)
		grantsRepo = pg.NewAccessGrantsRepo(db)
	} else {
		childrenRepo = mem.NewChildrenRepo()
		medicationsRepo = mem.NewMedicationsRepo()
		recordsRepo = mem.NewRecordsRepo()
		grantsRepo = mem.NewAccessGrantsRepo()
	}

	// Services por módulo
	childrenSvc := children.NewService(childrenRepo)
	medicationsSvc := medications.NewService(medicationsRepo)
	recordsSvc := records.NewService(recordsRepo)
	grantsSvc := accessgrants.NewService(grantsRepo)

	// Rutas por módulo
	children.RegisterRoutes(r, childrenSvc, grantsSvc, opts.Capabilities)
	medications.RegisterRoutes(r, medicationsSvc, childrenSvc, grantsSvc)
	records.RegisterRoutes(r, recordsSvc, childrenSvc, grantsSvc)
	accessgrants.RegisterRoutes(r, grantsSvc, childrenSvc)

	return r
}
