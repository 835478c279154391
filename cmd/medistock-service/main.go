package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	authhandler "github.com/medistock/medistock-backend/internal/auth/handler"
	"github.com/medistock/medistock-backend/internal/auth/identity"
	"github.com/medistock/medistock-backend/internal/auth/jwt"
	authmw "github.com/medistock/medistock-backend/internal/auth/middleware"
	authrepo "github.com/medistock/medistock-backend/internal/auth/repository"
	authservice "github.com/medistock/medistock-backend/internal/auth/service"
	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/handler"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/internal/inventory/mailer"
	"github.com/medistock/medistock-backend/internal/inventory/reorder"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	userevents "github.com/medistock/medistock-backend/internal/user/events"
	userhandler "github.com/medistock/medistock-backend/internal/user/handler"
	userrepo "github.com/medistock/medistock-backend/internal/user/repository"
	userservice "github.com/medistock/medistock-backend/internal/user/service"
	"github.com/medistock/medistock-backend/migrations"
	"github.com/medistock/medistock-backend/pkg/cache"
	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
	"github.com/medistock/medistock-backend/pkg/permissions"
)

const serviceName = "medistock-service"

const sessionCleanupInterval = time.Hour

func main() {
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting MediStock service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if *migrate {
		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("migrations applied")
	}

	settingsCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Cache.Type).Msg("failed to create cache")
	}
	defer settingsCache.Close()

	// Without a broker the service runs as a single instance: live updates
	// stay local and no events leave the process.
	instance := uuid.NewString()
	var (
		rmq            *messaging.RabbitMQ
		inventoryPub   *events.InventoryEventPublisher
		userPub        *userevents.UserEventPublisher
		relay          *events.ChangeRelay
		hub            = live.NewHub()
		brokerRequired = cfg.Server.Environment == config.EnvProduction || cfg.Server.Environment == config.EnvStaging
	)
	rmq, err = messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if brokerRequired {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Warn().Err(err).Msg("RabbitMQ unavailable, running without events")
		rmq = nil
	}
	if rmq != nil {
		defer rmq.Close()

		if inventoryPub, err = events.NewInventoryEventPublisher(rmq, instance, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create inventory event publisher")
		}
		if userPub, err = userevents.NewUserEventPublisher(rmq, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create user event publisher")
		}
		if relay, err = events.NewChangeRelay(rmq, hub, instance, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create change relay")
		}
	}

	// Repositories
	itemRepo := repository.NewItemRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	checkRepo := repository.NewCheckRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	profileRepo := userrepo.NewUserRepository(db)
	identityRepo := authrepo.NewIdentityRepository(db)
	sessionRepo := authrepo.NewSessionRepository(db)

	// Identity and tokens
	tokens := jwt.NewManager(&cfg.JWT)
	provider := identity.NewLocalProvider(identityRepo, tokens)

	// Services
	inventoryService := service.NewInventoryService(itemRepo, hierarchyRepo, hub, inventoryPub, log)
	hierarchyService := service.NewHierarchyService(hierarchyRepo, itemRepo, hub, inventoryPub, log)
	checkService := service.NewCheckService(checkRepo, hub, inventoryPub, log)
	reportService := service.NewReportService(itemRepo, hierarchyRepo, log)
	settingsService := service.NewSettingsService(settingsRepo, settingsCache, cfg.Cache.TTL, inventoryPub, log)
	suggestionService := service.NewSuggestionService(itemRepo, hierarchyRepo, reorder.NewLLMClient(cfg.AI), log)
	userService := userservice.NewUserService(profileRepo, provider, sessionRepo, userPub, log)
	authService := authservice.NewAuthService(provider, sessionRepo, profileRepo, tokens, log)

	notifier := service.NewNotifier(profileRepo, itemRepo, settingsService, mailer.NewSMTPSender(cfg.SMTP), inventoryPub, log)
	expiryJob := service.NewExpiryJob(notifier, db, log)

	if relay != nil {
		relay.OnSettingsChanged(settingsService.Invalidate)
		if err := relay.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start change relay")
		}
	}

	if cfg.Cron.Enabled {
		scheduler := service.NewExpiryScheduler(expiryJob, cfg.Cron.Interval, log)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.CleanupSessions(ctx)
			}
		}
	}()

	// Handlers
	authHandler := authhandler.NewAuthHandler(authService, log)
	userHandler := userhandler.NewUserHandler(userService, log)
	itemHandler := handler.NewItemHandler(inventoryService, log)
	dashboardHandler := handler.NewDashboardHandler(inventoryService, log)
	hierarchyHandler := handler.NewHierarchyHandler(hierarchyService, log)
	checkHandler := handler.NewCheckHandler(checkService, log)
	exportHandler := handler.NewExportHandler(reportService, log)
	suggestionHandler := handler.NewSuggestionHandler(suggestionService, log)
	settingsHandler := handler.NewSettingsHandler(settingsService, log)
	streamHandler := handler.NewStreamHandler(inventoryService, hub, log)
	cronHandler := handler.NewCronHandler(expiryJob, cfg.Cron.Secret, log)
	authenticator := authmw.NewAuthenticator(provider, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin(cfg.Server.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Get("/cron/check-expirations", cronHandler.CheckExpirations)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticate)

			r.Route("/items", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.InventoryRead)).Get("/", itemHandler.List)
				r.With(authmw.RequirePermission(permissions.InventoryWrite)).Post("/", itemHandler.Create)
				r.With(authmw.RequirePermission(permissions.InventoryRead)).Get("/lookup", itemHandler.Lookup)
				r.With(authmw.RequirePermission(permissions.InventoryRead)).Get("/{id}", itemHandler.Get)
				r.With(authmw.RequirePermission(permissions.InventoryWrite)).Put("/{id}", itemHandler.Update)
				r.With(authmw.RequirePermission(permissions.InventoryDelete)).Delete("/{id}", itemHandler.Delete)
				r.With(authmw.RequirePermission(permissions.InventoryWrite)).Post("/{id}/stock", itemHandler.AddStock)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Use(authmw.RequirePermission(permissions.InventoryRead))
				r.Get("/overview", itemHandler.Overview)
				r.Get("/stream", streamHandler.Stream)
			})

			r.With(authmw.RequirePermission(permissions.InventoryRead)).Get("/dashboard/stats", dashboardHandler.GetStats)

			r.Route("/vehicles", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.VehiclesRead)).Get("/", hierarchyHandler.ListVehicles)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Post("/", hierarchyHandler.CreateVehicle)
				r.With(authmw.RequirePermission(permissions.VehiclesRead)).Get("/{id}", hierarchyHandler.GetVehicle)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Put("/{id}", hierarchyHandler.UpdateVehicle)
				r.With(authmw.RequirePermission(permissions.VehiclesDelete)).Delete("/{id}", hierarchyHandler.DeleteVehicle)
				r.With(authmw.RequirePermission(permissions.VehiclesRead)).Get("/{id}/tree", hierarchyHandler.GetTree)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Post("/{id}/cases", hierarchyHandler.CreateCase)
			})

			r.Route("/cases", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.VehiclesRead)).Get("/", hierarchyHandler.ListCases)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Put("/{id}", hierarchyHandler.UpdateCase)
				r.With(authmw.RequirePermission(permissions.VehiclesDelete)).Delete("/{id}", hierarchyHandler.DeleteCase)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Post("/{id}/modules", hierarchyHandler.CreateModule)
			})

			r.Route("/modules", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.VehiclesRead)).Get("/", hierarchyHandler.ListModules)
				r.With(authmw.RequirePermission(permissions.VehiclesWrite)).Put("/{id}", hierarchyHandler.UpdateModule)
				r.With(authmw.RequirePermission(permissions.VehiclesDelete)).Delete("/{id}", hierarchyHandler.DeleteModule)
			})

			r.Route("/checks", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.ChecksWrite)).Post("/", checkHandler.Submit)
				r.With(authmw.RequirePermission(permissions.ChecksRead)).Get("/", checkHandler.List)
				r.With(authmw.RequirePermission(permissions.ChecksRead)).Get("/{id}", checkHandler.Get)
			})

			r.With(authmw.RequirePermission(permissions.ReportsRead)).Get("/reports/{type}", exportHandler.Report)
			r.With(authmw.RequirePermission(permissions.SuggestionsRead)).Post("/suggestions/reorder", suggestionHandler.Reorder)

			r.Route("/settings", func(r chi.Router) {
				r.With(authmw.RequirePermission(permissions.SettingsRead)).Get("/email", settingsHandler.GetEmail)
				r.With(authmw.RequirePermission(permissions.SettingsWrite)).Put("/email", settingsHandler.UpdateEmail)
			})

			r.Route("/users", func(r chi.Router) {
				// Every signed-in user may read their own profile.
				r.Get("/me", userHandler.Me)

				r.With(authmw.RequirePermission(permissions.UsersRead)).Get("/", userHandler.List)
				r.With(authmw.RequirePermission(permissions.UsersWrite)).Post("/", userHandler.Create)
				r.With(authmw.RequirePermission(permissions.UsersRead)).Get("/{id}", userHandler.Get)
				r.With(authmw.RequirePermission(permissions.UsersWrite)).Put("/{id}", userHandler.Update)
				r.With(authmw.RequirePermission(permissions.UsersDelete)).Delete("/{id}", userHandler.Delete)
				r.With(authmw.RequirePermission(permissions.UsersWrite)).Patch("/{id}/role", userHandler.ChangeRole)
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// Requests derive from ctx so open streams end on shutdown.
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops the relay, the scheduler, the cleanup loop and open streams.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// allowOrigin accepts the configured origins. An entry starting with "*."
// matches any subdomain of the rest.
func allowOrigin(allowed []string) func(r *http.Request, origin string) bool {
	return func(_ *http.Request, origin string) bool {
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
			if strings.HasPrefix(a, "*.") && strings.HasSuffix(origin, a[1:]) {
				return true
			}
		}
		return false
	}
}
