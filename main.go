package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenTrackAPI/handlers"
	"greenTrackAPI/internal/config"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/docstore/firestore"
	"greenTrackAPI/internal/docstore/memory"
	"greenTrackAPI/internal/docstore/postgres"
	"greenTrackAPI/middleware"
	"greenTrackAPI/services"
)

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		store, err := firestore.Open(ctx, firestore.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			MaxAttempts:     cfg.StoreTxMaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.StoreTxMaxAttempts)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		log.Println("Using in-memory store, data will not survive a restart")
		return memory.New(memory.WithMaxAttempts(cfg.StoreTxMaxAttempts)), nil
	}
}

type routerDeps struct {
	store            docstore.Store
	verifier         middleware.TokenVerifier
	limiter          *middleware.RateLimiter
	metricsUser      string
	metricsPass      string
	userHandler      *handlers.UserHandler
	eventHandler     *handlers.EventHandler
	communityHandler *handlers.CommunityHandler
}

func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)
	r.Use(d.limiter.Middleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(d.metricsUser, d.metricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := d.store.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "store unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "greenTrack-api"}`))
	}).Methods("GET")

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.AuthMiddleware(d.verifier))

	protected.HandleFunc("/user/sign-in", d.userHandler.SignIn).Methods("POST")
	protected.HandleFunc("/user", d.userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/location", d.userHandler.UpdateLocation).Methods("PUT")

	protected.HandleFunc("/events", d.eventHandler.PostEvent).Methods("POST")

	protected.HandleFunc("/communities/{id}", d.communityHandler.GetCommunity).Methods("GET")
	protected.HandleFunc("/leaderboard", d.communityHandler.GetLeaderboard).Methods("GET")

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	var verifier middleware.TokenVerifier
	switch {
	case cfg.ClerkSecretKey != "":
		clerk.SetKey(cfg.ClerkSecretKey)
		verifier = middleware.ClerkVerifier
		log.Println("Clerk initialized successfully")
	case cfg.DevJWTSecret != "":
		verifier = middleware.HMACVerifier([]byte(cfg.DevJWTSecret))
		log.Println("WARNING: Using DEV_JWT_SECRET token verification, not for production")
	default:
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}

	registry, err := cfg.Registry()
	if err != nil {
		log.Fatal("Failed to load community registry: ", err)
	}
	log.Printf("Loaded %d communities", len(registry.All()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal("Failed to open store: ", err)
	}
	log.Printf("Connected to %s store", cfg.StoreBackend)

	defer func() {
		log.Println("Closing store...")
		store.Close()
	}()

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	leadershipService := services.NewLeadershipService(store, registry)
	dispatcher := services.NewReconcileDispatcher(leadershipService, registry, services.DispatcherOptions{
		Workers:       cfg.Reconcile.Workers,
		QueueSize:     cfg.Reconcile.QueueSize,
		Timeout:       cfg.Reconcile.Timeout,
		SweepInterval: cfg.Reconcile.SweepInterval,
	})
	defer dispatcher.Stop()

	ledgerService := services.NewLedgerService(store, cfg.Policy(), dispatcher)
	communityService := services.NewCommunityService(store, registry, dispatcher)

	limiter := middleware.NewRateLimiter(5, 30)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go limiter.CleanupVisitors(cleanupCtx)

	r := newRouter(routerDeps{
		store:            store,
		verifier:         verifier,
		limiter:          limiter,
		metricsUser:      cfg.MetricsUser,
		metricsPass:      cfg.MetricsPass,
		userHandler:      handlers.NewUserHandler(communityService),
		eventHandler:     handlers.NewEventHandler(ledgerService),
		communityHandler: handlers.NewCommunityHandler(communityService),
	})

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
