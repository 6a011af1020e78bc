package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/go-co-op/gocron/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skillSwapAPI/handlers"
	"skillSwapAPI/internal/notification"
	"skillSwapAPI/middleware"
	"skillSwapAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	catalogService      *services.CatalogService
	progressionService  *services.ProgressionService
	rewardService       *services.RewardService
	endorsementService  *services.EndorsementService
	challengeService    *services.ChallengeService
	notificationService *services.NotificationService
	fcmService          *notification.FCMService
	scheduler           gocron.Scheduler
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	// Tier gating can be switched off for tier soft-launches.
	tierGatingEnabled := os.Getenv("TIER_GATING_ENABLED") != "false"
	log.Printf("Tier gating enabled: %v", tierGatingEnabled)

	notificationService = services.NewNotificationService(dbPool)
	catalogService = services.NewCatalogService(dbPool)
	progressionService = services.NewProgressionService(dbPool)
	rewardService = services.NewRewardService(dbPool)
	rewardService.SetNotifier(notificationService)
	endorsementService = services.NewEndorsementService(dbPool)
	challengeService = services.NewChallengeService(dbPool, progressionService, rewardService, notificationService, tierGatingEnabled)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	scheduler, err = services.StartScheduler(dbPool, catalogService, notificationService)
	if err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	challengeHandler := handlers.NewChallengeHandler(challengeService, catalogService)
	progressionHandler := handlers.NewProgressionHandler(progressionService, endorsementService, notificationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "skillSwap-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public reads (auth optional, used for personalization only)
	public := api.PathPrefix("").Subrouter()
	public.Use(middleware.OptionalAuthMiddleware)
	public.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	public.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	public.HandleFunc("/users/{id}/progression", progressionHandler.GetUserProgression).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/challenges/{id}/start", challengeHandler.StartChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/progress", challengeHandler.UpdateChallengeProgress).Methods("PUT")
	protected.HandleFunc("/user-challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")
	protected.HandleFunc("/user-challenges/{id}/abandon", challengeHandler.AbandonChallenge).Methods("POST")
	protected.HandleFunc("/user/challenge-stats", challengeHandler.GetChallengeStats).Methods("GET")

	protected.HandleFunc("/user/progression", progressionHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/user/tiers", progressionHandler.GetUnlockedTiers).Methods("GET")
	protected.HandleFunc("/user/tiers/unlock", progressionHandler.UnlockTier).Methods("POST")
	protected.HandleFunc("/users/{id}/endorsements", progressionHandler.AddEndorsement).Methods("POST")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

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

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
