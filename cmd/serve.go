package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablebook-backend/clock"
	"tablebook-backend/config"
	"tablebook-backend/database"
	"tablebook-backend/events"
	"tablebook-backend/firebase"
	"tablebook-backend/middleware"
	"tablebook-backend/reservation"
	"tablebook-backend/routes"
	"tablebook-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		migrateUp bool
		seed      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(port, migrateUp, seed)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT or 8080)")
	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the starter catalog when empty (also SEED_CATALOG=true)")
	return cmd
}

func serve(port string, migrateUp, seed bool) error {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("loading .env file: %w", err)
	}

	// Validate critical environment variables
	if err := config.ValidateEnv(); err != nil {
		return fmt.Errorf("environment validation failed: %w", err)
	}

	policy, err := config.ReservationPolicy()
	if err != nil {
		return err
	}
	authPerMinute, err := config.IntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return err
	}
	bookingPerMinute, err := config.IntEnv("BOOKING_RATE_LIMIT_PER_MINUTE", 5)
	if err != nil {
		return err
	}

	if err := utils.RegisterBindingValidators(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := database.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		} else {
			log.Println("Database connection closed")
		}
	}()
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	if migrateUp {
		if err := database.Migrate(conn.DB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Create default admin user if not exists
	if err := database.CreateDefaultAdmin(conn.DB); err != nil {
		log.Printf("Warning: Could not create default admin: %v", err)
	}

	if seed || os.Getenv("SEED_CATALOG") == "true" {
		if err := database.SeedCatalog(conn.DB); err != nil {
			log.Printf("Warning: Could not seed catalog: %v", err)
		}
	}

	app, err := firebase.Init(ctx)
	if err != nil {
		log.Printf("Warning: %v; image uploads are disabled", err)
	}
	storage := firebase.NewStorage(app, os.Getenv("FIREBASE_STORAGE_BUCKET"))

	publisher, err := events.FromEnv()
	if err != nil {
		log.Printf("Warning: Could not connect to message broker: %v; booking events are disabled", err)
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	clk := clock.NewSystem()
	authLimiter := middleware.NewRateLimiter(authPerMinute, time.Minute, clk)
	defer authLimiter.Stop()
	bookingLimiter := middleware.NewRateLimiter(bookingPerMinute, time.Minute, clk)
	defer bookingLimiter.Stop()

	r := gin.Default()

	// Limit multipart form memory to 10MB
	r.MaxMultipartMemory = 10 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}))

	routes.SetupRoutes(r, routes.Deps{
		DB:             conn.DB,
		Storage:        storage,
		Validator:      reservation.NewValidator(policy),
		Clock:          clk,
		Events:         publisher,
		AuthLimiter:    authLimiter,
		BookingLimiter: bookingLimiter,
	})

	if port == "" {
		port = config.GetEnv("PORT", "8080")
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s (min lead %s, closing buffer %s, post-midnight shift %t)",
			port, policy.MinLead, policy.MinClosingBuffer, policy.ShiftPostMidnight)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited gracefully")
	return nil
}
