package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/safenav/backend/internal/cache"
	"github.com/safenav/backend/internal/delivery/http"
	"github.com/safenav/backend/internal/mapstate"
	"github.com/safenav/backend/internal/observability"
	"github.com/safenav/backend/internal/repository/postgres"
	"github.com/safenav/backend/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	// Database connection (optional, history only)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			pool = nil
		}
	}
	if pool != nil {
		defer pool.Close()
		log.Println("Connected to PostgreSQL")
	} else {
		log.Println("Running without analysis history persistence")
	}

	// Dependency Injection: Repositories
	var repo service.AnalysisRepository
	if pool != nil {
		repo = postgres.NewPostgresRepository(pool)
	} else {
		repo = postgres.NewMockRepository()
	}

	// Shared infrastructure
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	geocodeCache := cache.New(nil)
	surface := mapstate.New()

	// Dependency Injection: Services
	geocoder := service.NewGeocoder(cfg.ORSAPIKey, cfg.ORSBaseURL, geocodeCache)
	routeFetcher := service.NewRouteFetcher(cfg.ORSAPIKey, cfg.ORSBaseURL)
	riskBridge := service.NewRiskBridge(cfg.RiskServiceURL)
	analysis := service.NewAnalysisController(geocoder, routeFetcher, riskBridge, surface, repo, metrics)
	areaRisk := service.NewAreaRiskService(cfg.RiskServiceURL, cfg.OpenWeatherAPIKey, geocoder, surface, nil)
	reports := service.NewReportService(cfg.RiskServiceURL, geocoder, surface)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "SafeNav API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // report photos
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	handler := http.NewHandler(analysis, areaRisk, reports, surface, repo)
	http.SetupRoutes(app, handler)

	// Graceful shutdown
	go func() {
		port := cfg.Port
		if port == "" {
			port = "8080"
		}
		log.Printf("Server starting on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	analysis.WaitBackground()
	log.Println("Server exited gracefully")
}

type Config struct {
	DatabaseURL       string
	ORSAPIKey         string
	ORSBaseURL        string
	RiskServiceURL    string
	OpenWeatherAPIKey string
	Port              string
	Env               string
}

func loadConfig() *Config {
	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		ORSAPIKey:         getEnv("ORS_API_KEY", ""),
		ORSBaseURL:        getEnv("ORS_BASE_URL", ""),
		RiskServiceURL:    getEnv("RISK_SERVICE_URL", "http://localhost:8000"),
		OpenWeatherAPIKey: getEnv("OPENWEATHER_API_KEY", ""),
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
