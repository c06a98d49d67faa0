package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check and metrics
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Route analysis pipeline
		api.Post("/analyze-route", handler.AnalyzeRoute)
		api.Get("/analysis", handler.GetAnalysis)
		api.Get("/map-state", handler.GetMapState)

		// Area risk insights
		api.Get("/area-risk", handler.GetAreaRisk)
		api.Post("/area-risk/overlay", handler.SetOverlay)

		// Community hazard reports
		api.Get("/reports", handler.GetReports)
		api.Post("/reports", handler.SubmitReport)

		// Analysis history
		api.Get("/history", handler.GetHistory)
	}
}
