package http

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/safenav/backend/internal/domain"
	"github.com/safenav/backend/internal/mapstate"
	"github.com/safenav/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	analysis *service.AnalysisController
	areaRisk *service.AreaRiskService
	reports  *service.ReportService
	surface  *mapstate.MapSurface
	repo     service.AnalysisRepository
}

// NewHandler creates a new handler
func NewHandler(
	analysis *service.AnalysisController,
	areaRisk *service.AreaRiskService,
	reports *service.ReportService,
	surface *mapstate.MapSurface,
	repo service.AnalysisRepository,
) *Handler {
	return &Handler{
		analysis: analysis,
		areaRisk: areaRisk,
		reports:  reports,
		surface:  surface,
		repo:     repo,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "safenav-backend",
		"version": "1.0.0",
	})
}

type analyzeRequest struct {
	Start       string `json:"start"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
	RouteMode   string `json:"route_mode"`
}

// AnalyzeRoute runs one analysis session and returns its result set
func (h *Handler) AnalyzeRoute(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	outcome, err := h.analysis.Analyze(c.Context(), req.Start, req.Destination, req.Mode, req.RouteMode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrSuperseded):
			// Not an error for the user, the newer session owns the display.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":    false,
				"superseded": true,
			})
		case errors.Is(err, domain.ErrLocationNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Location not found")
		case errors.Is(err, domain.ErrNoRouteFound):
			return fiber.NewError(fiber.StatusNotFound, "No route found between these locations")
		default:
			return fiber.NewError(fiber.StatusBadGateway, "Route analysis failed")
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    outcome,
	})
}

// GetAnalysis returns the latest published result set
func (h *Handler) GetAnalysis(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.analysis.Latest(),
	})
}

// GetMapState returns the current map render state
func (h *Handler) GetMapState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.surface.Snapshot(),
	})
}

// GetAreaRisk returns the live risk snapshot for a searched area
func (h *Handler) GetAreaRisk(c *fiber.Ctx) error {
	snap, err := h.areaRisk.FetchSnapshot(c.Context(), c.Query("location"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch area risk")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    snap,
	})
}

type overlayRequest struct {
	Overlay string `json:"overlay"`
}

// SetOverlay switches the active heat overlay kind
func (h *Handler) SetOverlay(c *fiber.Ctx) error {
	var req overlayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.areaRisk.SetOverlay(req.Overlay); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"overlay": req.Overlay,
	})
}

// GetReports returns all current hazard reports and refreshes their markers
func (h *Handler) GetReports(c *fiber.Ctx) error {
	reports, err := h.reports.ListReports(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch reports")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reports,
		"count":   len(reports),
	})
}

// SubmitReport accepts a multipart hazard report submission
func (h *Handler) SubmitReport(c *fiber.Ctx) error {
	lat := parseOptionalFloat(c.FormValue("lat"))
	lng := parseOptionalFloat(c.FormValue("lng"))

	location, err := h.reports.ResolveLocation(c.Context(), lat, lng, c.FormValue("address"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingLocation):
			return fiber.NewError(fiber.StatusBadRequest, "Please provide a location or an address for the report")
		case errors.Is(err, domain.ErrLocationNotFound):
			return fiber.NewError(fiber.StatusBadRequest, "Address could not be resolved")
		default:
			return fiber.NewError(fiber.StatusBadGateway, "Failed to resolve location")
		}
	}

	sub := domain.ReportSubmission{
		IssueType:   c.FormValue("issue_type"),
		Description: c.FormValue("description"),
		Location:    location,
	}

	if file, err := c.FormFile("image"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read the attached image")
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read the attached image")
		}
		sub.Image = data
		sub.ImageName = file.Filename
	}

	if err := h.reports.SubmitReport(c.Context(), sub); err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingLocation), errors.Is(err, domain.ErrInvalidInput):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		default:
			// Retryable: the caller keeps the entered data and may resubmit.
			return fiber.NewError(fiber.StatusBadGateway, "Failed to submit report, please try again")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
	})
}

// GetHistory returns recent analysis records
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := h.repo.RecentAnalyses(c.Context(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch analysis history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

func parseOptionalFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}
