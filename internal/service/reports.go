package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/safenav/backend/internal/domain"
	"github.com/safenav/backend/internal/mapstate"
)

// ReportService fetches community hazard reports and submits new ones to the
// report service. It owns the report-marker layer on the map surface.
type ReportService struct {
	serviceURL string
	httpClient *http.Client
	geocoder   GeoResolver
	surface    *mapstate.MapSurface
}

// NewReportService creates a new report service.
func NewReportService(serviceURL string, geocoder GeoResolver, surface *mapstate.MapSurface) *ReportService {
	return &ReportService{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		geocoder: geocoder,
		surface:  surface,
	}
}

// ListReports fetches all current reports and replaces the report markers on
// the map. Fetch-and-replace, no pagination.
func (s *ReportService) ListReports(ctx context.Context) ([]domain.HazardReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serviceURL+"/reports", nil)
	if err != nil {
		return nil, fmt.Errorf("reports: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reports: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reports: status %d", resp.StatusCode)
	}

	var reports []domain.HazardReport
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		return nil, fmt.Errorf("reports: failed to decode response: %w", err)
	}

	s.surface.EnsureBaseMap(mapstate.DefaultCenter, mapstate.DefaultZoom)
	s.surface.ReplaceReportMarkers(reports)
	return reports, nil
}

// ResolveLocation converges the two location paths onto one coordinate:
// device-provided lat/lng wins; otherwise a non-empty address is geocoded.
// Neither present is domain.ErrMissingLocation.
func (s *ReportService) ResolveLocation(ctx context.Context, lat, lng *float64, address string) (*domain.Coordinate, error) {
	if lat != nil && lng != nil {
		return &domain.Coordinate{Lat: *lat, Lng: *lng}, nil
	}
	if address != "" {
		coord, err := s.geocoder.Geocode(ctx, address)
		if err != nil {
			return nil, err
		}
		return &coord, nil
	}
	return nil, domain.ErrMissingLocation
}

// SubmitReport validates and submits a new hazard report as a multipart
// payload. Validation failures happen before any network call; a submit
// failure is retryable without re-entering data.
func (s *ReportService) SubmitReport(ctx context.Context, sub domain.ReportSubmission) error {
	if sub.Location == nil {
		return domain.ErrMissingLocation
	}
	if !domain.ValidIssueType(sub.IssueType) {
		return fmt.Errorf("%w: unknown issue type %q", domain.ErrInvalidInput, sub.IssueType)
	}
	if sub.Description == "" {
		return fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"issue_type":  sub.IssueType,
		"description": sub.Description,
		"lat":         strconv.FormatFloat(sub.Location.Lat, 'f', -1, 64),
		"lng":         strconv.FormatFloat(sub.Location.Lng, 'f', -1, 64),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("reports: failed to write field %s: %w", name, err)
		}
	}

	if len(sub.Image) > 0 {
		name := sub.ImageName
		if name == "" {
			name = "report.jpg"
		}
		part, err := writer.CreateFormFile("image", name)
		if err != nil {
			return fmt.Errorf("reports: failed to create image part: %w", err)
		}
		if _, err := part.Write(sub.Image); err != nil {
			return fmt.Errorf("reports: failed to write image: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("reports: failed to finalize payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serviceURL+"/report-issue", &body)
	if err != nil {
		return fmt.Errorf("reports: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reports: submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reports: submit status %d", resp.StatusCode)
	}

	log.Printf("reports: submitted %s report at %.4f,%.4f", sub.IssueType, sub.Location.Lat, sub.Location.Lng)
	return nil
}
