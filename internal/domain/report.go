package domain

import "time"

// HazardReport is a community-submitted hazard, persisted by the report
// service. Reports are immutable once created.
type HazardReport struct {
	ID          string    `json:"id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	IssueType   string    `json:"issue_type"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Issue types accepted for hazard reports.
var IssueTypes = []string{
	"waterlogging",
	"flooding",
	"blocked_drain",
	"damaged_road",
	"debris",
	"pothole",
	"accident",
	"construction",
	"other",
}

// ValidIssueType reports whether t is a known issue type.
func ValidIssueType(t string) bool {
	for _, known := range IssueTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ReportSubmission is a new hazard report awaiting submission. Location must
// be resolved (device position or geocoded address) before it goes anywhere
// near the network.
type ReportSubmission struct {
	IssueType   string
	Description string
	Location    *Coordinate
	ImageName   string
	Image       []byte
}
