package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report statuses.
const (
	ReportSubmitted   = "submitted"
	ReportUnderReview = "under_review"
	ReportAssigned    = "assigned"
	ReportEscalated   = "escalated"
	ReportResolved    = "resolved"
	ReportRejected    = "rejected"
)

// ReportStatuses lists every status in workflow order.
var ReportStatuses = []string{
	ReportSubmitted, ReportUnderReview, ReportAssigned, ReportEscalated, ReportResolved, ReportRejected,
}

// Priorities from lowest to highest.
var ReportPriorities = []string{"low", "medium", "high", "critical"}

const DefaultReportPriority = "medium"

// Report is a user complaint about a piece of analysed content.
type Report struct {
	ID               string    `json:"report_id"`
	ContentID        string    `json:"content_id"`
	ContentType      string    `json:"content_type"`
	ReportType       string    `json:"report_type"`
	Priority         string    `json:"priority"`
	Status           string    `json:"status"`
	ReporterName     string    `json:"reporter_name,omitempty"`
	ReporterEmail    string    `json:"reporter_email,omitempty"`
	AdditionalInfo   string    `json:"additional_info,omitempty"`
	Evidence         []string  `json:"evidence"`
	Resolution       string    `json:"resolution,omitempty"`
	AssignedTo       string    `json:"assigned_to,omitempty"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewReportID returns "report_<unix seconds>_<8 hex chars>".
func NewReportID(now time.Time) string {
	return fmt.Sprintf("report_%d_%s", now.Unix(), uuid.NewString()[:8])
}

func ValidReportStatus(s string) bool {
	for _, v := range ReportStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func ValidReportPriority(p string) bool {
	return priorityIndex(p) >= 0
}

func priorityIndex(p string) int {
	for i, v := range ReportPriorities {
		if v == strings.ToLower(p) {
			return i
		}
	}
	return -1
}

// NextPriority raises p by one level; critical stays critical. An unknown
// priority is treated as medium.
func NextPriority(p string) string {
	i := priorityIndex(p)
	if i < 0 {
		i = priorityIndex(DefaultReportPriority)
	}
	return ReportPriorities[min(i+1, len(ReportPriorities)-1)]
}

// EstimatedResolution is the turnaround promised to the reporter.
func EstimatedResolution(priority string) string {
	switch strings.ToLower(priority) {
	case "critical":
		return "12-24 hours"
	case "high":
		return "24-48 hours"
	case "medium":
		return "1-3 business days"
	default:
		return "3-5 business days"
	}
}
