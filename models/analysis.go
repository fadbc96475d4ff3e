package models

import (
	"strings"
	"time"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentURL      ContentType = "url"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
)

func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentText:
		return ContentText, true
	case ContentURL:
		return ContentURL, true
	case ContentImage:
		return ContentImage, true
	case ContentDocument:
		return ContentDocument, true
	}
	return "", false
}

// Verdict values are the strings the frontend renders.
type Verdict string

const (
	VerdictTrue       Verdict = "TRUE"
	VerdictFalse      Verdict = "FALSE INFORMATION"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictUnverified Verdict = "UNVERIFIED"
	VerdictError      Verdict = "ERROR"
)

// ParseVerdict accepts both the display form and the underscored form.
func ParseVerdict(s string) (Verdict, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", " ")
	switch Verdict(norm) {
	case VerdictTrue:
		return VerdictTrue, true
	case VerdictFalse:
		return VerdictFalse, true
	case VerdictMisleading:
		return VerdictMisleading, true
	case VerdictUnverified:
		return VerdictUnverified, true
	case VerdictError:
		return VerdictError, true
	}
	return "", false
}

// AnalysisRequest is built once per inbound call and never mutated.
type AnalysisRequest struct {
	ContentType ContentType `json:"analysis_type"`
	Text        string      `json:"text,omitempty"`
	URL         string      `json:"url,omitempty"`
	// FilePath points at an uploaded image or document.
	FilePath string `json:"file_path,omitempty"`
	// MimeType is the declared document type; empty means sniff it.
	MimeType         string `json:"mime_type,omitempty"`
	Language         string `json:"language,omitempty"`
	IncludeSources   bool   `json:"include_sources"`
	IncludeReporting bool   `json:"include_reporting"`
	UseAI            bool   `json:"use_ai,omitempty"`
}

// Payload returns the field the declared content type reads from.
func (r AnalysisRequest) Payload() string {
	switch r.ContentType {
	case ContentText:
		return r.Text
	case ContentURL:
		return r.URL
	case ContentImage, ContentDocument:
		return r.FilePath
	}
	return ""
}

type FactCheck struct {
	Description string `json:"description"`
	Rating      string `json:"rating,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	URL         string `json:"url,omitempty"`
}

type SourceLink struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

type ReportingContact struct {
	Description string `json:"description"`
	Destination string `json:"email"`
}

type Metadata struct {
	ContentType               ContentType `json:"analysis_type"`
	Language                  string      `json:"language"`
	TimestampUTC              time.Time   `json:"timestamp"`
	ProcessingDurationSeconds float64     `json:"processing_time"`
	AIAssisted                bool        `json:"ai_assisted,omitempty"`
}

// AnalysisResult carries confidence as a fraction in [0,1]; Present rescales it.
type AnalysisResult struct {
	Verdict           Verdict            `json:"verdict"`
	RiskScore         int                `json:"risk_score"`
	Confidence        float64            `json:"confidence"`
	Narrative         string             `json:"ai_analysis"`
	Tactics           []string           `json:"manipulation_tactics"`
	FactChecks        []FactCheck        `json:"fact_checks"`
	SourceLinks       []SourceLink       `json:"source_links"`
	ReportingContacts []ReportingContact `json:"reporting_emails"`
	Metadata          Metadata           `json:"metadata"`

	ExtractedText        string         `json:"extracted_text,omitempty"`
	ImageMetadata        *ImageMetadata `json:"image_metadata,omitempty"`
	ManipulationDetected bool           `json:"manipulation_detected,omitempty"`
	ReverseSearchResults []ReverseMatch `json:"reverse_search_results,omitempty"`
	Context              *ContextSignal `json:"context,omitempty"`
	SourceTitle          string         `json:"source_title,omitempty"`
}

// ErrorResult is the terminal result for unexpected failures.
func ErrorResult(reason string) *AnalysisResult {
	return &AnalysisResult{
		Verdict:           VerdictError,
		RiskScore:         0,
		Confidence:        0,
		Narrative:         reason,
		Tactics:           []string{},
		FactChecks:        []FactCheck{},
		SourceLinks:       []SourceLink{},
		ReportingContacts: []ReportingContact{},
	}
}

// TextSignal is the output of the lexicon classifier.
type TextSignal struct {
	Verdict    Verdict
	RiskScore  int
	Confidence float64
	Narrative  string
	FactChecks []FactCheck
}

type TacticsReport struct {
	Tactics           []string `json:"tactics"`
	TacticCount       int      `json:"tactic_count"`
	ManipulationScore float64  `json:"manipulation_score"`
}

type ContextSignal struct {
	Trends       []string `json:"trends"`
	Sentiment    string   `json:"sentiment"`
	ContextScore float64  `json:"context_score"`
}

// URLContent is the extraction outcome; Err is set on fetch or parse failure.
type URLContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Err     error  `json:"-"`
}

type ImageMetadata struct {
	Format               string            `json:"format,omitempty"`
	Width                int               `json:"width,omitempty"`
	Height               int               `json:"height,omitempty"`
	Tags                 map[string]string `json:"exif,omitempty"`
	SuspiciousIndicators []string          `json:"suspicious_indicators,omitempty"`
}

// ManipulationSignals are each in [0,1].
type ManipulationSignals struct {
	DuplicateRatio      float64 `json:"duplicate_ratio"`
	LightingConsistency float64 `json:"lighting_consistency"`
	EdgeConsistency     float64 `json:"edge_consistency"`
}

type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Language   string  `json:"language,omitempty"`
}

type ReverseMatch struct {
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
}

// ImageAnalysis is the image-branch partial result before fusion with OCR text.
type ImageAnalysis struct {
	Verdict              Verdict
	RiskScore            int
	Confidence           float64
	Narrative            string
	Tactics              []string
	FactChecks           []FactCheck
	ExtractedText        string
	Metadata             ImageMetadata
	Signals              ManipulationSignals
	CompositeScore       float64
	ManipulationDetected bool
	ReverseSearchResults []ReverseMatch
}

// DisplayResult is the presentation-layer shape: confidence is an integer percentage.
type DisplayResult struct {
	Verdict              Verdict            `json:"verdict"`
	RiskScore            int                `json:"risk_score"`
	Confidence           int                `json:"confidence"`
	Narrative            string             `json:"ai_analysis"`
	Tactics              []string           `json:"manipulation_tactics"`
	FactChecks           []FactCheck        `json:"fact_checks"`
	SourceLinks          []SourceLink       `json:"source_links"`
	ReportingContacts    []ReportingContact `json:"reporting_emails"`
	Metadata             Metadata           `json:"metadata"`
	ExtractedText        string             `json:"extracted_text,omitempty"`
	ManipulationDetected bool               `json:"manipulation_detected,omitempty"`
	ReverseSearchResults []ReverseMatch     `json:"reverse_search_results,omitempty"`
	ID                   string             `json:"id,omitempty"`
}
