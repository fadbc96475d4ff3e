package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"truthlens/database"
	"truthlens/models"
	"truthlens/services"
)

const (
	maxUploadBytes = 10 << 20
	archiveTimeout = 10 * time.Second
)

type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type ArchiveWriter interface {
	Save(ctx context.Context, rec database.ArchiveRecord) error
}

type DomainRecorder interface {
	Record(ctx context.Context, domain string, score int) error
}

type AnalyzerHandler struct {
	analyzer  Analyzer
	archive   ArchiveWriter
	domains   DomainRecorder
	limits    *services.RateLimits
	uploadDir string
	log       *zap.Logger

	// IsPaused makes /api/analyze answer 503 while set.
	IsPaused atomic.Bool
	// background archive writes, tests wait on it
	pending chan struct{}
}

func NewAnalyzerHandler(analyzer Analyzer, archive ArchiveWriter, domains DomainRecorder, limits *services.RateLimits, uploadDir string, log *zap.Logger) *AnalyzerHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyzerHandler{
		analyzer:  analyzer,
		archive:   archive,
		domains:   domains,
		limits:    limits,
		uploadDir: uploadDir,
		log:       log.Named("handler"),
	}
}

// analyzeBody is the JSON form of /api/analyze. Absent include flags default to true.
type analyzeBody struct {
	AnalysisType     string `json:"analysis_type"`
	Text             string `json:"text"`
	URL              string `json:"url"`
	Language         string `json:"language"`
	IncludeSources   *bool  `json:"include_sources"`
	IncludeReporting *bool  `json:"include_reporting"`
	UseAI            bool   `json:"use_ai"`
}

// Analyze handles POST /api/analyze with a JSON body or a multipart form
// carrying an image or document upload.
func (h *AnalyzerHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.IsPaused.Load() {
		writeError(w, http.StatusServiceUnavailable, "analysis is paused")
		return
	}

	start := time.Now()
	req, subject, err := h.parseRequest(w, r)
	if err != nil {
		h.log.Info("rejected request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Info("analysis requested",
		zap.String("content_type", string(req.ContentType)),
		zap.String("remote", r.RemoteAddr))

	res, err := h.analyzer.Analyze(r.Context(), req)
	if errors.Is(err, services.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}

	out := services.Present(res)
	if rec, err := database.NewRecord(res, subject); err != nil {
		h.log.Warn("archive record not built", zap.Error(err))
	} else if h.archive != nil {
		out.ID = rec.ID
		h.background(func(ctx context.Context) {
			if err := h.archive.Save(ctx, rec); err != nil && !errors.Is(err, database.ErrUnavailable) {
				h.log.Warn("archive save failed", zap.String("id", rec.ID), zap.Error(err))
			}
		})
	}
	if req.ContentType == models.ContentURL && res.Verdict != models.VerdictError && h.domains != nil {
		domain, score := services.NormalizeDomain(req.URL), res.RiskScore
		h.background(func(ctx context.Context) {
			if err := h.domains.Record(ctx, domain, score); err != nil && !errors.Is(err, database.ErrUnavailable) {
				h.log.Warn("domain stats update failed", zap.String("domain", domain), zap.Error(err))
			}
		})
	}

	h.log.Info("analysis served", zap.String("verdict", string(out.Verdict)), zap.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusOK, out)
}

// background runs fn detached from the request with its own timeout.
func (h *AnalyzerHandler) background(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		fn(ctx)
		if h.pending != nil {
			h.pending <- struct{}{}
		}
	}()
}

// parseRequest also returns the subject stored in the archive excerpt.
func (h *AnalyzerHandler) parseRequest(w http.ResponseWriter, r *http.Request) (models.AnalysisRequest, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" || mediaType == "application/x-www-form-urlencoded" {
		return h.parseForm(w, r)
	}

	var body analyzeBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		return models.AnalysisRequest{}, "", fmt.Errorf("invalid request body: %w", err)
	}
	ct := body.AnalysisType
	if ct == "" {
		ct = string(models.ContentText)
		if body.URL != "" && body.Text == "" {
			ct = string(models.ContentURL)
		}
	}
	req := models.AnalysisRequest{
		ContentType:      models.ContentType(ct),
		Text:             body.Text,
		URL:              body.URL,
		Language:         body.Language,
		IncludeSources:   boolOr(body.IncludeSources, true),
		IncludeReporting: boolOr(body.IncludeReporting, true),
		UseAI:            body.UseAI,
	}
	return req, firstNonEmpty(body.Text, body.URL), nil
}

func (h *AnalyzerHandler) parseForm(w http.ResponseWriter, r *http.Request) (models.AnalysisRequest, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return models.AnalysisRequest{}, "", fmt.Errorf("invalid form: %w", err)
	}

	req := models.AnalysisRequest{
		ContentType:      models.ContentType(r.FormValue("analysis_type")),
		Text:             r.FormValue("text"),
		URL:              r.FormValue("url"),
		Language:         r.FormValue("language"),
		IncludeSources:   formBool(r.FormValue("include_sources"), true),
		IncludeReporting: formBool(r.FormValue("include_reporting"), true),
		UseAI:            formBool(r.FormValue("use_ai"), false),
	}
	subject := firstNonEmpty(req.Text, req.URL)

	for _, field := range []struct {
		name string
		ct   models.ContentType
	}{{"image", models.ContentImage}, {"document", models.ContentDocument}, {"file", ""}} {
		file, header, err := r.FormFile(field.name)
		if err != nil {
			continue
		}
		path, err := h.saveUpload(file, header)
		file.Close()
		if err != nil {
			return models.AnalysisRequest{}, "", err
		}
		req.FilePath = path
		req.MimeType = header.Header.Get("Content-Type")
		subject = header.Filename
		if req.ContentType == "" {
			req.ContentType = field.ct
			if req.ContentType == "" {
				req.ContentType = uploadType(req.MimeType)
			}
		}
		break
	}

	if req.ContentType == "" {
		req.ContentType = models.ContentText
		if req.URL != "" && req.Text == "" {
			req.ContentType = models.ContentURL
		}
	}
	return req, subject, nil
}

// saveUpload stores the file under a random name, keeping its extension, so
// it can later be served from /uploads/.
func (h *AnalyzerHandler) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}

func uploadType(mimeType string) models.ContentType {
	if strings.HasPrefix(mimeType, "image/") {
		return models.ContentImage
	}
	return models.ContentDocument
}

// Health: GET /api/health
func (h *AnalyzerHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "paused": h.IsPaused.Load()})
}

// Limits: GET /api/limits, last rate-limit headers seen per AI provider.
func (h *AnalyzerHandler) Limits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.limits.Snapshot())
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func formBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
