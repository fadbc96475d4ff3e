package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthlens/models"
)

// OCREngine extracts text from an image file.
type OCREngine interface {
	ExtractText(ctx context.Context, path, language string) (models.OCRResult, error)
}

const visionBaseURL = "https://vision.googleapis.com/v1/images:annotate"

// VisionOCR calls Google Cloud Vision TEXT_DETECTION over REST.
type VisionOCR struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewVisionOCR(apiKey string, timeout time.Duration) *VisionOCR {
	return &VisionOCR{apiKey: apiKey, baseURL: visionBaseURL, http: &http.Client{Timeout: timeout}}
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features     []visionFeature     `json:"features"`
	ImageContext *visionImageContext `json:"imageContext,omitempty"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionImageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type visionResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Locale      string `json:"locale"`
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func (v *VisionOCR) ExtractText(ctx context.Context, path, language string) (models.OCRResult, error) {
	if v.apiKey == "" {
		return models.OCRResult{}, ErrCollaboratorUnavailable
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("read image: %w", err)
	}

	var ir visionImageRequest
	ir.Image.Content = base64.StdEncoding.EncodeToString(data)
	ir.Features = []visionFeature{{Type: "TEXT_DETECTION"}}
	if language != "" {
		ir.ImageContext = &visionImageContext{LanguageHints: []string{language}}
	}
	payload, err := json.Marshal(visionRequest{Requests: []visionImageRequest{ir}})
	if err != nil {
		return models.OCRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"?key="+v.apiKey, bytes.NewReader(payload))
	if err != nil {
		return models.OCRResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.OCRResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return models.OCRResult{}, fmt.Errorf("vision: status %d", resp.StatusCode)
	}

	var parsed visionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.OCRResult{}, fmt.Errorf("vision decode: %w", err)
	}
	if len(parsed.Responses) == 0 {
		return models.OCRResult{}, nil
	}
	r := parsed.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return models.OCRResult{}, errors.New(r.Error.Message)
	}
	if len(r.TextAnnotations) == 0 {
		return models.OCRResult{}, nil
	}
	// the first annotation holds the full text block
	return models.OCRResult{
		Text:     strings.TrimSpace(r.TextAnnotations[0].Description),
		Language: r.TextAnnotations[0].Locale,
	}, nil
}

// TesseractOCR shells out to the tesseract binary.
type TesseractOCR struct {
	execPath string
}

// NewTesseractOCR returns nil when no binary can be found.
func NewTesseractOCR(execPath string) *TesseractOCR {
	if execPath == "" {
		p, err := exec.LookPath("tesseract")
		if err != nil {
			return nil
		}
		execPath = p
	}
	return &TesseractOCR{execPath: execPath}
}

var tesseractLangs = map[string]string{
	"en": "eng",
	"ru": "rus",
	"ro": "ron",
	"es": "spa",
	"fr": "fra",
	"de": "deu",
	"it": "ita",
	"pt": "por",
}

func (t *TesseractOCR) ExtractText(ctx context.Context, path, language string) (models.OCRResult, error) {
	lang, ok := tesseractLangs[strings.ToLower(language)]
	if !ok {
		lang = "eng"
	}

	// tesseract <image> stdout -l <lang>
	cmd := exec.CommandContext(ctx, t.execPath, path, "stdout", "-l", lang)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return models.OCRResult{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return models.OCRResult{Text: strings.TrimSpace(stdout.String()), Language: language}, nil
}

// ChainOCR tries each engine in order and returns the first non-empty text.
type ChainOCR struct {
	engines []OCREngine
	log     *zap.Logger
}

func NewChainOCR(log *zap.Logger, engines ...OCREngine) *ChainOCR {
	if log == nil {
		log = zap.NewNop()
	}
	c := &ChainOCR{log: log.Named("ocr")}
	for _, e := range engines {
		if e != nil && !isNilEngine(e) {
			c.engines = append(c.engines, e)
		}
	}
	return c
}

func isNilEngine(e OCREngine) bool {
	switch v := e.(type) {
	case *TesseractOCR:
		return v == nil
	case *VisionOCR:
		return v == nil
	}
	return false
}

func (c *ChainOCR) ExtractText(ctx context.Context, path, language string) (models.OCRResult, error) {
	if len(c.engines) == 0 {
		return models.OCRResult{}, ErrCollaboratorUnavailable
	}
	var lastErr error
	for _, e := range c.engines {
		res, err := e.ExtractText(ctx, path, language)
		if err != nil {
			if !errors.Is(err, ErrCollaboratorUnavailable) {
				c.log.Debug("ocr engine failed", zap.String("engine", fmt.Sprintf("%T", e)), zap.Error(err))
			}
			lastErr = err
			continue
		}
		if res.Text != "" {
			return res, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return models.OCRResult{}, lastErr
	}
	return models.OCRResult{}, nil
}
