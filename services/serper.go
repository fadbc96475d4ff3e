package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"truthlens/models"
)

const serperBaseURL = "https://google.serper.dev"

// SerperClient talks to the Serper Google Search and Lens APIs.
type SerperClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

type SerperRequest struct {
	Q   string `json:"q,omitempty"`
	URL string `json:"url,omitempty"`
	Gl  string `json:"gl,omitempty"`
	Hl  string `json:"hl,omitempty"`
	Num int    `json:"num,omitempty"`
}

type SerperResponse struct {
	Organic []SerperResult `json:"organic"`
	News    []SerperResult `json:"news"`
}

type SerperResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Date     string `json:"date,omitempty"`
}

func NewSerperClient(apiKey string, timeout time.Duration, log *zap.Logger) *SerperClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &SerperClient{
		apiKey:  apiKey,
		baseURL: serperBaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("serper"),
	}
}

func (s *SerperClient) Configured() bool {
	return s != nil && s.apiKey != ""
}

// Search runs a web search for the salient words of text.
func (s *SerperClient) Search(ctx context.Context, text, language string) ([]SerperResult, error) {
	keywords := extractKeywords(text)
	if len(keywords) == 0 {
		return []SerperResult{}, nil
	}
	query := strings.Join(keywords[:min(5, len(keywords))], " ")

	resp, err := s.post(ctx, "/search", SerperRequest{Q: query, Hl: language, Num: 10})
	if err != nil {
		return nil, err
	}
	results := append(resp.Organic, resp.News...)
	s.log.Debug("search done", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// ReverseSearch sends a publicly reachable image URL to Lens. Serper returns
// matches ranked by visual similarity without a score, so the rank is mapped
// to a similarity that decays by 0.1 per position.
func (s *SerperClient) ReverseSearch(ctx context.Context, imageURL string) ([]models.ReverseMatch, error) {
	resp, err := s.post(ctx, "/lens", SerperRequest{URL: imageURL})
	if err != nil {
		return nil, err
	}

	matches := []models.ReverseMatch{}
	for i, r := range resp.Organic {
		if r.Link == "" {
			continue
		}
		source := r.Source
		if source == "" {
			if u, err := url.Parse(r.Link); err == nil {
				source = u.Hostname()
			}
		}
		matches = append(matches, models.ReverseMatch{
			URL:        r.Link,
			Similarity: max(0, 1-0.1*float64(i)),
			Source:     source,
		})
	}
	return matches, nil
}

func (s *SerperClient) post(ctx context.Context, path string, body SerperRequest) (*SerperResponse, error) {
	if !s.Configured() {
		return nil, ErrCollaboratorUnavailable
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("serper encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("serper read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper %s: status %d: %s", path, resp.StatusCode, truncate(string(data), 200))
	}

	var out SerperResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("serper decode: %w", err)
	}
	return &out, nil
}

var stopWords = map[string]bool{
	"the": true, "is": true, "and": true, "or": true, "a": true,
	"an": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"this": true, "that": true, "these": true, "those": true, "have": true,
	"they": true, "their": true, "there": true, "were": true, "will": true,
}

func extractKeywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(text) {
		word = strings.ToLower(strings.Trim(word, ".,!?;:\"'()[]{}"))
		if len([]rune(word)) > 3 && !stopWords[word] {
			keywords = append(keywords, word)
		}
	}
	return keywords
}
