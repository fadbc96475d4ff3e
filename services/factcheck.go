package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"truthlens/cache"
	"truthlens/models"
)

// FactChecker looks up published fact checks related to a text.
type FactChecker interface {
	Search(ctx context.Context, text, language string) ([]models.FactCheck, error)
}

const (
	factCheckBaseURL  = "https://factchecktools.googleapis.com/v1alpha1/claims:search"
	factCheckMaxQuery = 200
	factCheckMaxItems = 5
)

type GoogleFactCheckClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *cache.Cache
	ttl     time.Duration
	log     *zap.Logger
}

type GoogleFactCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		Claimant    string `json:"claimant"`
		ClaimDate   string `json:"claimDate"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
			Url           string `json:"url"`
			Title         string `json:"title"`
			ReviewDate    string `json:"reviewDate"`
			TextualRating string `json:"textualRating"`
			LanguageCode  string `json:"languageCode"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// NewGoogleFactCheckClient wraps the Fact Check Tools API in a circuit breaker.
// c may be nil.
func NewGoogleFactCheckClient(apiKey string, c *cache.Cache, ttl, timeout time.Duration, log *zap.Logger) *GoogleFactCheckClient {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("factcheck")
	return &GoogleFactCheckClient{
		apiKey:  apiKey,
		baseURL: factCheckBaseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   c,
		ttl:     ttl,
		log:     log,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "factcheck",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		}),
	}
}

func (c *GoogleFactCheckClient) Search(ctx context.Context, text, language string) ([]models.FactCheck, error) {
	if c.apiKey == "" {
		return nil, ErrCollaboratorUnavailable
	}
	query := strings.TrimSpace(truncate(text, factCheckMaxQuery))
	if query == "" {
		return []models.FactCheck{}, nil
	}

	key := cache.Key("factcheck", language, queryHash(query))
	var cached []models.FactCheck
	if hit, _ := c.cache.GetJSON(ctx, key, &cached); hit {
		c.log.Debug("fact check cache hit", zap.String("key", key))
		return cached, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, query, language)
	})
	if err != nil {
		return nil, err
	}
	checks := out.([]models.FactCheck)

	if err := c.cache.SetJSON(ctx, key, checks, c.ttl); err != nil {
		c.log.Debug("fact check not cached", zap.Error(err))
	}
	return checks, nil
}

func (c *GoogleFactCheckClient) fetch(ctx context.Context, query, language string) ([]models.FactCheck, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)
	if language != "" {
		params.Set("languageCode", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	c.log.Debug("querying fact check tools", zap.String("query", truncate(query, 80)))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fact check: bad status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed GoogleFactCheckResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("fact check decode: %w", err)
	}

	checks := []models.FactCheck{}
	for _, claim := range parsed.Claims {
		if len(checks) >= factCheckMaxItems {
			break
		}
		if len(claim.ClaimReview) == 0 {
			continue
		}
		review := claim.ClaimReview[0]
		checks = append(checks, models.FactCheck{
			Description: claim.Text,
			Rating:      review.TextualRating,
			Publisher:   review.Publisher.Name,
			URL:         review.Url,
		})
	}
	return checks, nil
}

func queryHash(q string) string {
	sum := sha1.Sum([]byte(strings.ToLower(q)))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
