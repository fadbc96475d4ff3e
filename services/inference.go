package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// InferenceClient sends one prompt to a generative model and returns its raw reply.
type InferenceClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

const (
	geminiBase     = "https://generativelanguage.googleapis.com/v1beta"
	maxInferTries  = 3
	inferMaxTokens = 2048
)

// BuildAnalysisPrompt asks the model for the JSON shape ParseInference reads.
func BuildAnalysisPrompt(text, language string) string {
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf(`Analyze this text for misinformation. Provide three separate sections:

1. Verdict section:
- Classification: (TRUE, FALSE INFORMATION, MISLEADING, or UNVERIFIED)
- Risk score (0-100)
- Confidence score (0-100)

2. Analysis section:
- Brief, clear analysis (2-3 sentences max)
- Key tactics used (if any)

3. Evidence section:
- Relevant fact-checking sources
- Related news articles
- Official reporting channels

Write the analysis in language %q.

Text to analyze: %s

Respond in this exact JSON format:
{
    "verdict": "string",
    "risk_score": number,
    "confidence": number,
    "ai_analysis": "string",
    "manipulation_tactics": ["string"],
    "fact_checks": [{ "description": "string" }],
    "source_links": [{ "url": "string", "name": "string" }],
    "reporting_emails": ["string"]
}`, language, text)
}

// doWithRetry posts body up to maxInferTries times with exponential backoff.
// Only network errors, 429 and 5xx are retried.
func doWithRetry(ctx context.Context, client *http.Client, limits *RateLimits, provider string, build func() (*http.Request, error), log *zap.Logger) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			log.Warn("inference request failed", zap.String("provider", provider), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		limits.Update(provider, resp)

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		log.Debug("inference response",
			zap.String("provider", provider),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("bytes", len(data)))

		switch {
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%s: status %d", provider, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%s: status %d: %s", provider, resp.StatusCode, truncate(string(data), 200)))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxInferTries-1), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GeminiClient calls generateContent over REST.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limits  *RateLimits
	log     *zap.Logger
}

func NewGeminiClient(apiKey, model string, timeout time.Duration, limits *RateLimits, log *zap.Logger) *GeminiClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBase,
		http:    &http.Client{Timeout: timeout},
		limits:  limits,
		log:     log.Named("gemini"),
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrCollaboratorUnavailable
	}
	reqBody := map[string]any{
		"contents": []any{
			map[string]any{"parts": []any{map[string]any{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": inferMaxTokens,
			"temperature":     0.1,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/models/" + c.model + ":generateContent?key=" + c.apiKey
	body, err := doWithRetry(ctx, c.http, c.limits, c.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, c.log)
	if err != nil {
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}

// ChatClient speaks the OpenAI chat-completions dialect used by OpenRouter,
// Groq and LM Studio.
type ChatClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limits  *RateLimits
	log     *zap.Logger
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func NewChatClient(baseURL, apiKey, model string, timeout time.Duration, limits *RateLimits, log *zap.Logger) *ChatClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limits:  limits,
		log:     log.Named("chat"),
	}
}

func (c *ChatClient) Name() string { return "chat" }

func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrCollaboratorUnavailable
	}
	payload, err := json.Marshal(ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: "You are a fact-checking assistant. Reply with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   inferMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	body, err := doWithRetry(ctx, c.http, c.limits, c.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Title", "TruthLens")
		return req, nil
	}, c.log)
	if err != nil {
		return "", err
	}

	var chat ChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.model)
	}
	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

// FallbackInference tries each client in order.
type FallbackInference struct {
	clients []InferenceClient
}

func NewFallbackInference(clients ...InferenceClient) *FallbackInference {
	return &FallbackInference{clients: clients}
}

func (f *FallbackInference) Name() string {
	names := make([]string, 0, len(f.clients))
	for _, c := range f.clients {
		names = append(names, c.Name())
	}
	return strings.Join(names, "+")
}

func (f *FallbackInference) Generate(ctx context.Context, prompt string) (string, error) {
	lastErr := ErrCollaboratorUnavailable
	for _, c := range f.clients {
		out, err := c.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", lastErr
}
