package services

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// RateLimitInfo holds the latest rate limit state for one inference provider.
type RateLimitInfo struct {
	Provider string `json:"provider"`

	LimitRequests     int    `json:"limit_requests"`
	RemainingRequests int    `json:"remaining_requests"`
	ResetRequests     string `json:"reset_requests"`
	ResetRequestsAt   *int64 `json:"reset_requests_at"` // unix ms, if parseable

	LimitTokens     int    `json:"limit_tokens"`
	RemainingTokens int    `json:"remaining_tokens"`
	ResetTokens     string `json:"reset_tokens"`
	ResetTokensAt   *int64 `json:"reset_tokens_at"`

	Throttled  bool   `json:"throttled"` // last response was 429
	StatusCode int    `json:"status_code"`
	UpdatedAt  int64  `json:"updated_at"`
	UpdatedAgo string `json:"updated_ago"`
}

// RateLimits records the rate-limit headers of the last response per provider.
type RateLimits struct {
	mu    sync.RWMutex
	store map[string]*RateLimitInfo
	now   func() time.Time
}

func NewRateLimits() *RateLimits {
	return &RateLimits{store: map[string]*RateLimitInfo{}, now: time.Now}
}

// Update is nil-safe.
func (r *RateLimits) Update(provider string, resp *http.Response) {
	if r == nil || resp == nil {
		return
	}
	now := r.now()

	info := &RateLimitInfo{
		Provider:          provider,
		StatusCode:        resp.StatusCode,
		Throttled:         resp.StatusCode == http.StatusTooManyRequests,
		UpdatedAt:         now.UnixMilli(),
		LimitRequests:     headerInt(resp, "X-Ratelimit-Limit-Requests"),
		RemainingRequests: headerInt(resp, "X-Ratelimit-Remaining-Requests"),
		ResetRequests:     resp.Header.Get("X-Ratelimit-Reset-Requests"),
		LimitTokens:       headerInt(resp, "X-Ratelimit-Limit-Tokens"),
		RemainingTokens:   headerInt(resp, "X-Ratelimit-Remaining-Tokens"),
		ResetTokens:       resp.Header.Get("X-Ratelimit-Reset-Tokens"),
	}
	info.ResetRequestsAt = resetAt(now, info.ResetRequests)
	info.ResetTokensAt = resetAt(now, info.ResetTokens)

	r.mu.Lock()
	r.store[provider] = info
	r.mu.Unlock()
}

// Snapshot returns copies ordered by provider name.
func (r *RateLimits) Snapshot() []RateLimitInfo {
	if r == nil {
		return []RateLimitInfo{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]RateLimitInfo, 0, len(r.store))
	for _, v := range r.store {
		cp := *v
		ago := now.Sub(time.UnixMilli(v.UpdatedAt))
		if ago < time.Minute {
			cp.UpdatedAgo = strconv.Itoa(int(ago.Seconds())) + "s ago"
		} else {
			cp.UpdatedAgo = strconv.Itoa(int(ago.Minutes())) + "m ago"
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func resetAt(now time.Time, reset string) *int64 {
	if reset == "" {
		return nil
	}
	d, err := time.ParseDuration(reset)
	if err != nil {
		return nil
	}
	t := now.Add(d).UnixMilli()
	return &t
}

// headerInt returns -1 when the provider did not send the header.
func headerInt(resp *http.Response, key string) int {
	v := resp.Header.Get(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
