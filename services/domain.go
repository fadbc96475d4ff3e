package services

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeDomain extracts the host from a URL, lowercased, without the
// www. prefix or port. Bare hosts such as "example.com/a" are accepted.
func NormalizeDomain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}
