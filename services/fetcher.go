package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"truthlens/models"
)

const (
	// URLContentCap bounds the extracted text handed to the text pipeline.
	URLContentCap = 1000
	maxPageBytes  = 5 << 20
)

type ContentFetcher struct {
	http *http.Client
	log  *zap.Logger
}

func NewContentFetcher(timeout time.Duration, log *zap.Logger) *ContentFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentFetcher{
		http: &http.Client{Timeout: timeout},
		log:  log.Named("fetcher"),
	}
}

// ExtractURLContent never fails: on any fetch or parse error it returns
// title "Error", empty content and the cause in Err.
func (f *ContentFetcher) ExtractURLContent(ctx context.Context, rawURL string) models.URLContent {
	title, text, err := f.Fetch(ctx, rawURL)
	if err != nil {
		f.log.Warn("url extraction failed", zap.String("url", rawURL), zap.Error(err))
		return models.URLContent{Title: "Error", Content: "", URL: rawURL, Err: err}
	}
	return models.URLContent{Title: title, Content: truncate(text, URLContentCap), URL: rawURL}
}

// Fetch downloads the page and returns its title and visible text.
func (f *ContentFetcher) Fetch(ctx context.Context, rawURL string) (string, string, error) {
	f.log.Debug("loading url", zap.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch: status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	f.log.Debug("page loaded", zap.Int("bytes", len(body)), zap.String("content_type", resp.Header.Get("Content-Type")))

	enc, _, _ := charset.DetermineEncoding(body, resp.Header.Get("Content-Type"))
	utf8Body, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", "", fmt.Errorf("decode body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return title, extractText(doc), nil
}

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"canvas":   true,
	"audio":    true,
	"video":    true,
	"nav":      true,
	"footer":   true,
	"head":     true,
}

// Block tags get a line break before and after.
var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"div": true, "section": true, "article": true, "main": true,
	"blockquote": true, "li": true, "dt": true, "dd": true,
	"tr": true, "td": true, "th": true, "br": true,
	"figcaption": true,
}

// Paragraph tags end with a blank line.
var paraTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "figcaption": true,
}

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

func isJunkNode(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "class", "id":
			val := strings.ToLower(attr.Val)
			if strings.Contains(val, "advertisement") ||
				strings.Contains(val, "ad-banner") ||
				strings.Contains(val, "popup") ||
				strings.Contains(val, "modal") ||
				strings.Contains(val, "cookie-banner") {
				return true
			}
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		}
	}
	return false
}

// extractText prefers the article body and falls back to the whole document.
func extractText(doc *goquery.Document) string {
	for _, sel := range []string{
		"article", "main",
		"[class*=post-content], [class*=main-content], [class*=article], [id*=article], [class*=content], [id*=content]",
	} {
		if main := doc.Find(sel).First(); main.Length() > 0 {
			if text := textFromNode(main.Get(0)); text != "" {
				return text
			}
		}
	}
	if len(doc.Nodes) == 0 {
		return ""
	}
	return textFromNode(doc.Nodes[0])
}

func textFromNode(root *html.Node) string {
	var sb strings.Builder

	lastIs := func(b byte) bool {
		s := sb.String()
		return len(s) > 0 && s[len(s)-1] == b
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if skipTags[tag] || isJunkNode(n) {
				return
			}
			if blockTags[tag] && sb.Len() > 0 && !lastIs('\n') {
				sb.WriteByte('\n')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if blockTags[tag] {
				if paraTags[tag] {
					sb.WriteString("\n\n")
				} else if !lastIs('\n') {
					sb.WriteByte('\n')
				}
			}
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text == "" {
				return
			}
			if sb.Len() > 0 && !lastIs('\n') && !lastIs(' ') {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = spaceRe.ReplaceAllString(strings.TrimSpace(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(newlineRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
