package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!doctype html>
<html><head><title>Breaking story</title><script>var x = 1;</script></head>
<body>
  <nav>Home | About</nav>
  <div class="advertisement">Buy now</div>
  <article>
    <h1>Headline</h1>
    <p>First paragraph with <b>bold</b> text.</p>
    <p>Second paragraph.</p>
  </article>
  <footer>Copyright</footer>
</body></html>`

func TestFetchExtractsTitleAndArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	f := NewContentFetcher(time.Second, nil)
	content := f.ExtractURLContent(context.Background(), srv.URL)

	require.NoError(t, content.Err)
	assert.Equal(t, "Breaking story", content.Title)
	assert.Equal(t, srv.URL, content.URL)
	assert.Contains(t, content.Content, "First paragraph with bold text.")
	assert.Contains(t, content.Content, "Second paragraph.")
	assert.NotContains(t, content.Content, "Buy now")
	assert.NotContains(t, content.Content, "var x")
	assert.NotContains(t, content.Content, "Home | About")
}

func TestExtractURLContentCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>" + long + "</p></body></html>"))
	}))
	defer srv.Close()

	content := NewContentFetcher(time.Second, nil).ExtractURLContent(context.Background(), srv.URL)
	assert.Len(t, []rune(content.Content), URLContentCap)
}

func TestExtractURLContentErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewContentFetcher(time.Second, nil)
	for _, url := range []string{srv.URL, "http://127.0.0.1:0/nothing", "::not a url"} {
		content := f.ExtractURLContent(context.Background(), url)
		assert.Equal(t, "Error", content.Title, url)
		assert.Empty(t, content.Content, url)
		assert.Equal(t, url, content.URL)
		assert.Error(t, content.Err, url)
	}
}

func TestExtractURLContentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("<p>late</p>"))
	}))
	defer srv.Close()

	content := NewContentFetcher(20*time.Millisecond, nil).ExtractURLContent(context.Background(), srv.URL)
	assert.Equal(t, "Error", content.Title)
	assert.Empty(t, content.Content)
}
