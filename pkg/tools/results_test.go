package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturesPage = `<html><head><title>Championship results</title></head><body>
<h1>Results</h1>
<table>
  <tr><th>Home</th><th>Score</th><th>Away</th></tr>
  <tr><td>Leeds</td><td>2-1</td><td>Hull</td></tr>
  <tr><td>Stoke</td><td>0-0</td><td>Leeds</td></tr>
  <tr><td>Hull</td><td>v</td><td>Stoke</td></tr>
</table>
<a href="/fixtures">Fixtures</a>
</body></html>`

func TestHandleResultsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fixturesPage))
	}))
	defer srv.Close()

	out, err := HandleResultsPage(map[string]any{"url": srv.URL + "/results"})
	require.NoError(t, err)
	res := out.(*ResultsPageResult)

	assert.Equal(t, "Championship results", res.Title)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, []string{"Hull", "Leeds", "Stoke"}, res.Teams)
	assert.Empty(t, res.Problem)
	assert.Contains(t, res.Markdown, "Results")
	assert.Contains(t, res.Markdown, "Leeds")
	assert.Contains(t, res.Markdown, "/fixtures")
}

func TestSummariseResultsPageWithoutTable(t *testing.T) {
	res, err := summariseResultsPage("https://example.com/news", []byte("<html><body><p>No games today</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.NotEmpty(t, res.Problem)
	assert.Equal(t, "https://example.com", res.Domain)
	assert.Contains(t, res.Markdown, "No games today")
}

func TestHandleResultsPageErrors(t *testing.T) {
	_, err := HandleResultsPage(map[string]any{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err = HandleResultsPage(map[string]any{"url": srv.URL})
	assert.Error(t, err)
}

func TestExtractDomain(t *testing.T) {
	d, err := extractDomain("www.bbc.co.uk/sport/football")
	require.NoError(t, err)
	assert.Equal(t, "https://www.bbc.co.uk", d)

	d, err = extractDomain("http://127.0.0.1:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", d)
}
