package tools

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/protocol"
	"github.com/richard-senior/podds/pkg/transport"
	"github.com/richard-senior/podds/pkg/util/podds"
)

// markdown longer than this is cut before it goes back to the client
const maxMarkdownLength = 10000

func ResultsPageTool() protocol.Tool {
	return protocol.Tool{
		Name: "results_page",
		Description: `
		Fetches a web page of football results and shows what the results loader would read from it:
		the finished matches found in the first table with home, away and score columns, the teams
		involved and the page itself converted to Markdown.
		Use this to check a page before fitting a team model from it with podds fit-poisson.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"url": {Type: "string", Description: "The URL of the results page ie. https://en.wikipedia.org/wiki/2023-24_EFL_Championship"},
			},
			Required: []string{"url"},
		},
	}
}

// ResultsPageResult is the results_page tool output
type ResultsPageResult struct {
	URL      string              `json:"url"`
	Title    string              `json:"title"`
	Domain   string              `json:"domain"`
	Matches  []podds.MatchResult `json:"matches"`
	Teams    []string            `json:"teams"`
	Markdown string              `json:"markdown"`
	Problem  string              `json:"problem,omitempty"` // why no matches could be read
}

func HandleResultsPage(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	pageURL, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}

	logger.Info("Getting results page from:", pageURL)
	body, err := transport.GetHtml(pageURL)
	if err != nil {
		return nil, err
	}
	return summariseResultsPage(pageURL, body)
}

// summariseResultsPage is HandleResultsPage after the download
func summariseResultsPage(pageURL string, body []byte) (*ResultsPageResult, error) {
	domain, err := extractDomain(pageURL)
	if err != nil {
		logger.Warn("Failed to extract domain from URL:", err)
		domain = "unknown"
	}
	out := &ResultsPageResult{URL: pageURL, Domain: domain, Matches: []podds.MatchResult{}, Teams: []string{}}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	matches, err := podds.ParseResultsHTML(bytes.NewReader(body))
	if err != nil {
		// still worth returning the markdown so the page can be inspected
		out.Problem = err.Error()
	} else {
		out.Matches = matches
		out.Teams = teamsOf(matches)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body), converter.WithDomain(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to markdown: %w", pageURL, err)
	}
	if len(markdown) > maxMarkdownLength {
		markdown = markdown[:maxMarkdownLength] + "\n\n... (content truncated due to size)"
	}
	out.Markdown = markdown
	return out, nil
}

func teamsOf(matches []podds.MatchResult) []string {
	seen := make(map[string]bool)
	for _, m := range matches {
		seen[m.HomeTeam] = true
		seen[m.AwayTeam] = true
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// extractDomain returns the scheme and host of a URL, for resolving
// relative links in the markdown
func extractDomain(urlString string) (string, error) {
	if !strings.HasPrefix(urlString, "http://") && !strings.HasPrefix(urlString, "https://") {
		urlString = "https://" + urlString
	}
	parsed, err := url.Parse(urlString)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
