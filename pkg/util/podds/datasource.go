package podds

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/transport"
)

// header aliases accepted by the results loader, first match wins
var (
	homeTeamHeaders  = []string{"HomeTeam", "home_team", "Home"}
	awayTeamHeaders  = []string{"AwayTeam", "away_team", "Away"}
	homeGoalsHeaders = []string{"FTHG", "home_goals", "HG"}
	awayGoalsHeaders = []string{"FTAG", "away_goals", "AG"}
)

// scorePattern matches "2-1", "2–1" and "2 : 1"
var scorePattern = regexp.MustCompile(`^\s*(\d+)\s*[-–:]\s*(\d+)\s*$`)

// csvTable is a parsed CSV file with its header row indexed by name
type csvTable struct {
	headers map[string]int
	rows    [][]string
}

func readCSV(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV has no header row: %w", ErrInvalidInput)
	}

	// football-data files start with a byte order mark
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	t := &csvTable{headers: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		t.headers[strings.TrimSpace(h)] = i
	}
	return t, nil
}

// column finds the first alias present in the header
func (t *csvTable) column(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := t.headers[a]; ok {
			return i, true
		}
	}
	return -1, false
}

func (t *csvTable) require(aliases ...string) (int, error) {
	i, ok := t.column(aliases...)
	if !ok {
		return -1, fmt.Errorf("CSV is missing a %s column: %w", aliases[0], ErrInvalidInput)
	}
	return i, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func openCSV(path string) (*csvTable, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no CSV path given: %w", ErrInvalidInput)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return readCSV(f)
}

// LoadShotsCSV reads x, y, is_goal and an optional reference_xg column
func LoadShotsCSV(path string) ([]Shot, error) {
	t, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	shots, err := t.shots()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("Loaded", len(shots), "shots from", path)
	return shots, nil
}

// ReadShotsCSV is LoadShotsCSV for an already open stream
func ReadShotsCSV(r io.Reader) ([]Shot, error) {
	t, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return t.shots()
}

func (t *csvTable) shots() ([]Shot, error) {
	xi, err := t.require("x")
	if err != nil {
		return nil, err
	}
	yi, err := t.require("y")
	if err != nil {
		return nil, err
	}
	gi, err := t.require("is_goal")
	if err != nil {
		return nil, err
	}
	ri, hasRef := t.column("reference_xg", "xg")

	var shots []Shot
	for n, record := range t.rows {
		line := n + 2
		if cell(record, xi) == "" && cell(record, yi) == "" {
			logger.Warn("Skipping empty shot at row", line)
			continue
		}
		x, err := strconv.ParseFloat(cell(record, xi), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad x %q: %w", line, cell(record, xi), ErrInvalidInput)
		}
		y, err := strconv.ParseFloat(cell(record, yi), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad y %q: %w", line, cell(record, yi), ErrInvalidInput)
		}
		goal, err := strconv.ParseBool(cell(record, gi))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad is_goal %q: %w", line, cell(record, gi), ErrInvalidInput)
		}
		shot, err := NewShot(x, y, goal)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if hasRef {
			if raw := cell(record, ri); raw != "" {
				ref, err := strconv.ParseFloat(raw, 64)
				if err != nil || ref < 0 || ref > 1 {
					return nil, fmt.Errorf("row %d: bad reference xG %q: %w", line, raw, ErrInvalidInput)
				}
				shot.ReferenceXG = &ref
			}
		}
		shots = append(shots, shot)
	}
	return shots, nil
}

// LoadResultsCSV reads finished matches from a football-data.co.uk style file.
// Fixtures without a score yet are skipped.
func LoadResultsCSV(path string) ([]MatchResult, error) {
	t, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	matches, err := t.results()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("Loaded", len(matches), "results from", path)
	return matches, nil
}

// ReadResultsCSV is LoadResultsCSV for an already open stream
func ReadResultsCSV(r io.Reader) ([]MatchResult, error) {
	t, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return t.results()
}

func (t *csvTable) results() ([]MatchResult, error) {
	cols := make([]int, 4)
	for i, aliases := range [][]string{homeTeamHeaders, awayTeamHeaders, homeGoalsHeaders, awayGoalsHeaders} {
		c, err := t.require(aliases...)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}

	var matches []MatchResult
	for n, record := range t.rows {
		line := n + 2
		home, away := cell(record, cols[0]), cell(record, cols[1])
		if home == "" || away == "" {
			logger.Warn("Skipping incomplete record at row", line)
			continue
		}
		hg, ag := cell(record, cols[2]), cell(record, cols[3])
		if hg == "" && ag == "" {
			logger.Debug("Skipping unplayed fixture", home, "v", away)
			continue
		}
		m, err := newResult(home, away, hg, ag)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func newResult(home, away, homeGoals, awayGoals string) (MatchResult, error) {
	hg, err := strconv.Atoi(homeGoals)
	if err != nil {
		return MatchResult{}, fmt.Errorf("bad home goals %q: %w", homeGoals, ErrInvalidInput)
	}
	ag, err := strconv.Atoi(awayGoals)
	if err != nil {
		return MatchResult{}, fmt.Errorf("bad away goals %q: %w", awayGoals, ErrInvalidInput)
	}
	m := MatchResult{HomeTeam: home, AwayTeam: away, HomeGoals: hg, AwayGoals: ag}
	return m, m.Validate()
}

// resultColumns locates the columns of a results table by header text
type resultColumns struct {
	home, away, score int
}

func findResultColumns(table *goquery.Selection) (resultColumns, bool) {
	cols := resultColumns{-1, -1, -1}
	table.Find("tr").First().Find("th, td").Each(func(i int, s *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(s.Text()))
		switch {
		case strings.Contains(h, "home") && cols.home < 0:
			cols.home = i
		case strings.Contains(h, "away") && cols.away < 0:
			cols.away = i
		case (strings.Contains(h, "score") || strings.Contains(h, "result") || h == "ft") && cols.score < 0:
			cols.score = i
		}
	})
	return cols, cols.home >= 0 && cols.away >= 0 && cols.score >= 0
}

// ParseResultsHTML reads the first table that has home, away and score
// columns. Rows whose score cell is not a final score are skipped.
func ParseResultsHTML(r io.Reader) ([]MatchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var table *goquery.Selection
	var cols resultColumns
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if c, ok := findResultColumns(s); ok {
			table, cols = s, c
			return false
		}
		return true
	})
	if table == nil {
		return nil, fmt.Errorf("no table with home, away and score columns: %w", ErrInvalidInput)
	}

	var matches []MatchResult
	var rowErr error
	table.Find("tr").Slice(1, goquery.ToEnd).EachWithBreak(func(n int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }
		home, away, score := text(cols.home), text(cols.away), text(cols.score)
		if home == "" || away == "" {
			return true
		}
		parts := scorePattern.FindStringSubmatch(score)
		if parts == nil {
			logger.Debug("Skipping row without a final score", home, "v", away, score)
			return true
		}
		m, err := newResult(home, away, parts[1], parts[2])
		if err != nil {
			rowErr = fmt.Errorf("table row %d: %w", n+1, err)
			return false
		}
		matches = append(matches, m)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return matches, nil
}

// FetchResultsHTML downloads a results page and parses its table
func FetchResultsHTML(url string) ([]MatchResult, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("no results url given")
	}
	body, err := transport.GetHtml(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results from %s: %w", url, err)
	}
	matches, err := ParseResultsHTML(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	logger.Info("Fetched", len(matches), "results from", url)
	return matches, nil
}
