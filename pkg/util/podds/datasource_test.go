package podds

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadShotsCSV(t *testing.T) {
	shots, err := ReadShotsCSV(strings.NewReader("\ufeffx,y,is_goal,reference_xg\n" +
		"90,50,true,0.41\n" +
		" , ,,\n" +
		"72.5,33,false,\n" +
		"88,61,0,0.12\n"))
	require.NoError(t, err)
	require.Len(t, shots, 3)

	assert.Equal(t, 90.0, shots[0].X)
	assert.True(t, shots[0].IsGoal)
	require.NotNil(t, shots[0].ReferenceXG)
	assert.Equal(t, 0.41, *shots[0].ReferenceXG)

	assert.Nil(t, shots[1].ReferenceXG)
	assert.False(t, shots[2].IsGoal)
}

func TestReadShotsCSVErrors(t *testing.T) {
	for name, body := range map[string]string{
		"missing column": "x,y\n90,50\n",
		"bad x":          "x,y,is_goal\nnear,50,true\n",
		"bad goal flag":  "x,y,is_goal\n90,50,maybe\n",
		"reference > 1":  "x,y,is_goal,xg\n90,50,true,1.4\n",
		"empty file":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadShotsCSV(strings.NewReader(body))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := ReadShotsCSV(strings.NewReader("x,y,is_goal\n90,50,true\nnope,1,false\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestReadResultsCSV(t *testing.T) {
	results, err := ReadResultsCSV(strings.NewReader("\ufeffDiv,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR\n" +
		"E0,16/08/2024,Man United,Fulham,1,0,H\n" +
		"E0,17/08/2024,Ipswich,Liverpool,0,2,A\n" +
		"E0,24/05/2025,Arsenal,Southampton,,,\n" +
		"E0,,,,,,\n"))
	require.NoError(t, err)
	assert.Equal(t, []MatchResult{
		{HomeTeam: "Man United", AwayTeam: "Fulham", HomeGoals: 1, AwayGoals: 0},
		{HomeTeam: "Ipswich", AwayTeam: "Liverpool", HomeGoals: 0, AwayGoals: 2},
	}, results)
}

func TestReadResultsCSVAliases(t *testing.T) {
	results, err := ReadResultsCSV(strings.NewReader("home_team,away_team,home_goals,away_goals\nLeeds,Hull,3,3\n"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].AwayGoals)
}

func TestReadResultsCSVErrors(t *testing.T) {
	for name, body := range map[string]string{
		"missing away goals": "HomeTeam,AwayTeam,FTHG\nLeeds,Hull,1\n",
		"half a score":       "HomeTeam,AwayTeam,FTHG,FTAG\nLeeds,Hull,1,\n",
		"negative goals":     "HomeTeam,AwayTeam,FTHG,FTAG\nLeeds,Hull,-1,0\n",
		"self fixture":       "HomeTeam,AwayTeam,FTHG,FTAG\nLeeds,Leeds,1,0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadResultsCSV(strings.NewReader(body))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLoadFromFiles(t *testing.T) {
	shots, err := LoadShotsCSV(writeFile(t, "shots.csv", "x,y,is_goal\n90,50,1\n"))
	require.NoError(t, err)
	assert.Len(t, shots, 1)

	results, err := LoadResultsCSV(writeFile(t, "E0.csv", "HomeTeam,AwayTeam,FTHG,FTAG\nLeeds,Hull,2,0\n"))
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = LoadShotsCSV("")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = LoadResultsCSV(filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

const resultsPage = `<html><body>
<table><tr><th>Pos</th><th>Team</th><th>Pts</th></tr><tr><td>1</td><td>Leeds</td><td>90</td></tr></table>
<table class="fixtures">
  <thead><tr><th>Date</th><th>Home team</th><th>Score</th><th>Away team</th></tr></thead>
  <tbody>
    <tr><td>10 Aug</td><td>Leeds</td><td>2–1</td><td>Hull</td></tr>
    <tr><td>17 Aug</td><td>Hull</td><td> 0 : 0 </td><td>Leeds</td></tr>
    <tr><td>24 Aug</td><td>Leeds</td><td>v</td><td>Hull</td></tr>
    <tr><td>31 Aug</td><td>Hull</td><td>3-2</td><td>Leeds</td></tr>
  </tbody>
</table>
</body></html>`

func TestParseResultsHTML(t *testing.T) {
	results, err := ParseResultsHTML(strings.NewReader(resultsPage))
	require.NoError(t, err)
	assert.Equal(t, []MatchResult{
		{HomeTeam: "Leeds", AwayTeam: "Hull", HomeGoals: 2, AwayGoals: 1},
		{HomeTeam: "Hull", AwayTeam: "Leeds", HomeGoals: 0, AwayGoals: 0},
		{HomeTeam: "Hull", AwayTeam: "Leeds", HomeGoals: 3, AwayGoals: 2},
	}, results)
}

func TestParseResultsHTMLWithoutFixtures(t *testing.T) {
	_, err := ParseResultsHTML(strings.NewReader("<table><tr><th>Team</th></tr></table>"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseResultsHTML(strings.NewReader(`<table>
<tr><th>Home</th><th>Result</th><th>Away</th></tr>
<tr><td>Leeds</td><td>1-0</td><td>Leeds</td></tr></table>`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFetchResultsHTMLDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte(resultsPage))
		_ = bw.Close()
	}))
	defer srv.Close()

	results, err := FetchResultsHTML(srv.URL)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFetchResultsHTMLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := FetchResultsHTML(srv.URL)
	assert.Error(t, err)

	_, err = FetchResultsHTML(" ")
	assert.Error(t, err)
}
