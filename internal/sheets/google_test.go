package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
)

// fakeSheets serves the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	mu         sync.Mutex
	worksheets []*sheetsapi.SheetProperties
	values     map[string][][]interface{}
	created    *sheetsapi.Spreadsheet
	written    *sheetsapi.BatchUpdateValuesRequest
	readRanges []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/v4/spreadsheets":
		var ss sheetsapi.Spreadsheet
		if err := json.NewDecoder(r.Body).Decode(&ss); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.created = &ss
		ss.SpreadsheetId = "new-1"
		ss.SpreadsheetUrl = "https://docs.google.com/spreadsheets/d/new-1/edit"
		_ = json.NewEncoder(w).Encode(&ss)

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/values:batchUpdate"):
		var req sheetsapi.BatchUpdateValuesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.written = &req
		_ = json.NewEncoder(w).Encode(&sheetsapi.BatchUpdateValuesResponse{SpreadsheetId: "new-1"})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/abc123/values/"):
		rng := strings.TrimPrefix(path, "/v4/spreadsheets/abc123/values/")
		f.readRanges = append(f.readRanges, rng)
		title := strings.Trim(rng, "'")
		_ = json.NewEncoder(w).Encode(&sheetsapi.ValueRange{Range: rng, Values: f.values[title]})

	case r.Method == http.MethodGet && path == "/v4/spreadsheets/abc123":
		ss := sheetsapi.Spreadsheet{SpreadsheetId: "abc123"}
		for _, p := range f.worksheets {
			ss.Sheets = append(ss.Sheets, &sheetsapi.Sheet{Properties: p})
		}
		_ = json.NewEncoder(w).Encode(&ss)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	}
}

func newFakeGoogle(t *testing.T) (*GoogleClient, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{
		worksheets: []*sheetsapi.SheetProperties{
			{SheetId: 0, Title: "Words"},
			{SheetId: 77, Title: "Extra"},
		},
		values: map[string][][]interface{}{
			"Words": {{"french", "english"}, {"chat", "cat"}, {"chien", "dog"}},
			"Extra": {{"pomme", "apple", "noun"}},
		},
	}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	g, err := newGoogleClient(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	g.now = func() time.Time { return time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC) }
	return g, fake
}

func TestGoogleClient_LoadWordList(t *testing.T) {
	g, _ := newFakeGoogle(t)

	tests := []struct {
		name string
		url  string
		want []optimizer.Word
	}{
		{
			name: "first worksheet",
			url:  "https://docs.google.com/spreadsheets/d/abc123/edit",
			want: []optimizer.Word{{French: "chat", English: "cat"}, {French: "chien", English: "dog"}},
		},
		{
			name: "worksheet by gid",
			url:  "https://docs.google.com/spreadsheets/d/abc123/edit#gid=77",
			want: []optimizer.Word{{French: "pomme", English: "apple", POS: "noun"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := g.LoadWordList(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, words)
		})
	}
}

func TestGoogleClient_LoadWordListErrors(t *testing.T) {
	g, _ := newFakeGoogle(t)

	_, err := g.LoadWordList(context.Background(), "https://example.com/words.csv")
	assert.ErrorIs(t, err, ErrNoSpreadsheetID)

	_, err = g.LoadWordList(context.Background(), "https://docs.google.com/spreadsheets/d/abc123/edit#gid=5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no worksheet with gid 5")

	_, err = g.LoadWordList(context.Background(), "https://docs.google.com/spreadsheets/d/private9/edit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open spreadsheet")
}

func TestGoogleClient_Publish(t *testing.T) {
	g, fake := newFakeGoogle(t)

	url, err := g.Publish(context.Background(), sampleResult(true), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/new-1/edit", url)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.NotNil(t, fake.created)
	assert.Equal(t, "French_Vocab_Optimization_20260301_140509", fake.created.Properties.Title)
	var titles []string
	for _, sh := range fake.created.Sheets {
		titles = append(titles, sh.Properties.Title)
		assert.EqualValues(t, 1, sh.Properties.GridProperties.FrozenRowCount)
	}
	assert.Equal(t, []string{TabSentences, TabSummary, TabMissing, TabCoverage, TabStatistics}, titles)

	require.NotNil(t, fake.written)
	assert.Equal(t, "RAW", fake.written.ValueInputOption)
	require.Len(t, fake.written.Data, 5)
	assert.Equal(t, "'Optimized Sentences'!A1", fake.written.Data[0].Range)
	assert.Equal(t, []interface{}{"1", "Le chat et le chien.", "chat, chien", "2", "2"}, fake.written.Data[0].Values[1])
	assert.Equal(t, []interface{}{"licorne", "unicorn", ""}, fake.written.Data[2].Values[1])
}

func TestGoogleClient_PublishCreateFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	defer ts.Close()

	g, err := newGoogleClient(context.Background(), option.WithEndpoint(ts.URL+"/"), option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	_, err = g.Publish(context.Background(), sampleResult(false), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create spreadsheet")
}

func TestNewGoogleClient_Credentials(t *testing.T) {
	_, err := NewGoogleClient(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read google credentials")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	_, err = NewGoogleClient(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse google credentials")
}

func TestTargetSummaryRows(t *testing.T) {
	r := sampleResult(true)
	r.TotalSentences = 12

	rows := targetSummaryRows(r, 10)
	assert.Contains(t, rows, []string{"Sentences Under Target", "Over by 2"})
	assert.Contains(t, rows, []string{"Missing Words", "1"})

	rows = targetSummaryRows(r, 12)
	assert.Contains(t, rows, []string{"Sentences Under Target", "Yes"})
}

func TestSheetMissingRows_AllFound(t *testing.T) {
	rows := sheetMissingRows(sampleResult(false))
	assert.Equal(t, [][]string{{"French", "English", "POS"}, {"All words found", "", ""}}, rows)
}

func TestStatisticsRows(t *testing.T) {
	r := &optimizer.Result{
		Selected: []optimizer.Selected{
			{NewWords: []string{"a", "b", "c"}, TotalWords: 4},
			{NewWords: []string{"d"}, TotalWords: 2},
			{NewWords: []string{"e"}, TotalWords: 5},
		},
		TotalSentences: 3,
	}
	rows := statisticsRows(r)

	assert.Contains(t, rows, []string{"Most Efficient Sentence", "0.75"})
	assert.Contains(t, rows, []string{"Least Efficient Sentence", "0.20"})
	assert.Contains(t, rows, []string{"High Efficiency (>60%)", "1"})
	assert.Contains(t, rows, []string{"Medium Efficiency (30-60%)", "1"})
	assert.Contains(t, rows, []string{"Low Efficiency (<30%)", "1"})
}
