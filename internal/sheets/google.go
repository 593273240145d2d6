package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/fyrsmithlabs/vocabopt/internal/optimizer"
)

// Tab titles of a results spreadsheet, in order.
const (
	TabSentences  = "Optimized Sentences"
	TabSummary    = "Summary"
	TabMissing    = "Missing Words"
	TabCoverage   = "Coverage Map"
	TabStatistics = "Statistics"
)

const resultTitlePrefix = "French_Vocab_Optimization_"

// ErrNoSpreadsheetID is returned for word-list URLs without a spreadsheet id.
var ErrNoSpreadsheetID = errors.New("no spreadsheet id in URL")

// GoogleClient reads word lists from and writes results to Google Sheets
// with service account or authorized user credentials, so private sheets
// work where the CSV export would need public sharing.
type GoogleClient struct {
	svc *sheetsapi.Service
	now func() time.Time
}

// NewGoogleClient authenticates with the credentials JSON file at path.
func NewGoogleClient(ctx context.Context, path string) (*GoogleClient, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied credentials path
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	return newGoogleClient(ctx, option.WithTokenSource(creds.TokenSource))
}

func newGoogleClient(ctx context.Context, opts ...option.ClientOption) (*GoogleClient, error) {
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleClient{svc: svc, now: time.Now}, nil
}

// LoadWordList reads the worksheet a Sheets URL points at (its gid, or the
// first worksheet) and parses it with the ParseWordList column rules.
func (g *GoogleClient) LoadWordList(ctx context.Context, sheetURL string) ([]optimizer.Word, error) {
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSpreadsheetID, sheetURL)
	}
	id := m[1]

	ss, err := g.svc.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	title, err := worksheetTitle(ss, gidOf(sheetURL))
	if err != nil {
		return nil, err
	}

	vr, err := g.svc.Spreadsheets.Values.Get(id, quoteTitle(title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", title, err)
	}

	rows := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return parseWordRows(rows)
}

func gidOf(sheetURL string) string {
	if g := gidPattern.FindStringSubmatch(sheetURL); g != nil {
		return g[1]
	}
	return ""
}

func worksheetTitle(ss *sheetsapi.Spreadsheet, gid string) (string, error) {
	if len(ss.Sheets) == 0 {
		return "", ErrEmptyWordList
	}
	if gid == "" {
		return ss.Sheets[0].Properties.Title, nil
	}
	for _, sh := range ss.Sheets {
		if strconv.FormatInt(sh.Properties.SheetId, 10) == gid {
			return sh.Properties.Title, nil
		}
	}
	return "", fmt.Errorf("no worksheet with gid %s", gid)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Publish creates a results spreadsheet with sentence, summary,
// missing-word, coverage and statistics tabs and returns its URL.
func (g *GoogleClient) Publish(ctx context.Context, r *optimizer.Result, maxSentences int) (string, error) {
	tabs := []struct {
		title string
		rows  [][]string
	}{
		{TabSentences, sentenceRows(r)},
		{TabSummary, targetSummaryRows(r, maxSentences)},
		{TabMissing, sheetMissingRows(r)},
		{TabCoverage, coverageRows(r)},
		{TabStatistics, statisticsRows(r)},
	}

	spec := &sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{
			Title: resultTitlePrefix + g.now().Format(timestampLayout),
		},
	}
	data := make([]*sheetsapi.ValueRange, 0, len(tabs))
	for _, tab := range tabs {
		spec.Sheets = append(spec.Sheets, &sheetsapi.Sheet{
			Properties: &sheetsapi.SheetProperties{
				Title:          tab.title,
				GridProperties: &sheetsapi.GridProperties{FrozenRowCount: 1},
			},
		})
		data = append(data, &sheetsapi.ValueRange{
			Range:  quoteTitle(tab.title) + "!A1",
			Values: cells(tab.rows),
		})
	}

	ss, err := g.svc.Spreadsheets.Create(spec).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}
	_, err = g.svc.Spreadsheets.Values.BatchUpdate(ss.SpreadsheetId, &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write spreadsheet %s: %w", ss.SpreadsheetId, err)
	}
	return ss.SpreadsheetUrl, nil
}

func cells(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}

func targetSummaryRows(r *optimizer.Result, maxSentences int) [][]string {
	under := "Yes"
	if r.TotalSentences > maxSentences {
		under = fmt.Sprintf("Over by %d", r.TotalSentences-maxSentences)
	}
	return append(summaryRows(r),
		[]string{"Target Sentences", itoa(maxSentences)},
		[]string{"Sentences Under Target", under},
		[]string{"Missing Words", itoa(len(r.Missing))},
	)
}

func sheetMissingRows(r *optimizer.Result) [][]string {
	if len(r.Missing) == 0 {
		return [][]string{{"French", "English", "POS"}, {"All words found", "", ""}}
	}
	return missingRows(r)
}

// statisticsRows buckets selected sentences by the share of their
// vocabulary words that were new when picked.
func statisticsRows(r *optimizer.Result) [][]string {
	var high, medium, low int
	maxEff, minEff, sum := 0.0, 0.0, 0.0
	for i, s := range r.Selected {
		eff := float64(len(s.NewWords)) / float64(max(s.TotalWords, 1))
		sum += eff
		if i == 0 || eff > maxEff {
			maxEff = eff
		}
		if i == 0 || eff < minEff {
			minEff = eff
		}
		switch {
		case eff > 0.6:
			high++
		case eff >= 0.3:
			medium++
		default:
			low++
		}
	}
	avg := 0.0
	if n := len(r.Selected); n > 0 {
		avg = sum / float64(n)
	}
	round := func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

	return [][]string{
		{"Statistic", "Value"},
		{"Total Sentences Selected", itoa(r.TotalSentences)},
		{"Average Efficiency", round(avg)},
		{"Most Efficient Sentence", round(maxEff)},
		{"Least Efficient Sentence", round(minEff)},
		{"Total Words in List", itoa(r.TotalWords)},
		{"Words Found", itoa(r.WordsCovered)},
		{"Words Missing", itoa(len(r.Missing))},
		{"Coverage Rate", ftoa(r.CoveragePercent) + "%"},
		{"High Efficiency (>60%)", itoa(high)},
		{"Medium Efficiency (30-60%)", itoa(medium)},
		{"Low Efficiency (<30%)", itoa(low)},
		{"Algorithm", r.Algorithm},
		{"Processing Time", ftoa(r.ProcessingTime) + "s"},
	}
}
