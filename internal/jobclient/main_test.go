package jobclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const testSheet = "https://docs.google.com/spreadsheets/d/abc123/edit#gid=0"

// fakeService is a scripted optimizer service.
type fakeService struct {
	mu sync.Mutex

	submitStatus int
	submitBody   string
	submits      int
	form         map[string]string
	fileName     string
	fileData     []byte

	// snapshots are served in order; the last one repeats.
	snapshots     []v1.Progress
	progressCalls int
	// failFirst makes the first n progress calls return 503.
	failFirst int
	// garbleFirst makes the next n progress calls return invalid JSON.
	garbleFirst int

	outputs   []v1.OutputFile
	downloads []time.Time
	missing   map[string]bool

	testStatus int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+v1.PathOptimize, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submits++

		if err := r.ParseMultipartForm(1 << 20); err == nil {
			f.form = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				f.form[k] = v[0]
			}
			if fhs := r.MultipartForm.File[v1.FieldSentenceFile]; len(fhs) > 0 {
				f.fileName = fhs[0].Filename
				file, _ := fhs[0].Open()
				f.fileData, _ = io.ReadAll(file)
				_ = file.Close()
			}
		}

		status := f.submitStatus
		if status == 0 {
			status = http.StatusOK
		}
		body := f.submitBody
		if body == "" && status == http.StatusOK {
			body = `{"status":"started","message":"Optimization started"}`
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})

	mux.HandleFunc("GET "+v1.PathProgress, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.progressCalls++

		if f.failFirst > 0 {
			f.failFirst--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if f.garbleFirst > 0 {
			f.garbleFirst--
			_, _ = io.WriteString(w, "<html>not json")
			return
		}

		var snap v1.Progress
		if len(f.snapshots) > 0 {
			snap = f.snapshots[0]
			if len(f.snapshots) > 1 {
				f.snapshots = f.snapshots[1:]
			}
		}
		_ = json.NewEncoder(w).Encode(snap)
	})

	mux.HandleFunc("GET "+v1.PathListOutputs, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(v1.ListOutputsResponse{Files: f.outputs})
	})

	mux.HandleFunc("GET "+v1.PathDownload+"{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := r.PathValue("name")
		f.downloads = append(f.downloads, time.Now())
		if f.missing[name] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"File not found"}`)
			return
		}
		_, _ = fmt.Fprintf(w, "contents of %s", name)
	})

	mux.HandleFunc("GET "+v1.PathTest, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.testStatus != 0 {
			w.WriteHeader(f.testStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(v1.TestResponse{
			Status:   "success",
			Message:  "Server is running",
			Features: []string{"greedy", "weighted_greedy", "beam_search"},
		})
	})

	return mux
}

func (f *fakeService) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progressCalls
}

func (f *fakeService) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeService) start(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	return NewClient(srv.URL, WithHTTPClient(&http.Client{Transport: transport, Timeout: 5 * time.Second}))
}

// recorder collects session events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kinds() []EventKind {
	var kinds []EventKind
	for _, ev := range r.all() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type harness struct {
	svc     *fakeService
	session *Session
	events  *recorder
	logs    *logging.TestLogger
}

func newHarness(t *testing.T, svc *fakeService) *harness {
	t.Helper()
	if svc == nil {
		svc = &fakeService{}
	}
	h := &harness{svc: svc, events: &recorder{}, logs: logging.NewTestLogger()}
	h.session = NewSession(svc.start(t), DefaultSessionConfig(),
		WithLogger(h.logs.Logger),
		WithListener(h.events.listen),
	)
	h.session.interval = 5 * time.Millisecond
	t.Cleanup(h.session.Reset)
	return h
}

func csvFile() SourceFile {
	return SourceFile{Name: "sentences.csv", Data: []byte("Le chat dort.\nJe mange une pomme.\n")}
}

func validParams() Params {
	return Params{WordListURL: testSheet, MaxSentences: "500", Strictness: "normal", Algorithm: "weighted_greedy"}
}

func doneSnapshot(total int) v1.Progress {
	return v1.Progress{
		Stage:             "Complete!",
		WordsCovered:      1900,
		SentencesSelected: total,
		Total:             2000,
		Complete:          true,
		Results: &v1.ResultSet{
			TotalSentences:  total,
			WordsCovered:    1900,
			TotalWords:      2000,
			CoveragePercent: 95,
			Efficiency:      3.96,
			ProcessingTime:  1.25,
			AlgorithmUsed:   "weighted_greedy",
			MissingWords:    []v1.MissingWord{"chat", "chien"},
		},
	}
}
