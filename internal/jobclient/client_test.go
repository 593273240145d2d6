package jobclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

func TestClient_SetsRequestID(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(requestIDHeader)
		_, _ = w.Write([]byte(`{"stage":"Starting...","words_covered":0,"sentences_selected":0,"complete":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	assert.Equal(t, srv.URL, c.BaseURL())

	p, err := c.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Starting...", p.Stage)

	_, err = uuid.Parse(<-got)
	assert.NoError(t, err)
}

func TestClient_RequestIDCorrelation(t *testing.T) {
	got := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(requestIDHeader)
		_, _ = w.Write([]byte(`{"stage":"Starting...","complete":false}`))
	}))
	defer srv.Close()

	tl := logging.NewTestLogger()
	c := NewClient(srv.URL, WithClientLogger(tl.Logger))

	t.Run("from context", func(t *testing.T) {
		ctx := logging.WithRequestID(context.Background(), "req-42")
		_, err := c.Progress(ctx)
		require.NoError(t, err)

		assert.Equal(t, "req-42", <-got)
		tl.AssertField(t, "service request", "request.id", "req-42")
	})

	t.Run("minted", func(t *testing.T) {
		tl.Reset()
		_, err := c.Progress(context.Background())
		require.NoError(t, err)

		id := <-got
		_, err = uuid.Parse(id)
		require.NoError(t, err)
		tl.AssertField(t, "service request", "request.id", id)
	})
}

func TestClient_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"File not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListOutputs(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "File not found")
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stage":`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Progress(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_DownloadEscapesName(t *testing.T) {
	path := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path <- r.URL.EscapedPath()
		_, _ = w.Write([]byte("a,b\n"))
	}))
	defer srv.Close()

	var buf writerFunc
	n, err := NewClient(srv.URL).Download(context.Background(), "selected 1.csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, v1.PathDownload+"selected%201.csv", <-path)
}

type writerFunc []byte

func (w *writerFunc) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}

func TestOpenSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Phrases.TSV")
	require.NoError(t, os.WriteFile(path, []byte("Bonjour\tHello\n"), 0o600))

	f, err := OpenSourceFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Phrases.TSV", f.Name)
	assert.Equal(t, []byte("Bonjour\tHello\n"), f.Data)

	_, err = OpenSourceFile(dir)
	assert.Error(t, err)

	_, err = OpenSourceFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, v1.PathHealth, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}
