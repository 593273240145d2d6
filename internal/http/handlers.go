package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/jobs"
	"github.com/fyrsmithlabs/vocabopt/internal/sheets"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// apiMessage is reported by GET /api/test.
const apiMessage = "French Vocabulary Optimizer API v2.0"

var apiFeatures = []string{
	"Enhanced word matching",
	"Multiple algorithms",
	"CSV outputs",
	"Real-time progress",
	"Prometheus metrics",
}

var (
	algorithms   = []string{v1.AlgorithmGreedy, v1.AlgorithmWeightedGreedy, v1.AlgorithmBeamSearch}
	strictnesses = []string{v1.StrictnessExact, v1.StrictnessNormal, v1.StrictnessLenient}
)

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, v1.HealthResponse{Status: "ok"})
}

// handleTest describes the API.
func (s *Server) handleTest(c echo.Context) error {
	return c.JSON(http.StatusOK, v1.TestResponse{
		Status:   "ok",
		Message:  apiMessage,
		Features: apiFeatures,
	})
}

// handleOptimize validates the upload, stores it and starts a job.
func (s *Server) handleOptimize(c echo.Context) error {
	ctx := c.Request().Context()

	fh, err := c.FormFile(v1.FieldSentenceFile)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "No sentence file uploaded")
		}
		return badRequest("invalid form: %v", err)
	}
	if fh.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No file selected")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !slices.Contains(s.config.AllowedExtensions, ext) {
		return badRequest("Invalid file type. Allowed: %s", strings.Join(s.config.AllowedExtensions, ", "))
	}

	wordList := strings.TrimSpace(c.FormValue(v1.FieldWordListURL))
	if wordList == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Word list URL is required")
	}
	if _, err := sheets.WordListURL(wordList); err != nil {
		return badRequest("Invalid word list URL: %v", err)
	}

	maxSentences := s.config.DefaultMaxSentences
	if raw := strings.TrimSpace(c.FormValue(v1.FieldMaxSentences)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest("max_sentences must be a positive integer, got %q", raw)
		}
		maxSentences = n
	}

	strictness := formValueOr(c, v1.FieldStrictness, s.config.DefaultStrictness)
	if !slices.Contains(strictnesses, strictness) {
		return badRequest("Unknown strictness %q", strictness)
	}
	algorithm := formValueOr(c, v1.FieldAlgorithm, s.config.DefaultAlgorithm)
	if !slices.Contains(algorithms, algorithm) {
		return badRequest("Unknown algorithm %q", algorithm)
	}

	if s.tracker.Running() {
		return echo.NewHTTPError(http.StatusConflict, v1.ErrJobRunning.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path, err := sheets.StoreUpload(s.config.UploadDir, fh.Filename, src)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}

	jobID, err := s.tracker.Start(jobs.Request{
		SentencePath: path,
		SentenceName: fh.Filename,
		WordListURL:  wordList,
		MaxSentences: maxSentences,
		Strictness:   strictness,
		Algorithm:    algorithm,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn(ctx, "failed to remove rejected upload", zap.String("path", path), zap.Error(rmErr))
		}
		if errors.Is(err, v1.ErrJobRunning) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	s.logger.Info(ctx, "optimization accepted",
		zap.String("job_id", jobID),
		zap.String("file", fh.Filename),
		zap.Int64("size", fh.Size),
	)
	return c.JSON(http.StatusOK, v1.StartResponse{
		Status:  "started",
		Message: "Optimization started",
		JobID:   jobID,
	})
}

func formValueOr(c echo.Context, name, def string) string {
	if v := strings.TrimSpace(c.FormValue(name)); v != "" {
		return v
	}
	return def
}

// handleProgress returns the current job snapshot.
func (s *Server) handleProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.Snapshot())
}

// handleListOutputs lists recent output files.
func (s *Server) handleListOutputs(c echo.Context) error {
	files, err := s.outputs.List()
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	if files == nil {
		files = []v1.OutputFile{}
	}
	return c.JSON(http.StatusOK, v1.ListOutputsResponse{Files: files})
}

// handleDownload streams one output file as an attachment.
func (s *Server) handleDownload(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	f, info, err := s.outputs.Open(name)
	if err != nil {
		if errors.Is(err, sheets.ErrOutputNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", info.Name()))
	http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
	return nil
}
