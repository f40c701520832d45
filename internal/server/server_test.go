package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/analyzer"
	"github.com/raaihank/docsentry/internal/config"
	"github.com/raaihank/docsentry/internal/detect"
	"github.com/raaihank/docsentry/internal/extract"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/pii"
	"github.com/raaihank/docsentry/internal/store"
)

// fakeStore is an in-memory FindingStore for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	rows     []pii.Finding
	nextID   int64
	failNext error
}

func (f *fakeStore) InsertMany(ctx context.Context, findings []pii.Finding) ([]pii.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		return nil, f.failNext
	}
	out := make([]pii.Finding, len(findings))
	for i, finding := range findings {
		f.nextID++
		finding.ID = strconv.FormatInt(f.nextID, 10)
		f.rows = append(f.rows, finding)
		out[i] = finding
	}
	return out, nil
}

func (f *fakeStore) FindAll(ctx context.Context, limit int) ([]pii.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.rows) {
		limit = len(f.rows)
	}
	out := make([]pii.Finding, limit)
	copy(out, f.rows[:limit])
	return out, nil
}

func (f *fakeStore) DeleteByMatch(ctx context.Context, fileName, piiValue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.FileName == fileName && row.Value == piiValue {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.rows))
	f.rows = nil
	return n, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*store.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &store.Stats{ByType: make(map[string]int64)}
	for _, row := range f.rows {
		stats.Total++
		stats.ByType[string(row.Type)]++
	}
	return stats, nil
}

// fakeAnalyzer stands in for the external statistical engine.
type fakeAnalyzer struct {
	spans []analyzer.Span
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) ([]analyzer.Span, error) {
	return f.spans, f.err
}

func newTestServer(t *testing.T, findings FindingStore, spanAnalyzer detect.SpanAnalyzer) *Server {
	t.Helper()

	log := &logger.Logger{Logger: zap.NewNop()}
	cfg := config.GetDefaults()
	cfg.WebSocket.Enabled = false

	orchestrator := detect.New(
		extract.New(log),
		pii.NewEngine(pii.DefaultRules(), log),
		spanAnalyzer,
		detect.Config{MaxInputBytes: cfg.Detection.MaxInputBytes},
		log,
	)

	srv, err := New(cfg, log, orchestrator, findings, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return srv
}

func multipartUpload(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("writing part failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing writer failed: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func decodeFindings(t *testing.T, rec *httptest.ResponseRecorder) []pii.Finding {
	t.Helper()

	var findings []pii.Finding
	if err := json.Unmarshal(rec.Body.Bytes(), &findings); err != nil {
		t.Fatalf("decoding findings failed: %v (body %q)", err, rec.Body.String())
	}
	return findings
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp detailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding detail failed: %v (body %q)", err, rec.Body.String())
	}
	return resp.Detail
}

func TestScanFile(t *testing.T) {
	t.Run("StoresAndReturnsFindings", func(t *testing.T) {
		db := &fakeStore{}
		srv := newTestServer(t, db, &fakeAnalyzer{})

		body, contentType := multipartUpload(t, "report.txt", "Patient is 34 years old and lives at 123 Main St.")
		req := httptest.NewRequest("POST", "/scanFile", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		findings := decodeFindings(t, rec)
		if len(findings) != 2 {
			t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
		}
		for _, f := range findings {
			if f.ID == "" {
				t.Errorf("finding missing store-assigned ID: %+v", f)
			}
			if f.FileName != "report.txt" {
				t.Errorf("finding has wrong file name %q", f.FileName)
			}
		}

		stored, _ := db.FindAll(context.Background(), 100)
		if len(stored) != 2 {
			t.Errorf("expected 2 persisted rows, got %d", len(stored))
		}
	})

	t.Run("NoPIIReturnsEmptyArrayWithoutPersisting", func(t *testing.T) {
		db := &fakeStore{}
		srv := newTestServer(t, db, &fakeAnalyzer{})

		body, contentType := multipartUpload(t, "clean.txt", "nothing sensitive here")
		req := httptest.NewRequest("POST", "/scanFile", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if findings := decodeFindings(t, rec); len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
		if stored, _ := db.FindAll(context.Background(), 100); len(stored) != 0 {
			t.Errorf("clean scan must not persist rows, got %d", len(stored))
		}
	})

	t.Run("MissingFileField", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{}, &fakeAnalyzer{})

		req := httptest.NewRequest("POST", "/scanFile", strings.NewReader("not multipart"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("UnsupportedSuffix", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{}, &fakeAnalyzer{})

		body, contentType := multipartUpload(t, "image.png", "binary-ish")
		req := httptest.NewRequest("POST", "/scanFile", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "Unsupported file type" {
			t.Errorf("unexpected detail %q", detail)
		}
	})

	t.Run("PdfNotImplemented", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{}, &fakeAnalyzer{})

		body, contentType := multipartUpload(t, "scan.pdf", "%PDF-1.4")
		req := httptest.NewRequest("POST", "/scanFile", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestScanML(t *testing.T) {
	t.Run("SlicesAnalyzerSpans", func(t *testing.T) {
		text := "John moved to Boston."
		fake := &fakeAnalyzer{spans: []analyzer.Span{
			{EntityType: "PERSON", Start: 0, End: 4, Score: 0.95},
			{EntityType: "LOCATION", Start: 14, End: 20, Score: 0.9},
		}}
		db := &fakeStore{}
		srv := newTestServer(t, db, fake)

		body, contentType := multipartUpload(t, "notes.txt", text)
		req := httptest.NewRequest("POST", "/scanML", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		findings := decodeFindings(t, rec)
		if len(findings) != 2 {
			t.Fatalf("expected 2 findings, got %+v", findings)
		}
		if findings[0].Value != "John" || findings[0].Type != "PERSON" {
			t.Errorf("unexpected first finding: %+v", findings[0])
		}
		if findings[1].Value != "Boston" || findings[1].Type != "LOCATION" {
			t.Errorf("unexpected second finding: %+v", findings[1])
		}
	})

	t.Run("AnalyzerFailureIsBadGateway", func(t *testing.T) {
		fake := &fakeAnalyzer{err: fmt.Errorf("%w: connection refused", analyzer.ErrAnalyze)}
		srv := newTestServer(t, &fakeStore{}, fake)

		body, contentType := multipartUpload(t, "notes.txt", "anything")
		req := httptest.NewRequest("POST", "/scanML", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
	})
}

func TestRetrieveAll(t *testing.T) {
	db := &fakeStore{}
	srv := newTestServer(t, db, &fakeAnalyzer{})

	seed := []pii.Finding{
		{FileName: "a.txt", Type: pii.TypeAge, Value: "34 years old"},
		{FileName: "b.txt", Type: pii.TypePhone, Value: "555-123-4567"},
	}
	if _, err := db.InsertMany(context.Background(), seed); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/retrieveAll", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if findings := decodeFindings(t, rec); len(findings) != 2 {
		t.Errorf("expected 2 findings, got %+v", findings)
	}
}

func TestDelete(t *testing.T) {
	newSeeded := func(t *testing.T) (*fakeStore, *Server) {
		db := &fakeStore{}
		if _, err := db.InsertMany(context.Background(), []pii.Finding{
			{FileName: "a.txt", Type: pii.TypeAge, Value: "34 years old"},
		}); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
		return db, newTestServer(t, db, &fakeAnalyzer{})
	}

	t.Run("MissingKeysIsBadRequest", func(t *testing.T) {
		_, srv := newSeeded(t)

		req := httptest.NewRequest("DELETE", "/delete", strings.NewReader(`{"file_name":"a.txt"}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "file_name and pii_value are required." {
			t.Errorf("unexpected detail %q", detail)
		}
	})

	t.Run("UnknownMatchIsNotFound", func(t *testing.T) {
		_, srv := newSeeded(t)

		req := httptest.NewRequest("DELETE", "/delete",
			strings.NewReader(`{"file_name":"a.txt","pii_value":"nope"}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "Record not found." {
			t.Errorf("unexpected detail %q", detail)
		}
	})

	t.Run("DeletesExactMatch", func(t *testing.T) {
		db, srv := newSeeded(t)

		req := httptest.NewRequest("DELETE", "/delete",
			strings.NewReader(`{"file_name":"a.txt","pii_value":"34 years old"}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "Record deleted successfully." {
			t.Errorf("unexpected detail %q", detail)
		}
		if rows, _ := db.FindAll(context.Background(), 10); len(rows) != 0 {
			t.Errorf("row should be gone, got %+v", rows)
		}
	})
}

func TestDeleteAll(t *testing.T) {
	db := &fakeStore{}
	if _, err := db.InsertMany(context.Background(), []pii.Finding{
		{FileName: "a.txt", Type: pii.TypeAge, Value: "34 years old"},
		{FileName: "b.txt", Type: pii.TypePhone, Value: "555-123-4567"},
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	srv := newTestServer(t, db, &fakeAnalyzer{})

	req := httptest.NewRequest("DELETE", "/deleteAll", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Deleted 2 records successfully." {
		t.Errorf("unexpected detail %q", detail)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, &fakeAnalyzer{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health failed: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("unexpected health payload: %v", health)
	}
}
