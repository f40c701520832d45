package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/analyzer"
	"github.com/raaihank/docsentry/internal/cache"
	"github.com/raaihank/docsentry/internal/detect"
	"github.com/raaihank/docsentry/internal/extract"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/pii"
	"github.com/raaihank/docsentry/internal/websocket"
)

// detailResponse mirrors the service's error and status payload shape.
type detailResponse struct {
	Detail string `json:"detail"`
}

// deleteRequest is the exact-match deletion key.
type deleteRequest struct {
	FileName string `json:"file_name"`
	PiiValue string `json:"pii_value"`
}

// handleScanFile scans an upload with the pattern-rule engine
func (s *Server) handleScanFile(w http.ResponseWriter, r *http.Request) {
	s.handleScan(w, r, detect.ModeRules)
}

// handleScanML scans an upload with the external statistical engine
func (s *Server) handleScanML(w http.ResponseWriter, r *http.Request) {
	s.handleScan(w, r, detect.ModeStatistical)
}

// handleScan runs the full pipeline for one upload: extract, detect,
// persist, respond with the stored findings.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, mode detect.Mode) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)
	start := time.Now()

	// Bound the multipart body a little above the document cap so the
	// orchestrator's limit stays the one that decides.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Detection.MaxInputBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read upload", zap.Error(err))
		writeDetail(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	fileName := header.Filename
	log.Info("Received file for scanning",
		zap.String("file_name", fileName),
		zap.String("mode", string(mode)),
		zap.Int("size", len(data)),
	)

	var cacheKey string
	if s.scanCache != nil {
		cacheKey = cache.Key(s.config.Cache.KeyPrefix, string(mode), fileName, data)
		if cached, ok, err := s.scanCache.Get(r.Context(), cacheKey); err == nil && ok {
			s.broadcastScan(requestID, fileName, mode, cached, true, start)
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	findings, err := s.detector.Detect(r.Context(), fileName, data, mode)
	if err != nil {
		s.writeScanError(w, log, fileName, err)
		return
	}

	if len(findings) == 0 {
		log.Info("No PII found", zap.String("file_name", fileName))
		s.broadcastScan(requestID, fileName, mode, findings, false, start)
		writeJSON(w, http.StatusOK, []pii.Finding{})
		return
	}

	stored, err := s.findings.InsertMany(r.Context(), findings)
	if err != nil {
		log.Error("Failed to persist findings", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "failed to persist findings")
		return
	}

	if s.scanCache != nil {
		if err := s.scanCache.Set(r.Context(), cacheKey, stored); err != nil {
			log.Warn("Failed to cache scan result", zap.Error(err))
		}
	}

	log.Info("PII found, saved to store",
		zap.String("file_name", fileName),
		zap.Int("findings", len(stored)),
	)

	s.broadcastScan(requestID, fileName, mode, stored, false, start)
	writeJSON(w, http.StatusOK, stored)
}

// writeScanError maps pipeline failures onto the HTTP surface. Unsupported
// and not-implemented formats stay distinct internally but share the 400
// category callers see.
func (s *Server) writeScanError(w http.ResponseWriter, log *logger.Logger, fileName string, err error) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		writeDetail(w, http.StatusBadRequest, "Unsupported file type")
	case errors.Is(err, extract.ErrNotImplemented):
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Extraction not implemented for %q", fileName))
	case errors.Is(err, extract.ErrInvalidEncoding):
		writeDetail(w, http.StatusBadRequest, "File is not valid UTF-8 text")
	case errors.Is(err, detect.ErrInputTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, "File exceeds the size limit")
	case errors.Is(err, analyzer.ErrAnalyze):
		log.Error("Analyzer failure", zap.String("file_name", fileName), zap.Error(err))
		writeDetail(w, http.StatusBadGateway, "Entity analyzer failed to process the text")
	default:
		log.Error("Scan failed", zap.String("file_name", fileName), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Scan failed")
	}
}

// handleRetrieveAll returns persisted findings up to the configured cap
func (s *Server) handleRetrieveAll(w http.ResponseWriter, r *http.Request) {
	findings, err := s.findings.FindAll(r.Context(), s.config.Server.RetrieveCap)
	if err != nil {
		s.logger.Error("Failed to fetch findings", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Error fetching PII data")
		return
	}

	writeJSON(w, http.StatusOK, findings)
}

// handleDelete removes one finding by exact (file_name, pii_value) match
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.FileName == "" || req.PiiValue == "" {
		writeDetail(w, http.StatusBadRequest, "file_name and pii_value are required.")
		return
	}

	s.logger.Info("Received delete request", zap.String("file_name", req.FileName))

	deleted, err := s.findings.DeleteByMatch(r.Context(), req.FileName, req.PiiValue)
	if err != nil {
		s.logger.Error("Failed to delete finding", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Error deleting record")
		return
	}

	if deleted == 0 {
		writeDetail(w, http.StatusNotFound, "Record not found.")
		return
	}

	writeDetail(w, http.StatusOK, "Record deleted successfully.")
}

// handleDeleteAll wipes the findings collection
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.findings.DeleteAll(r.Context())
	if err != nil {
		s.logger.Error("Failed to delete all findings", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Error deleting records")
		return
	}

	s.logger.Info("Deleted all findings", zap.Int64("count", deleted))
	writeDetail(w, http.StatusOK, fmt.Sprintf("Deleted %d records successfully.", deleted))
}

// broadcastScan publishes a scan summary to dashboard clients. Finding
// values never leave through the event stream.
func (s *Server) broadcastScan(requestID, fileName string, mode detect.Mode, findings []pii.Finding, cacheHit bool, start time.Time) {
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, f := range findings {
		if !seen[string(f.Type)] {
			seen[string(f.Type)] = true
			categories = append(categories, string(f.Type))
		}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeScanResult,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.ScanResultEvent{
			RequestID:     requestID,
			FileName:      fileName,
			Mode:          string(mode),
			TotalFindings: len(findings),
			Categories:    categories,
			CacheHit:      cacheHit,
			ProcessingMS:  float64(time.Since(start).Nanoseconds()) / 1e6,
		},
	})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes a detail-message response with the given status code
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}
