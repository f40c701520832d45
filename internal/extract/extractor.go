package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/raaihank/docsentry/internal/logger"
	"go.uber.org/zap"
)

// Extraction failure categories. UnsupportedType means the suffix is not
// recognized at all; NotImplemented means the format is recognized but no
// extractor exists for it yet. Both are deterministic for a given input
// and never retried.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotImplemented  = errors.New("extraction not implemented")
	ErrInvalidEncoding = errors.New("invalid text encoding")
)

// Extractor converts a named byte payload into plain text. Dispatch is by
// filename suffix only, case-sensitive. Either the full text is returned
// or an error; there is no partial or streaming extraction.
type Extractor struct {
	logger *logger.Logger
}

// New creates a new format extractor
func New(log *logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Extract produces the plain text of data according to fileName's suffix.
func (e *Extractor) Extract(fileName string, data []byte) (string, error) {
	switch {
	case strings.HasSuffix(fileName, ".txt"):
		return e.extractText(fileName, data)
	case strings.HasSuffix(fileName, ".csv"):
		return e.extractCSV(fileName, data)
	case strings.HasSuffix(fileName, ".pdf"):
		return "", fmt.Errorf("pdf extraction for %q: %w", fileName, ErrNotImplemented)
	case strings.HasSuffix(fileName, ".docx"):
		return "", fmt.Errorf("docx extraction for %q: %w", fileName, ErrNotImplemented)
	default:
		return "", fmt.Errorf("file %q: %w", fileName, ErrUnsupportedType)
	}
}

// extractText decodes data as UTF-8. Invalid byte sequences fail the whole
// extraction rather than being replaced, so downstream match offsets stay
// aligned with the caller's bytes.
func (e *Extractor) extractText(fileName string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %q is not valid UTF-8: %w", fileName, ErrInvalidEncoding)
	}
	return string(data), nil
}

// extractCSV flattens a comma-delimited payload into one text blob: fields
// of a row joined by a single space, rows joined by newlines. Row order is
// preserved; column structure is discarded.
func (e *Extractor) extractCSV(fileName string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %q is not valid UTF-8: %w", fileName, ErrInvalidEncoding)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	// Rows in uploaded documents are frequently ragged; only the cell
	// text matters here, not the column count.
	reader.FieldsPerRecord = -1

	var rows []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse csv %q: %w", fileName, err)
		}
		rows = append(rows, strings.Join(record, " "))
	}

	text := strings.Join(rows, "\n")

	e.logger.Debug("CSV flattened",
		zap.String("file_name", fileName),
		zap.Int("rows", len(rows)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}
