package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/pii"
)

// FindingSource is the paged read surface the exporter walks.
type FindingSource interface {
	FindPage(ctx context.Context, limit, offset int64) ([]pii.Finding, error)
}

// rowWriter writes one record to the output file in a specific format.
type rowWriter interface {
	Write(record *Record) error
	Close() error
}

// Exporter walks the findings table in pages and writes dataset files.
type Exporter struct {
	source FindingSource
	config *Config
	logger *zap.Logger
}

// NewExporter creates a new export pipeline
func NewExporter(source FindingSource, config *Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		source: source,
		config: config,
		logger: logger,
	}
}

// ExportFile exports all persisted findings to filePath. The output format
// is chosen by the file extension (CSV, Parquet, or JSON lines).
func (e *Exporter) ExportFile(ctx context.Context, filePath string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	format := DetectFileFormat(filePath)
	e.logger.Info("Starting export",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int64("batch_size", e.config.BatchSize))

	start := time.Now()
	result := &Result{}

	file, err := os.Create(filePath)
	if err != nil {
		return result, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer, err := newRowWriter(format, file)
	if err != nil {
		return result, err
	}

	if err := e.exportPages(ctx, writer, result); err != nil {
		writer.Close()
		return result, err
	}

	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("failed to finalize output file: %w", err)
	}

	result.Duration = time.Since(start)

	e.logger.Info("Export completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("written", result.Written),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("database_time", result.DatabaseTime),
		zap.Duration("write_time", result.WriteTime))

	return result, nil
}

// exportPages reads pages from the source until exhausted and writes each
// row through the format writer.
func (e *Exporter) exportPages(ctx context.Context, writer rowWriter, result *Result) error {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dbStart := time.Now()
		findings, err := e.source.FindPage(ctx, e.config.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to read findings page: %w", err)
		}
		result.DatabaseTime += time.Since(dbStart)

		if len(findings) == 0 {
			break
		}

		writeStart := time.Now()
		for _, finding := range findings {
			record := &Record{
				ID:       finding.ID,
				FileName: finding.FileName,
				PiiType:  string(finding.Type),
				PiiValue: finding.Value,
			}
			if err := writer.Write(record); err != nil {
				e.logger.Warn("Failed to write record", zap.String("id", record.ID), zap.Error(err))
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Written++
		}
		result.WriteTime += time.Since(writeStart)
		result.TotalRecords += int64(len(findings))

		if e.config.ProgressReport > 0 && result.TotalRecords%e.config.ProgressReport == 0 {
			e.logger.Info("Export progress",
				zap.Int64("records_read", result.TotalRecords),
				zap.Int64("records_written", result.Written))
		}

		offset += int64(len(findings))
	}

	return nil
}

// newRowWriter builds the format-specific writer for the output file.
func newRowWriter(format FileFormat, file *os.File) (rowWriter, error) {
	switch format {
	case FormatCSV:
		return newCSVWriter(file)
	case FormatParquet:
		return &parquetRowWriter{writer: parquet.NewWriter(file)}, nil
	case FormatJSON:
		return &jsonRowWriter{encoder: json.NewEncoder(file)}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

type csvRowWriter struct {
	writer *csv.Writer
}

func newCSVWriter(file *os.File) (*csvRowWriter, error) {
	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"id", "file_name", "pii_type", "pii_value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return &csvRowWriter{writer: writer}, nil
}

func (w *csvRowWriter) Write(record *Record) error {
	return w.writer.Write([]string{record.ID, record.FileName, record.PiiType, record.PiiValue})
}

func (w *csvRowWriter) Close() error {
	w.writer.Flush()
	return w.writer.Error()
}

type parquetRowWriter struct {
	writer *parquet.Writer
}

func (w *parquetRowWriter) Write(record *Record) error {
	return w.writer.Write(record)
}

func (w *parquetRowWriter) Close() error {
	return w.writer.Close()
}

// jsonRowWriter writes one JSON object per line.
type jsonRowWriter struct {
	encoder *json.Encoder
}

func (w *jsonRowWriter) Write(record *Record) error {
	return w.encoder.Encode(record)
}

func (w *jsonRowWriter) Close() error {
	return nil
}
