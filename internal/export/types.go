package export

import (
	"time"
)

// Record is the flat row shape written to export files.
type Record struct {
	ID       string `csv:"id" parquet:"id" json:"id"`
	FileName string `csv:"file_name" parquet:"file_name" json:"file_name"`
	PiiType  string `csv:"pii_type" parquet:"pii_type" json:"pii_type"`
	PiiValue string `csv:"pii_value" parquet:"pii_value" json:"pii_value"`
}

// Result summarizes one export run.
type Result struct {
	TotalRecords int64         `json:"total_records"`
	Written      int64         `json:"written"`
	Duration     time.Duration `json:"duration"`
	DatabaseTime time.Duration `json:"database_time"`
	WriteTime    time.Duration `json:"write_time"`
	Errors       []string      `json:"errors,omitempty"`
}

// Config contains export pipeline configuration
type Config struct {
	BatchSize      int64 `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	ProgressReport int64 `yaml:"progress_report" mapstructure:"progress_report"` // 1000
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case len(filename) >= 4 && filename[len(filename)-4:] == ".csv":
		return FormatCSV
	case len(filename) >= 8 && filename[len(filename)-8:] == ".parquet":
		return FormatParquet
	case len(filename) >= 5 && filename[len(filename)-5:] == ".json":
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}
