package detect

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/raaihank/docsentry/internal/analyzer"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/pii"
	"go.uber.org/zap"
)

// Mode selects which detector scans the extracted text.
type Mode string

const (
	// ModeRules runs the deterministic pattern-rule engine.
	ModeRules Mode = "rules"
	// ModeStatistical delegates to the external entity-recognition engine.
	ModeStatistical Mode = "statistical"
)

var (
	ErrUnknownMode   = errors.New("unknown detection mode")
	ErrInputTooLarge = errors.New("input exceeds size limit")
)

// TextExtractor converts a named byte payload into plain text.
type TextExtractor interface {
	Extract(fileName string, data []byte) (string, error)
}

// RuleScanner is the deterministic pattern-rule detector.
type RuleScanner interface {
	Scan(text, fileName string) []pii.Finding
}

// SpanAnalyzer is the external statistical engine, treated as a pure
// function from text to typed spans.
type SpanAnalyzer interface {
	Analyze(ctx context.Context, text string) ([]analyzer.Span, error)
}

// Config contains orchestrator configuration
type Config struct {
	// MaxInputBytes caps the payload size accepted for extraction.
	MaxInputBytes int64
}

// Orchestrator composes extraction with one of the two detectors and
// normalizes their output into findings. It holds no mutable state and
// is safe for concurrent use.
type Orchestrator struct {
	extractor TextExtractor
	engine    RuleScanner
	analyzer  SpanAnalyzer
	maxInput  int64
	logger    *logger.Logger
}

// New creates a new detection orchestrator
func New(extractor TextExtractor, engine RuleScanner, spanAnalyzer SpanAnalyzer, cfg Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		engine:    engine,
		analyzer:  spanAnalyzer,
		maxInput:  cfg.MaxInputBytes,
		logger:    log,
	}
}

// Detect extracts data according to fileName's suffix and scans the text
// with the detector selected by mode. Extraction and detector errors are
// propagated untouched; an empty finding slice is a valid result meaning
// nothing was detected.
func (o *Orchestrator) Detect(ctx context.Context, fileName string, data []byte, mode Mode) ([]pii.Finding, error) {
	if o.maxInput > 0 && int64(len(data)) > o.maxInput {
		return nil, fmt.Errorf("file %q is %d bytes: %w", fileName, len(data), ErrInputTooLarge)
	}

	text, err := o.extractor.Extract(fileName, data)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeRules:
		return o.engine.Scan(text, fileName), nil
	case ModeStatistical:
		return o.detectStatistical(ctx, fileName, text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// detectStatistical converts the external engine's spans into findings by
// slicing the extracted text, so values are always verbatim substrings.
func (o *Orchestrator) detectStatistical(ctx context.Context, fileName, text string) ([]pii.Finding, error) {
	spans, err := o.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	findings := make([]pii.Finding, 0, len(spans))
	seq := 0
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			o.logger.Warn("Analyzer span out of bounds, skipping",
				zap.String("file_name", fileName),
				zap.String("entity_type", s.EntityType),
				zap.Int("start", s.Start),
				zap.Int("end", s.End),
				zap.Int("text_length", len(text)),
			)
			continue
		}
		seq++
		findings = append(findings, pii.Finding{
			ID:       strconv.Itoa(seq),
			FileName: fileName,
			Type:     pii.EntityType(s.EntityType),
			Value:    text[s.Start:s.End],
		})
	}

	return findings, nil
}
