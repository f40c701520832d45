package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/docsentry/internal/logger"
	"go.uber.org/zap"
)

// ErrAnalyze wraps any failure of the external entity-recognition engine.
// The engine is opaque: a single attempt is made, never retried.
var ErrAnalyze = errors.New("analyzer request failed")

// Span is one typed region of text reported by the external engine.
// Offsets are byte positions into the submitted text, end exclusive.
type Span struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Config contains analyzer client configuration
type Config struct {
	BaseURL  string
	Language string
	Timeout  time.Duration
	MinScore float64
}

// Client calls a Presidio-style entity-recognition service over HTTP.
type Client struct {
	baseURL    string
	language   string
	minScore   float64
	httpClient *http.Client
	logger     *logger.Logger
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// NewClient creates a new analyzer client
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		language:   language,
		minScore:   cfg.MinScore,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Language returns the language code submitted with every request.
func (c *Client) Language() string {
	return c.language
}

// Analyze submits text to the external engine and returns its typed spans.
// Spans scoring below the configured minimum are dropped. An empty result
// is valid and means no entities were recognized.
func (c *Client) Analyze(ctx context.Context, text string) ([]Span, error) {
	payload, err := json.Marshal(analyzeRequest{
		Text:     text,
		Language: c.language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyze, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyze, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyze, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrAnalyze, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrAnalyze, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var spans []Span
	if err := json.Unmarshal(body, &spans); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrAnalyze, err)
	}

	kept := spans[:0]
	for _, s := range spans {
		if s.Score >= c.minScore {
			kept = append(kept, s)
		}
	}

	c.logger.Debug("Analyzer call completed",
		zap.Int("spans", len(kept)),
		zap.Int("dropped_low_score", len(spans)-len(kept)),
		zap.Duration("duration", time.Since(start)),
	)

	return kept, nil
}
