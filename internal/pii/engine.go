package pii

import (
	"strconv"

	"github.com/raaihank/docsentry/internal/logger"
	"go.uber.org/zap"
)

// Engine applies an ordered, immutable rule catalogue to plain text.
// It holds no mutable state after construction and is safe for
// concurrent use.
type Engine struct {
	rules  []Rule
	logger *logger.Logger
}

// NewEngine creates a rule engine over the given catalogue. The slice is
// copied; the catalogue cannot change after construction.
func NewEngine(rules []Rule, log *logger.Logger) *Engine {
	owned := make([]Rule, len(rules))
	copy(owned, rules)

	log.Info("Rule engine initialized", zap.Int("rules", len(owned)))

	return &Engine{
		rules:  owned,
		logger: log,
	}
}

// RuleCount returns the number of rules in the catalogue.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Scan finds every rule match in text and returns one Finding per match.
// Findings accumulate in rule-major order: all matches of the first rule
// in position order, then all matches of the second, and so on. Matches
// are non-overlapping within a rule; no deduplication happens across
// rules, so two rules may both report the same span. Scan never fails:
// text with no matches yields an empty slice.
func (e *Engine) Scan(text, fileName string) []Finding {
	findings := make([]Finding, 0)
	seq := 0

	for _, rule := range e.rules {
		locs := rule.Pattern.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			if rule.Valid != nil && !rule.Valid(text, loc[0], loc[1]) {
				continue
			}
			seq++
			findings = append(findings, Finding{
				ID:       strconv.Itoa(seq),
				FileName: fileName,
				Type:     rule.Type,
				Value:    text[loc[0]:loc[1]],
			})
		}
	}

	e.logger.Debug("Scan completed",
		zap.String("file_name", fileName),
		zap.Int("text_length", len(text)),
		zap.Int("findings", len(findings)),
	)

	return findings
}
