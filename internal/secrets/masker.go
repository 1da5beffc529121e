package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RedactionString replaces each detected secret.
const RedactionString = "[REDACTED]"

// Finding records one detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// Result holds the outcome of a masking pass.
type Result struct {
	// Content is the masked text.
	Content string

	// Findings lists every detected secret, grouped by rule.
	Findings []Finding
}

// Masker detects and redacts secrets from content.
type Masker struct {
	rules []compiledRule
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// span tracks a region to redact.
type span struct {
	start, end int
}

// NewMasker compiles the given rules. Nil rules uses DefaultRules.
func NewMasker(rules []Rule) (*Masker, error) {
	if rules == nil {
		rules = DefaultRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		p, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, pattern: p})
	}
	return &Masker{rules: compiled}, nil
}

// MustMasker compiles the default rules, panicking on error.
// The default rule set is covered by tests; a panic here is a programming bug.
func MustMasker() *Masker {
	m, err := NewMasker(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// Mask redacts secrets from the content.
func (m *Masker) Mask(content string) *Result {
	result := &Result{Content: content}

	var spans []span
	for _, rule := range m.rules {
		for _, match := range rule.pattern.FindAllStringIndex(content, -1) {
			line := strings.Count(content[:match[0]], "\n") + 1
			result.Findings = append(result.Findings, Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Line:        line,
			})
			spans = append(spans, span{start: match[0], end: match[1]})
		}
	}

	if len(spans) == 0 {
		return result
	}

	merged := mergeSpans(spans)

	// Replace right-to-left so earlier offsets stay valid.
	masked := content
	for i := len(merged) - 1; i >= 0; i-- {
		s := merged[i]
		masked = masked[:s.start] + RedactionString + masked[s.end:]
	}
	result.Content = masked
	return result
}

// mergeSpans merges overlapping or adjacent spans, returning them sorted
// by start position ascending.
func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := []span{spans[0]}
	for _, curr := range spans[1:] {
		last := &merged[len(merged)-1]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
		} else {
			merged = append(merged, curr)
		}
	}
	return merged
}
