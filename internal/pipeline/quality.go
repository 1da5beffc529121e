package pipeline

import (
	"regexp"
	"strings"
)

// verdictRe matches the verdict line the qa prompt asks for.
var verdictRe = regexp.MustCompile(`(?im)^\s*verdict\s*[:\-]\s*(pass|fail)\b`)

// ParseQuality extracts the pass/fail gate from qa stage output.
// Output without a recognizable verdict fails the gate: the pipeline keeps
// looping rather than shipping unreviewed work.
func ParseQuality(content string) QualitySignal {
	match := verdictRe.FindStringSubmatch(content)
	if match == nil {
		return QualitySignal{
			Passed:  false,
			Summary: "no verdict found in review output",
		}
	}

	passed := strings.EqualFold(match[1], "pass")
	return QualitySignal{
		Passed:  passed,
		Summary: summarize(content),
	}
}

// summarize returns the first non-empty, non-verdict line of the review.
func summarize(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || verdictRe.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}
