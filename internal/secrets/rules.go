// Package secrets masks credential-shaped text before it is persisted or
// committed. Stage output routinely quotes configuration and shell snippets;
// anything matching a known secret shape is replaced with a redaction marker
// so it never lands in an artifact file or a git checkpoint.
package secrets

// Rule describes one secret pattern.
type Rule struct {
	// ID identifies the rule in findings.
	ID string

	// Description is a human-readable summary.
	Description string

	// Pattern is the regular expression matching the secret.
	Pattern string
}

// DefaultRules returns the default set of secret detection rules.
// Covers the vendors draftd itself talks to plus common credential shapes.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "openai-api-key",
			Description: "OpenAI API Key",
			Pattern:     `sk-(?:proj-)?[A-Za-z0-9_-]{20,}`,
		},
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API Key",
			Pattern:     `sk-ant-[A-Za-z0-9_-]{20,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API Key",
			Pattern:     `AIza[A-Za-z0-9_-]{35}`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
		},
		{
			ID:          "github-token",
			Description: "GitHub Token",
			Pattern:     `(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,}`,
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API Key Assignment",
			Pattern:     `(?i)(?:api[_-]?key|apikey|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
		},
		{
			ID:          "generic-secret",
			Description: "Generic Secret Assignment",
			Pattern:     `(?i)(?:secret|password|passwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer Token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9_\-.=]{20,}`,
		},
		{
			ID:          "private-key",
			Description: "Private Key Block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
	}
}
