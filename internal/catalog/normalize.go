package catalog

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/hyperjump/failscope/internal/models"
)

var knownCategories = map[string]struct{}{
	"ai-slop":  {},
	"outage":   {},
	"security": {},
	"startup":  {},
	"product":  {},
	"decision": {},
}

// Legacy and variant category names found in older exports.
var categoryAliases = map[string]string{
	"ai":              "ai-slop",
	"aislop":          "ai-slop",
	"ai-failure":      "ai-slop",
	"outages":         "outage",
	"downtime":        "outage",
	"breach":          "security",
	"security-breach": "security",
	"startups":        "startup",
	"products":        "product",
	"product-failure": "product",
	"decisions":       "decision",
	"bad-decision":    "decision",
}

// NormalizeCategory lower-cases c, maps underscores and spaces to hyphens, and
// resolves legacy aliases. Unknown categories are returned in normalized form.
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.NewReplacer("_", "-", " ", "-").Replace(c)
	if _, ok := knownCategories[c]; ok {
		return c
	}
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return c
}

var severityLevels = map[string]struct{}{
	models.SeverityCritical: {},
	models.SeverityHigh:     {},
	models.SeverityMedium:   {},
	models.SeverityLow:      {},
}

// NormalizeSeverity accepts either a bare level string or a severity object and
// returns the object form. Missing or unknown levels become medium.
func NormalizeSeverity(raw json.RawMessage) models.Severity {
	var sev models.Severity
	if len(raw) > 0 {
		var level string
		if err := json.Unmarshal(raw, &level); err == nil {
			sev.Level = level
		} else {
			_ = json.Unmarshal(raw, &sev)
		}
	}
	sev.Level = NormalizeSeverityLevel(sev.Level)
	return sev
}

// NormalizeSeverityLevel lower-cases level, defaulting unknown values to medium.
func NormalizeSeverityLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if _, ok := severityLevels[level]; ok {
		return level
	}
	return models.SeverityMedium
}

var companySeparators = []string{" — ", " - ", ": ", " – "}

// ExtractCompanies guesses the affected company from an incident title such as
// "Knight Capital — Trading glitch". Without a separator, a capitalized first word
// longer than two characters is used.
func ExtractCompanies(title string) []string {
	if title == "" {
		return []string{}
	}
	for _, sep := range companySeparators {
		if i := strings.Index(title, sep); i >= 0 {
			if name := strings.TrimSpace(title[:i]); name != "" {
				return []string{name}
			}
			return []string{}
		}
	}
	first, _, _ := strings.Cut(title, " ")
	r := []rune(first)
	if len(r) > 2 && unicode.IsUpper(r[0]) {
		return []string{first}
	}
	return []string{}
}
