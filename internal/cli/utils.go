// Package cli provides output writers for the failscope command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/failscope/internal/models"
	"github.com/hyperjump/failscope/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per item.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for i, r := range response.Results {
			fmt.Fprintf(w, "%2d  %.4f  %-6s  %s  %s/%s\n",
				i+1, r.SimilarityScore, models.ScoreBand(r.SimilarityScore), r.ID, r.Category, r.Severity)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (vector: %s)\n\n",
		response.Total, response.Query, response.QueryTime, response.VectorSource)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
}

func writeOneResult(w io.Writer, rank int, result *models.SimilarityResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Similarity: %.4f (%s)\n",
		rank, result.SimilarityScore, models.ScoreBand(result.SimilarityScore))
	fmt.Fprintf(w, "ID: %s\n", result.ID)
	fmt.Fprintf(w, "Category: %s | Severity: %s\n", result.Category, result.Severity)
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(result.Tags, ", "))
	}
	if inc := result.Incident; inc != nil {
		fmt.Fprintf(w, "Title: %s (%d)\n", inc.Title, inc.Year)
		if inc.Summary != "" {
			fmt.Fprintf(w, "\n%s\n", TruncateWords(inc.Summary, 40))
		}
	}
	fmt.Fprintln(w)
}

// WriteNoEmbedding explains an unresolvable query and lists close known terms.
func WriteNoEmbedding(w io.Writer, query string, suggestions []string) {
	fmt.Fprintf(w, "No precomputed vector for %q.\n", query)
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
	fmt.Fprintln(w, "Run \"failscope terms\" to list known terms, or pass --provider with an API key to embed free text.")
}

// WriteIncident writes a single incident.
func WriteIncident(w io.Writer, inc *models.Incident, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, inc)
	case OutputCompact:
		writeIncidentLine(w, inc)
		return nil
	}
	fmt.Fprintf(w, "%s\n", inc.Title)
	fmt.Fprintf(w, "ID: %s | Year: %d | Category: %s | Severity: %s\n", inc.ID, inc.Year, inc.Category, inc.Severity.Level)
	if len(inc.Companies) > 0 {
		fmt.Fprintf(w, "Companies: %s\n", strings.Join(inc.Companies, ", "))
	}
	if inc.Cause != "" {
		fmt.Fprintf(w, "Cause: %s\n", inc.Cause)
	}
	if inc.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", inc.Summary)
	}
	if inc.RootCause != "" {
		fmt.Fprintf(w, "\nRoot cause: %s\n", inc.RootCause)
	}
	writeBullets(w, "Impact", inc.Impact)
	writeBullets(w, "Lessons", inc.Lessons)
	if len(inc.Tags) > 0 {
		fmt.Fprintf(w, "\nTags: %s\n", strings.Join(inc.Tags, ", "))
	}
	for _, src := range inc.Sources {
		fmt.Fprintf(w, "Source: %s <%s>\n", src.Title, src.URL)
	}
	return nil
}

// WriteIncidentList writes a page of incidents.
func WriteIncidentList(w io.Writer, list *models.IncidentList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	for _, inc := range list.Data {
		writeIncidentLine(w, inc)
	}
	if format == OutputText {
		fmt.Fprintf(w, "\n%d of %d incidents\n", len(list.Data), list.Total)
	}
	return nil
}

func writeIncidentLine(w io.Writer, inc *models.Incident) {
	fmt.Fprintf(w, "%d  %-8s  %-8s  %s  %s\n", inc.Year, inc.Severity.Level, inc.Category, inc.ID, utils.Truncate(inc.Title, 60))
}

func writeBullets(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", heading)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
