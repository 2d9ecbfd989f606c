package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/failscope/internal/models"
)

// rawIncident is an incident as published, before normalization.
type rawIncident struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Year         int             `json:"year"`
	Category     string          `json:"category"`
	Cause        string          `json:"cause"`
	Severity     json.RawMessage `json:"severity"`
	Summary      string          `json:"summary"`
	Stage        string          `json:"stage"`
	Impact       []string        `json:"impact"`
	RootCause    string          `json:"root_cause"`
	Lessons      []string        `json:"lessons"`
	Patterns     []string        `json:"patterns"`
	Tags         []string        `json:"tags"`
	Sources      []models.Source `json:"sources"`
	EvidenceType string          `json:"evidence_type"`
	Companies    []string        `json:"companies"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// normalize converts r into a catalog incident. line is the zero-based position
// used to synthesize a missing ID.
func (r *rawIncident) normalize(line int, now time.Time) *models.Incident {
	id := r.ID
	if id == "" {
		id = fmt.Sprintf("entry-%d-%d", line, now.UnixNano())
	}
	companies := r.Companies
	if len(companies) == 0 {
		companies = ExtractCompanies(r.Title)
	}
	return &models.Incident{
		ID:           id,
		Title:        r.Title,
		Year:         r.Year,
		Category:     NormalizeCategory(r.Category),
		Cause:        r.Cause,
		Severity:     NormalizeSeverity(r.Severity),
		Summary:      r.Summary,
		Stage:        r.Stage,
		Impact:       nonNil(r.Impact),
		RootCause:    r.RootCause,
		Lessons:      nonNil(r.Lessons),
		Patterns:     nonNil(r.Patterns),
		Tags:         nonNil(r.Tags),
		Sources:      r.Sources,
		EvidenceType: r.EvidenceType,
		Companies:    nonNil(companies),
	}
}

// ParseNDJSON parses one incident per line. Blank lines are ignored; malformed
// lines are skipped and reported by their zero-based line numbers.
func ParseNDJSON(data []byte, now time.Time) ([]*models.Incident, []int) {
	incidents := make([]*models.Incident, 0)
	var skipped []int
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimSpace(data)))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 0; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r rawIncident
		if err := json.Unmarshal(text, &r); err != nil {
			skipped = append(skipped, line)
			continue
		}
		incidents = append(incidents, r.normalize(line, now))
	}
	return incidents, skipped
}

// ParseJSON parses a failures document: either a bare array of incidents or a
// {"total": n, "data": [...]} envelope. Malformed entries are skipped and reported
// by index.
func ParseJSON(data []byte, now time.Time) ([]*models.Incident, []int, error) {
	data = bytes.TrimSpace(data)
	var entries []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, nil, err
		}
	} else {
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, nil, err
		}
		entries = envelope.Data
	}

	incidents := make([]*models.Incident, 0, len(entries))
	var skipped []int
	for i, raw := range entries {
		var r rawIncident
		if err := json.Unmarshal(raw, &r); err != nil {
			skipped = append(skipped, i)
			continue
		}
		incidents = append(incidents, r.normalize(i, now))
	}
	return incidents, skipped, nil
}
