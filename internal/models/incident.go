package models

// Severity levels used across the catalog.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Source is a citation for an incident.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"kind"` // primary or secondary
}

// Severity is the normalized severity of an incident.
type Severity struct {
	Level     string  `json:"level"`
	Score     float64 `json:"score,omitempty"`
	Financial string  `json:"financial,omitempty"`
}

// Incident is a documented technology failure as served by the catalog.
type Incident struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Category     string   `json:"category"`
	Cause        string   `json:"cause"`
	Severity     Severity `json:"severity"`
	Summary      string   `json:"summary"`
	Stage        string   `json:"stage,omitempty"`
	Impact       []string `json:"impact"`
	RootCause    string   `json:"root_cause,omitempty"`
	Lessons      []string `json:"lessons"`
	Patterns     []string `json:"patterns"`
	Tags         []string `json:"tags"`
	Sources      []Source `json:"sources,omitempty"`
	EvidenceType string   `json:"evidence_type,omitempty"`
	Companies    []string `json:"companies"`
}

// Pattern is a recurring failure pattern from patterns.json.
type Pattern struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	CommonTags        []string `json:"common_tags"`
	RelatedCategories []string `json:"related_categories"`
	Examples          []string `json:"examples"`
	Playbooks         []string `json:"playbooks,omitempty"`
}

// FreeTag is a tag outside the fixed tag types.
type FreeTag struct {
	Tag         string `json:"tag"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// TagTaxonomy is the shape of tags.json.
type TagTaxonomy struct {
	Version     string `json:"version"`
	LastUpdated string `json:"last_updated"`
	Description string `json:"description"`
	TagTypes    struct {
		Category map[string]string `json:"category"`
		Cause    map[string]string `json:"cause"`
		Stage    map[string]string `json:"stage"`
		Impact   map[string]string `json:"impact"`
	} `json:"tag_types"`
	FreeTags []FreeTag `json:"free_tags"`
}

// IncidentList is a page of incidents.
type IncidentList struct {
	Total int         `json:"total"`
	Data  []*Incident `json:"data"`
}
