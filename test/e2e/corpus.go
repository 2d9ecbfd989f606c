// Package e2e provides end-to-end tests with a generated incident corpus and published artifacts.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/failscope/internal/embedding"
	"github.com/hyperjump/failscope/internal/models"
)

// E2EIncident is an incident in the E2E corpus plus the query term that describes it.
type E2EIncident struct {
	ID       string
	Title    string
	Year     int
	Category string
	Severity string
	Tags     []string
	Summary  string
	Term     string
}

// QueryTestCase defines a query and the incident that must rank first for it.
type QueryTestCase struct {
	Query       string
	ExpectedID  string
	Description string
}

// Corpus holds incidents and query test cases for E2E tests.
type Corpus struct {
	Incidents    []E2EIncident
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

var topics = []struct {
	title    string
	category string
	severity string
	tags     []string
	term     string
}{
	{"Knight Capital — Trading glitch", "decision", "critical", []string{"deploy", "finance"}, "trading glitch dead code"},
	{"Dyn — DNS outage", "outage", "high", []string{"dns", "ddos"}, "dns outage ddos"},
	{"AWS — S3 outage", "outage", "critical", []string{"cloud", "typo"}, "s3 outage typo"},
	{"Equifax — Data breach", "security", "critical", []string{"breach", "patching"}, "unpatched struts breach"},
	{"GitLab — Database deletion", "outage", "high", []string{"database", "backup"}, "database deletion backups"},
	{"Cloudflare — Regex outage", "outage", "high", []string{"regex", "waf"}, "regex cpu exhaustion"},
	{"Therac-25 — Radiation overdose", "safety", "critical", []string{"race-condition", "medical"}, "radiation overdose race condition"},
	{"Ariane 5 — Overflow", "safety", "critical", []string{"overflow", "aerospace"}, "integer overflow rocket"},
	{"Mars Climate Orbiter — Unit mismatch", "decision", "high", []string{"units", "aerospace"}, "unit mismatch metric imperial"},
	{"Boeing — MCAS", "safety", "critical", []string{"sensor", "aerospace"}, "single sensor automation"},
	{"CrowdStrike — Falcon update", "outage", "critical", []string{"deploy", "kernel"}, "faulty kernel driver update"},
	{"Facebook — BGP outage", "outage", "critical", []string{"bgp", "network"}, "bgp route withdrawal"},
	{"Fastly — CDN outage", "outage", "high", []string{"cdn", "config"}, "cdn config bug"},
	{"SolarWinds — Supply chain", "security", "critical", []string{"supply-chain", "breach"}, "supply chain build compromise"},
	{"Log4Shell — RCE", "security", "critical", []string{"rce", "logging"}, "logging library remote code execution"},
	{"Heartbleed — Memory leak", "security", "high", []string{"tls", "openssl"}, "openssl bounds check"},
	{"Healthcare.gov — Launch failure", "decision", "high", []string{"launch", "scale"}, "government site launch load"},
	{"TSB — Migration failure", "outage", "high", []string{"migration", "banking"}, "bank platform migration"},
	{"Zillow — iBuying model", "ai", "high", []string{"ml", "pricing"}, "pricing model overfit"},
	{"Microsoft Tay — Chatbot", "ai", "medium", []string{"ml", "abuse"}, "chatbot poisoned by users"},
	{"Amazon — Biased hiring model", "ai", "medium", []string{"ml", "bias"}, "biased resume screening"},
	{"Slack — Cascading outage", "outage", "medium", []string{"scaling", "cache"}, "cold cache thundering herd"},
	{"Roblox — Consul outage", "outage", "high", []string{"consul", "streaming"}, "service discovery contention"},
	{"Atlassian — Site deletion", "outage", "high", []string{"script", "deletion"}, "maintenance script deleted sites"},
	{"Google — OAuth outage", "outage", "medium", []string{"quota", "auth"}, "auth quota misconfiguration"},
	{"Toyota — Unintended acceleration", "safety", "critical", []string{"embedded", "automotive"}, "stack overflow throttle"},
	{"Y2K — Date rollover", "decision", "low", []string{"dates"}, "two digit year"},
	{"Patriot Missile — Clock drift", "safety", "critical", []string{"floating-point", "defense"}, "clock drift rounding"},
	{"Theranos — Fraud", "decision", "critical", []string{"fraud", "medical"}, "fraudulent blood testing"},
	{"Quibi — Shutdown", "decision", "medium", []string{"product-market-fit"}, "product market fit failure"},
	{"Juicero — Overengineering", "decision", "low", []string{"hardware"}, "overengineered juicer"},
	{"Uber — Self-driving fatality", "ai", "critical", []string{"autonomy", "sensor"}, "pedestrian detection failure"},
	{"Capital One — Cloud breach", "security", "high", []string{"ssrf", "cloud"}, "ssrf metadata credentials"},
	{"MOVEit — Mass exploitation", "security", "critical", []string{"sql-injection", "breach"}, "file transfer sql injection"},
	{"Colonial Pipeline — Ransomware", "security", "critical", []string{"ransomware", "vpn"}, "ransomware legacy vpn"},
	{"Southwest — Scheduling meltdown", "outage", "critical", []string{"legacy", "scheduling"}, "crew scheduling legacy system"},
	{"Optus — Network outage", "outage", "high", []string{"routing", "network"}, "router route overload"},
	{"Rogers — Nationwide outage", "outage", "critical", []string{"maintenance", "network"}, "core network maintenance change"},
	{"Robinhood — Leap day outage", "outage", "high", []string{"dates", "dns"}, "leap day dns overload"},
	{"Cloudbleed — Parser leak", "security", "high", []string{"parser", "cdn"}, "html parser buffer overrun"},
}

// BuildCorpus returns a corpus of n incidents (repeating topics with new IDs when n exceeds them)
// and one query test case per distinct topic.
func BuildCorpus(n int) *Corpus {
	incidents := make([]E2EIncident, 0, n)
	for i := 0; i < n; i++ {
		t := topics[i%len(topics)]
		inc := E2EIncident{
			ID:       fmt.Sprintf("e2e-inc-%03d", i+1),
			Title:    t.title,
			Year:     2000 + i%24,
			Category: t.category,
			Severity: t.severity,
			Tags:     t.tags,
			Summary:  fmt.Sprintf("%s. Root cause: %s.", t.title, t.term),
			Term:     t.term,
		}
		if i >= len(topics) {
			inc.Title = fmt.Sprintf("%s (%d)", t.title, i+1)
			inc.Term = fmt.Sprintf("%s %d", t.term, i+1)
		}
		incidents = append(incidents, inc)
	}
	var cases []QueryTestCase
	for _, inc := range incidents {
		cases = append(cases, QueryTestCase{
			Query:       inc.Term,
			ExpectedID:  inc.ID,
			Description: fmt.Sprintf("query %q should rank %s first", inc.Term, inc.ID),
		})
	}
	return &Corpus{
		Incidents:    incidents,
		TestCases:    cases,
		TotalDocs:    len(incidents),
		TotalQueries: len(cases),
	}
}

// Artifacts renders the corpus as the published JSON files. Each incident's
// embedding and its query term share the provider's vector for the term.
func (c *Corpus) Artifacts(ctx context.Context, provider embedding.Provider) (map[string][]byte, error) {
	records := make([]models.EmbeddingRecord, 0, len(c.Incidents))
	failures := make([]map[string]interface{}, 0, len(c.Incidents))
	lookup := models.HybridLookupDocument{Terms: make(map[string]models.HybridTerm, len(c.Incidents))}
	for _, inc := range c.Incidents {
		vec, err := provider.Embed(ctx, inc.Term)
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", inc.Term, err)
		}
		records = append(records, models.EmbeddingRecord{
			ID: inc.ID, Vector: vec, Category: inc.Category, Severity: inc.Severity, Tags: inc.Tags,
		})
		// Published terms are not always lowercase; the lookup normalizes them.
		lookup.Terms[strings.ToUpper(inc.Term[:1])+inc.Term[1:]] = models.HybridTerm{Vector: vec}
		failures = append(failures, map[string]interface{}{
			"id": inc.ID, "title": inc.Title, "year": inc.Year, "category": inc.Category,
			"severity": map[string]string{"level": inc.Severity}, "summary": inc.Summary, "tags": inc.Tags,
		})
	}
	out := make(map[string][]byte, 5)
	for name, v := range map[string]interface{}{
		"embeddings.json":    records,
		"hybrid_lookup.json": lookup,
		"failures.json":      failures,
		"patterns.json":      []models.Pattern{},
		"tags.json":          models.TagTaxonomy{Version: "1"},
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[name] = b
	}
	return out, nil
}
