// Package intel defines the shared data model for the threat intelligence
// pipeline: normalized feed items, raw KEV catalog records, threat actor
// profiles, and the scoring/correlation result shapes consumed by the API.
package intel

import "time"

// SourceType classifies where an advisory came from.
type SourceType string

const (
	SourceGovernment SourceType = "government"
	SourceVendor     SourceType = "vendor"
	SourceEnergy     SourceType = "energy"
)

// Priority returns the authority ranking used for deduplication tie-breaks.
// Government feeds are primary sources and always win over sector and
// vendor reporting of the same story.
func (s SourceType) Priority() int {
	switch s {
	case SourceGovernment:
		return 3
	case SourceEnergy:
		return 2
	case SourceVendor:
		return 1
	default:
		return 0
	}
}

// Severity is the keyword-derived severity level of an item.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// Enrichment holds optional AI-style context attached to an item before
// scoring and correlation run. All consumers must branch on its presence;
// the keyword-only paths apply when it is nil.
type Enrichment struct {
	SeverityScore     int      `json:"severity_score"` // 1-10
	ThreatType        string   `json:"threat_type,omitempty"`
	Urgency           string   `json:"urgency,omitempty"`
	AffectedVendors   []string `json:"affected_vendors,omitempty"`
	AffectedSystems   []string `json:"affected_systems,omitempty"`
	AffectedProtocols []string `json:"affected_protocols,omitempty"`
	Rationale         string   `json:"rationale,omitempty"`
}

// ThreatItem is one normalized advisory or report observed in a feed.
//
// ID is unique within a single ingestion pass. PubDate is always a valid
// instant: sources that omit or mangle the date get the ingestion time.
type ThreatItem struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Link             string      `json:"link"`
	PubDate          time.Time   `json:"pub_date"`
	Source           string      `json:"source"`
	SourceType       SourceType  `json:"source_type"`
	Severity         Severity    `json:"severity"`
	IsEnergyRelevant bool        `json:"is_energy_relevant"`
	Enrichment       *Enrichment `json:"enrichment,omitempty"`
}

// Text returns the searchable text of the item. Every keyword check in the
// pipeline runs over this same concatenation so classification stays
// consistent across stages.
func (t *ThreatItem) Text() string {
	return t.Title + " " + t.Description
}

// KEVItem is a raw record from the known-exploited-vulnerabilities catalog.
// It is kept separate from ThreatItem because remediation guidance needs
// fields (due date, vendor project, ransomware use) the generic item lacks.
type KEVItem struct {
	CVEID                      string    `json:"cve_id"`
	VendorProject              string    `json:"vendor_project"`
	Product                    string    `json:"product"`
	VulnerabilityName          string    `json:"vulnerability_name"`
	DateAdded                  time.Time `json:"date_added"`
	DueDate                    time.Time `json:"due_date"`
	ShortDescription           string    `json:"short_description"`
	RequiredAction             string    `json:"required_action"`
	KnownRansomwareCampaignUse string    `json:"known_ransomware_campaign_use"`
	Notes                      string    `json:"notes,omitempty"`
}

// WeightedTTP is a technique signature with a correlation weight.
type WeightedTTP struct {
	TechniqueID string  `yaml:"technique_id" json:"technique_id"`
	Name        string  `yaml:"name" json:"name"`
	Weight      float64 `yaml:"weight" json:"weight"`
}

// ThreatActor is a named adversary profile. Actor rosters are static
// configuration loaded once per process; the pipeline never mutates them.
type ThreatActor struct {
	Name          string        `yaml:"name" json:"name"`
	Aliases       []string      `yaml:"aliases" json:"aliases"`
	Origin        string        `yaml:"origin" json:"origin"`
	TargetSectors []string      `yaml:"target_sectors" json:"target_sectors"`
	TTPs          []WeightedTTP `yaml:"ttps,omitempty" json:"ttps,omitempty"`
}

// ScoreFactor is one scoring category's contribution to the risk score.
// Impact is always <= 0. Items lists the contributing advisories so the
// deduction can be audited item by item.
type ScoreFactor struct {
	Name      string        `json:"name"`
	Impact    float64       `json:"impact"`
	Count     int           `json:"count"`
	Weight    float64       `json:"weight"`
	MaxImpact float64       `json:"max_impact"`
	Items     []*ThreatItem `json:"items"`
}

// Confidence is the discrete confidence tier of a campaign candidate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ScoredMatch pairs a correlated item with its per-pair score.
type ScoredMatch struct {
	Item      *ThreatItem `json:"item"`
	PairScore float64     `json:"pair_score"`
	NameMatch bool        `json:"name_match"`
}

// CampaignCandidate is one ranked actor/campaign correlation result.
// Rationale enumerates the signals that produced ConfidenceScore so an
// operator can reconstruct why the actor was flagged.
type CampaignCandidate struct {
	ActorName       string        `json:"actor_name"`
	Confidence      Confidence    `json:"confidence"`
	ConfidenceScore float64       `json:"confidence_score"`
	Items           []ScoredMatch `json:"items"`
	FirstSeen       time.Time     `json:"first_seen"`
	LastSeen        time.Time     `json:"last_seen"`
	AffectedSectors []string      `json:"affected_sectors"`
	Rationale       string        `json:"rationale"`
}
