// Package scoring computes the energy-sector risk score: a bounded
// [1.0, 5.0] value produced by subtracting capped, per-category deductions
// from a 5.0 baseline, with an auditable factor breakdown.
//
// Categories run in a fixed priority order from highest per-item weight to
// lowest, and an item claimed by a higher-priority category is excluded
// from every later one. That anti-double-counting rule is a contract, not
// an optimization: summing unconstrained categories produces materially
// different scores.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vqlam/gridwatch/internal/intel"
	"github.com/vqlam/gridwatch/internal/signatures"
)

const (
	baselineScore = 5.0
	minScore      = 1.0

	severeThreshold   = 2.0
	elevatedThreshold = 3.0

	shortWindow = 7 * 24 * time.Hour
	longWindow  = 30 * 24 * time.Hour
)

// Thresholds exposes the label cut lines so the API boundary can render the
// scale without hardcoding it.
type Thresholds struct {
	Severe   float64 `json:"severe"`
	Elevated float64 `json:"elevated"`
}

// Result is one scoring run over a deduplicated item set.
type Result struct {
	Score       float64             `json:"score"`
	Label       string              `json:"label"`
	Color       string              `json:"color"`
	Factors     []intel.ScoreFactor `json:"factors"`
	Summary     string              `json:"summary"`
	Methodology string              `json:"methodology"`
	Thresholds  Thresholds          `json:"thresholds"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// category is one deduction rule. deduction returns the per-item weight for
// an eligible item; zero means the item neither deducts nor is claimed.
type category struct {
	name      string
	window    time.Duration
	weight    float64 // nominal per-item weight, reported on the factor
	maxImpact float64
	deduction func(e *Engine, item *intel.ThreatItem) float64
}

// Engine evaluates the category list against an item snapshot.
type Engine struct {
	tables *signatures.Tables

	// now is swapped in tests to pin the freshness windows.
	now func() time.Time
}

// NewEngine creates a scoring engine over the given signature tables.
func NewEngine(tables *signatures.Tables) *Engine {
	return &Engine{tables: tables, now: time.Now}
}

// categories is the literal priority order. Reordering this list changes
// which category claims contested items and therefore changes scores.
var categories = []category{
	{
		name:      "Nation-State Activity",
		window:    longWindow,
		weight:    0.5,
		maxImpact: 1.5,
		deduction: func(e *Engine, item *intel.ThreatItem) float64 {
			if e.tables.HasNationStateIndicator(item.Text()) {
				return 0.5
			}
			return 0
		},
	},
	{
		name:      "Recently Exploited Vulnerabilities",
		window:    shortWindow,
		weight:    0.3,
		maxImpact: 1.2,
		deduction: func(e *Engine, item *intel.ThreatItem) float64 {
			if strings.Contains(strings.ToLower(item.Source), "kev") {
				return 0.3
			}
			return 0
		},
	},
	{
		name:      "ICS/SCADA Targeting",
		window:    longWindow,
		weight:    0.4,
		maxImpact: 1.2,
		deduction: func(e *Engine, item *intel.ThreatItem) float64 {
			if e.tables.IsICSRelated(item.Text()) {
				return 0.4
			}
			return 0
		},
	},
	{
		name:      "Energy Sector Threats",
		window:    longWindow,
		weight:    0.15,
		maxImpact: 1.0,
		deduction: func(e *Engine, item *intel.ThreatItem) float64 {
			if item.Enrichment != nil {
				// Graduated deduction from the enriched severity score.
				// Items the enrichment rates below 3 contribute nothing
				// and stay unclaimed.
				return enrichedWeight(item.Enrichment.SeverityScore)
			}
			if item.IsEnergyRelevant {
				// Keyword-only fallback at a lower flat weight.
				return 0.15
			}
			return 0
		},
	},
	{
		name:      "Vendor-Reported Critical",
		window:    shortWindow,
		weight:    0.2,
		maxImpact: 0.6,
		deduction: func(e *Engine, item *intel.ThreatItem) float64 {
			if item.SourceType == intel.SourceVendor && item.Severity == intel.SeverityCritical {
				return 0.2
			}
			return 0
		},
	},
}

// enrichedWeight buckets a 1-10 enrichment severity into a deduction.
func enrichedWeight(score int) float64 {
	switch {
	case score >= 9:
		return 0.4
	case score >= 7:
		return 0.3
	case score >= 5:
		return 0.2
	case score >= 3:
		return 0.1
	default:
		return 0
	}
}

// Evaluate scores a deduplicated item set. An empty input yields the
// baseline with an empty factor list; it never returns an error.
func (e *Engine) Evaluate(items []*intel.ThreatItem) Result {
	now := e.now()
	score := baselineScore
	claimed := make(map[string]bool, len(items))
	factors := make([]intel.ScoreFactor, 0, len(categories))

	for _, cat := range categories {
		cutoff := now.Add(-cat.window)

		var (
			contributors []*intel.ThreatItem
			sum          float64
		)
		for _, item := range items {
			if claimed[item.ID] || item.PubDate.Before(cutoff) {
				continue
			}
			w := cat.deduction(e, item)
			if w <= 0 {
				continue
			}
			claimed[item.ID] = true
			contributors = append(contributors, item)
			sum += w
		}

		if len(contributors) == 0 {
			continue
		}

		impact := math.Min(sum, cat.maxImpact)
		score -= impact

		factors = append(factors, intel.ScoreFactor{
			Name:      cat.name,
			Impact:    -round1(impact),
			Count:     len(contributors),
			Weight:    cat.weight,
			MaxImpact: cat.maxImpact,
			Items:     contributors,
		})
	}

	score = round1(math.Min(baselineScore, math.Max(minScore, score)))
	label := labelFor(score)

	return Result{
		Score:       score,
		Label:       label,
		Color:       colorFor(label),
		Factors:     factors,
		Summary:     summaryFor(label, score, factors),
		Methodology: methodology,
		Thresholds:  Thresholds{Severe: severeThreshold, Elevated: elevatedThreshold},
		GeneratedAt: now,
	}
}

const methodology = "Weighted deductions from a 5.0 baseline across fixed-priority categories " +
	"(nation-state, exploited vulnerabilities, ICS/SCADA, energy relevance, vendor-critical), " +
	"each capped, with every item counted in at most one category."

func labelFor(score float64) string {
	switch {
	case score <= severeThreshold:
		return "Severe"
	case score <= elevatedThreshold:
		return "Elevated"
	default:
		return "Normal"
	}
}

func colorFor(label string) string {
	switch label {
	case "Severe":
		return "#dc2626"
	case "Elevated":
		return "#f59e0b"
	default:
		return "#16a34a"
	}
}

func summaryFor(label string, score float64, factors []intel.ScoreFactor) string {
	total := 0
	for _, f := range factors {
		total += f.Count
	}
	switch label {
	case "Severe":
		return fmt.Sprintf("Severe threat conditions (%.1f/5.0): %d items across %d categories indicate active, high-impact targeting of the energy sector.", score, total, len(factors))
	case "Elevated":
		return fmt.Sprintf("Elevated threat conditions (%.1f/5.0): %d items across %d categories warrant increased monitoring.", score, total, len(factors))
	default:
		return fmt.Sprintf("Normal threat conditions (%.1f/5.0): %d items across %d categories, no unusual concentration of energy-sector threats.", score, total, len(factors))
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
