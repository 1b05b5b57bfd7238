// Package correlation matches recent items against the threat actor roster
// and produces ranked campaign candidates. Every signal that moves a score
// is enumerated in the candidate's rationale string, so an operator can
// reconstruct exactly why an actor was flagged.
package correlation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vqlam/gridwatch/internal/intel"
	"github.com/vqlam/gridwatch/internal/signatures"
)

const (
	// campaignWindow bounds which items can form the basis of a current
	// campaign. Older items still inform per-item decay but never
	// aggregate.
	campaignWindow = 7 * 24 * time.Hour

	// nameMatchFloor is the minimum pair score when an item names the
	// actor or one of its aliases directly.
	nameMatchFloor = 0.9

	// campaignNameMatchFloor keeps explicitly attributed campaigns from
	// being under-ranked by the weighted formula.
	campaignNameMatchFloor = 0.6

	// emissionThreshold drops actors whose best campaign score cannot
	// support even a low-confidence candidate.
	emissionThreshold = 0.25

	sectorOverlapBonus = 0.1
	kevSourceBonus     = 0.2
	icsRelevanceBonus  = 0.15
)

// Campaign score component weights.
const (
	wAvgPair     = 0.35
	wMaxPair     = 0.25
	wSaturation  = 0.15
	wKEVRatio    = 0.15
	wNationRatio = 0.10
)

// Engine correlates item snapshots against a static actor roster.
type Engine struct {
	tables *signatures.Tables

	// now is swapped in tests to pin the decay and window math.
	now func() time.Time
}

// NewEngine creates a correlation engine.
func NewEngine(tables *signatures.Tables) *Engine {
	return &Engine{tables: tables, now: time.Now}
}

// Correlate evaluates every actor against the item set and returns the
// candidates that clear the emission threshold, ranked by score descending
// (name ascending on ties, for deterministic output).
func (e *Engine) Correlate(items []*intel.ThreatItem, actors []intel.ThreatActor) []intel.CampaignCandidate {
	now := e.now()
	cutoff := now.Add(-campaignWindow)

	// Per-item severity is actor-independent; compute it once.
	severity := make(map[string]float64, len(items))
	var window []*intel.ThreatItem
	for _, item := range items {
		severity[item.ID] = e.itemSeverity(item, now)
		if !item.PubDate.Before(cutoff) {
			window = append(window, item)
		}
	}

	var out []intel.CampaignCandidate
	for _, actor := range actors {
		if cand, ok := e.evaluateActor(actor, window, severity); ok {
			out = append(out, cand)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].ActorName < out[j].ActorName
	})
	return out
}

// itemSeverity computes the 0..1 evidence weight of one item: enrichment or
// raw-severity base, KEV and ICS bonuses, scaled by temporal decay.
func (e *Engine) itemSeverity(item *intel.ThreatItem, now time.Time) float64 {
	var base float64
	if item.Enrichment != nil {
		base = enrichedBucket(item.Enrichment.SeverityScore)
	} else {
		base = rawSeverityWeight(item.Severity)
	}

	if strings.Contains(strings.ToLower(item.Source), "kev") {
		base += kevSourceBonus
	}
	if e.isICSRelevant(item) {
		base += icsRelevanceBonus
	}

	return clamp01(base * decay(now.Sub(item.PubDate)))
}

// isICSRelevant prefers the enriched affected-system/protocol fields and
// falls back to keyword matching on the raw text.
func (e *Engine) isICSRelevant(item *intel.ThreatItem) bool {
	if enr := item.Enrichment; enr != nil {
		fields := strings.ToLower(strings.Join(enr.AffectedSystems, " ") + " " + strings.Join(enr.AffectedProtocols, " "))
		if e.tables.IsICSRelated(fields) {
			return true
		}
	}
	return e.tables.IsICSRelated(item.Text())
}

func enrichedBucket(score int) float64 {
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

func rawSeverityWeight(s intel.Severity) float64 {
	switch s {
	case intel.SeverityCritical:
		return 0.35
	case intel.SeverityHigh:
		return 0.25
	case intel.SeverityMedium:
		return 0.15
	case intel.SeverityLow:
		return 0.05
	default:
		return 0
	}
}

// decay discounts older evidence: full weight for two days, then stepped
// down to a quarter beyond two weeks.
func decay(age time.Duration) float64 {
	switch {
	case age <= 2*24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.75
	case age <= 14*24*time.Hour:
		return 0.5
	default:
		return 0.25
	}
}

// evaluateActor builds the candidate for one actor from the windowed items.
func (e *Engine) evaluateActor(actor intel.ThreatActor, window []*intel.ThreatItem, severity map[string]float64) (intel.CampaignCandidate, bool) {
	var (
		matches      []intel.ScoredMatch
		nameMatches  int
		kevCount     int
		nationCount  int
		sum, maxPair float64
		first, last  time.Time
		sectors      = map[string]bool{}
	)

	for _, item := range window {
		text := strings.ToLower(item.Text())

		named := matchesActor(text, actor)
		pair := severity[item.ID]
		if named {
			nameMatches++
			pair = math.Max(pair, nameMatchFloor)
		}

		overlap := false
		for _, sector := range actor.TargetSectors {
			if strings.Contains(text, strings.ToLower(sector)) {
				overlap = true
				sectors[sector] = true
			}
		}
		if overlap {
			pair = clamp01(pair + sectorOverlapBonus)
		}

		// Items with no evidence weight and no attribution contribute
		// nothing to this actor.
		if pair <= 0 {
			continue
		}

		if strings.Contains(strings.ToLower(item.Source), "kev") {
			kevCount++
		}
		if e.tables.HasNationStateIndicator(text) {
			nationCount++
		}

		matches = append(matches, intel.ScoredMatch{Item: item, PairScore: round3(pair), NameMatch: named})
		sum += pair
		maxPair = math.Max(maxPair, pair)
		if first.IsZero() || item.PubDate.Before(first) {
			first = item.PubDate
		}
		if item.PubDate.After(last) {
			last = item.PubDate
		}
	}

	if len(matches) == 0 {
		return intel.CampaignCandidate{}, false
	}

	count := len(matches)
	avg := sum / float64(count)
	saturation := math.Min(float64(count)/5, 1)
	kevRatio := float64(kevCount) / float64(count)
	nationRatio := float64(nationCount) / float64(count)

	score := wAvgPair*avg + wMaxPair*maxPair + wSaturation*saturation +
		wKEVRatio*kevRatio + wNationRatio*nationRatio
	if nameMatches > 0 {
		score = math.Max(score, campaignNameMatchFloor)
	}
	score = round3(clamp01(score))

	confidence, ok := tier(score, count)
	if !ok {
		return intel.CampaignCandidate{}, false
	}

	return intel.CampaignCandidate{
		ActorName:       actor.Name,
		Confidence:      confidence,
		ConfidenceScore: score,
		Items:           matches,
		FirstSeen:       first,
		LastSeen:        last,
		AffectedSectors: sortedKeys(sectors),
		Rationale: fmt.Sprintf(
			"%s: %d direct name matches, %d correlated items in 7d window, %d KEV-sourced, %d nation-state indicators, campaign score %.3f",
			actor.Name, nameMatches, count, kevCount, nationCount, score,
		),
	}, true
}

// tier buckets a campaign score, enforcing the minimum corroborating item
// counts; actors below the emission threshold are dropped entirely.
func tier(score float64, count int) (intel.Confidence, bool) {
	switch {
	case score >= 0.7 && count >= 3:
		return intel.ConfidenceHigh, true
	case score >= 0.4 && count >= 2:
		return intel.ConfidenceMedium, true
	case score >= emissionThreshold:
		return intel.ConfidenceLow, true
	default:
		return "", false
	}
}

// matchesActor reports a direct name or alias reference in the text.
func matchesActor(lowerText string, actor intel.ThreatActor) bool {
	if strings.Contains(lowerText, strings.ToLower(actor.Name)) {
		return true
	}
	for _, alias := range actor.Aliases {
		if strings.Contains(lowerText, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
