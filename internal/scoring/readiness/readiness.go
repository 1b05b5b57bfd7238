// Package readiness maps threat conditions onto a CPCON-style readiness
// level (5 = normal posture, 1 = maximum readiness). A weighted composite
// score places the alert on the 5..1 scale, then override floors force the
// level up when specific high-signal combinations fire. Every override is
// recorded with its pre/post level so the final posture is auditable.
package readiness

import (
	"fmt"
	"math"

	"github.com/vqlam/gridwatch/internal/signatures"
)

// Posture is the declared national cyber readiness posture.
type Posture string

const (
	PostureShieldsUp    Posture = "Shields Up"
	PostureShieldsReady Posture = "Shields Ready"
	PostureNone         Posture = "None/Other"
)

// Urgency grades how hard the issuing authority is pushing.
type Urgency string

const (
	UrgencyEmergency   Urgency = "bod_or_emergency"
	UrgencyHigh        Urgency = "high"
	UrgencyMedium      Urgency = "medium"
	UrgencyLow         Urgency = "low"
	UrgencyUnspecified Urgency = "unspecified"
)

// Exploitation grades the evidence of in-the-wild exploitation.
type Exploitation string

const (
	ExploitationConfirmed   Exploitation = "confirmed"
	ExploitationLikely      Exploitation = "likely"
	ExploitationUnspecified Exploitation = "unspecified"
)

// Input is the alert context evaluated by the mapper.
type Input struct {
	Posture           Posture      `json:"posture"`
	Exploitation      Exploitation `json:"exploitation"`
	Sector            string       `json:"sector"`
	SectorMatch       bool         `json:"sector_match"`
	Urgency           Urgency      `json:"urgency"`
	InKEV             bool         `json:"in_kev"`
	CriticalFunctions bool         `json:"critical_functions"`
	AssetExposure     float64      `json:"asset_exposure"` // 0..1
}

// Override records one floor rule that fired.
type Override struct {
	Name      string `json:"name"`
	PreLevel  int    `json:"pre_level"`
	PostLevel int    `json:"post_level"`
	Reason    string `json:"reason"`
}

// Assessment is the mapper's output.
type Assessment struct {
	CSS        float64    `json:"css"` // composite severity score, 0..1
	BaseLevel  int        `json:"base_level"`
	FinalLevel int        `json:"final_level"`
	FloorLevel int        `json:"floor_level"`
	Thresholds []float64  `json:"mapping_thresholds"`
	Overrides  []Override `json:"overrides_applied"`
	Rationale  string     `json:"rationale"`
}

// Composite score weights. They sum to 1.0; posture carries the most weight,
// with exploitation, sector criticality, urgency, and critical-function
// involvement close behind.
const (
	wPosture      = 0.20
	wExploitation = 0.15
	wSector       = 0.15
	wUrgency      = 0.15
	wKEV          = 0.10
	wCritical     = 0.15
	wAsset        = 0.10
)

var levelThresholds = []float64{0.20, 0.40, 0.60, 0.80}

// Mapper evaluates alert context against the sector weight table.
type Mapper struct {
	tables *signatures.Tables
}

// NewMapper creates a readiness mapper.
func NewMapper(tables *signatures.Tables) *Mapper {
	return &Mapper{tables: tables}
}

// Evaluate computes the composite score, maps it to a base level, and
// applies the override floors.
func (m *Mapper) Evaluate(in Input) Assessment {
	css := m.compositeScore(in)
	base := mapLevel(css)
	final, floor, overrides := applyOverrides(in, css, base)

	rationale := "Base readiness level derived from composite severity score"
	if len(overrides) > 0 {
		rationale = overrides[0].Reason
	}

	return Assessment{
		CSS:        css,
		BaseLevel:  base,
		FinalLevel: final,
		FloorLevel: floor,
		Thresholds: levelThresholds,
		Overrides:  overrides,
		Rationale:  rationale,
	}
}

func (m *Mapper) compositeScore(in Input) float64 {
	sector := 0.0
	if in.SectorMatch {
		sector = m.tables.SectorWeight(in.Sector)
	}

	kev := 0.0
	if in.InKEV {
		kev = 1.0
	}
	critical := 0.0
	if in.CriticalFunctions {
		critical = 1.0
	}

	css := wPosture*postureScore(in.Posture) +
		wExploitation*exploitationScore(in.Exploitation) +
		wSector*sector +
		wUrgency*urgencyScore(in.Urgency) +
		wKEV*kev +
		wCritical*critical +
		wAsset*clamp01(in.AssetExposure)

	return math.Round(css*1000) / 1000
}

func postureScore(p Posture) float64 {
	switch p {
	case PostureShieldsUp:
		return 1.0
	case PostureShieldsReady:
		return 0.7
	default:
		return 0.3
	}
}

func exploitationScore(x Exploitation) float64 {
	switch x {
	case ExploitationConfirmed:
		return 1.0
	case ExploitationLikely:
		return 0.7
	default:
		return 0.2
	}
}

func urgencyScore(u Urgency) float64 {
	switch u {
	case UrgencyEmergency:
		return 1.0
	case UrgencyHigh:
		return 0.8
	case UrgencyMedium:
		return 0.5
	case UrgencyLow:
		return 0.2
	default:
		return 0.1
	}
}

// mapLevel converts a 0..1 composite score to the 5..1 readiness scale.
func mapLevel(score float64) int {
	switch {
	case score < levelThresholds[0]:
		return 5
	case score < levelThresholds[1]:
		return 4
	case score < levelThresholds[2]:
		return 3
	case score < levelThresholds[3]:
		return 2
	default:
		return 1
	}
}

// applyOverrides enforces the floor rules. Floors only ever raise readiness
// (lower the level number); the base level still wins when it is already
// more severe than every floor.
func applyOverrides(in Input, css float64, base int) (final, floor int, overrides []Override) {
	floor = 5

	if in.Posture == PostureShieldsUp && in.SectorMatch {
		floor = min(floor, 3)
		overrides = append(overrides, Override{
			Name:      "shields_up_sector_match",
			PreLevel:  base,
			PostLevel: 3,
			Reason:    fmt.Sprintf("Shields Up posture targeting the %s sector", in.Sector),
		})
	}

	if in.Urgency == UrgencyEmergency && css >= 0.8 {
		floor = min(floor, 2)
		overrides = append(overrides, Override{
			Name:      "bod_urgency_css",
			PreLevel:  base,
			PostLevel: 2,
			Reason:    "Binding directive urgency with high composite severity",
		})
	}

	if in.CriticalFunctions && (in.Exploitation == ExploitationConfirmed || in.Exploitation == ExploitationLikely) {
		floor = min(floor, 2)
		overrides = append(overrides, Override{
			Name:      "critical_exploitation",
			PreLevel:  base,
			PostLevel: 2,
			Reason:    "Critical functions involved with exploitation evidence",
		})
	}

	return min(base, floor), floor, overrides
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
