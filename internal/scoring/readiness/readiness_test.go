package readiness

import (
	"testing"

	"github.com/vqlam/gridwatch/internal/signatures"
)

func testMapper() *Mapper {
	return NewMapper(signatures.Default())
}

// =============================================================================
// Composite Score Tests
// =============================================================================

// TestEvaluate_MaximalInput verifies a fully adverse context saturates the
// composite score and maps to maximum readiness.
func TestEvaluate_MaximalInput(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:           PostureShieldsUp,
		Exploitation:      ExploitationConfirmed,
		Sector:            "Energy",
		SectorMatch:       true,
		Urgency:           UrgencyEmergency,
		InKEV:             true,
		CriticalFunctions: true,
		AssetExposure:     1.0,
	})

	if a.CSS != 1.0 {
		t.Errorf("expected CSS 1.0, got %v", a.CSS)
	}
	if a.BaseLevel != 1 || a.FinalLevel != 1 {
		t.Errorf("expected level 1, got base %d final %d", a.BaseLevel, a.FinalLevel)
	}
}

// TestEvaluate_QuietInput verifies a benign context stays at normal
// readiness with no overrides.
func TestEvaluate_QuietInput(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:      PostureNone,
		Exploitation: ExploitationUnspecified,
		Urgency:      UrgencyUnspecified,
	})

	// 0.20*0.3 + 0.15*0.2 + 0.15*0.1 = 0.105
	if a.CSS != 0.105 {
		t.Errorf("expected CSS 0.105, got %v", a.CSS)
	}
	if a.BaseLevel != 5 || a.FinalLevel != 5 {
		t.Errorf("expected level 5, got base %d final %d", a.BaseLevel, a.FinalLevel)
	}
	if len(a.Overrides) != 0 {
		t.Errorf("expected no overrides, got %+v", a.Overrides)
	}
}

// TestEvaluate_SectorWeightOnlyWhenMatched verifies the sector component
// contributes nothing without a sector match.
func TestEvaluate_SectorWeightOnlyWhenMatched(t *testing.T) {
	m := testMapper()

	matched := m.Evaluate(Input{Sector: "Energy", SectorMatch: true})
	unmatched := m.Evaluate(Input{Sector: "Energy", SectorMatch: false})

	if matched.CSS != 0.255 {
		t.Errorf("matched CSS = %v, expected 0.255", matched.CSS)
	}
	if unmatched.CSS != 0.105 {
		t.Errorf("unmatched CSS = %v, expected 0.105", unmatched.CSS)
	}
}

// =============================================================================
// Level Mapping Tests
// =============================================================================

// TestMapLevel verifies the score-to-level thresholds.
func TestMapLevel(t *testing.T) {
	tests := []struct {
		score    float64
		expected int
	}{
		{0.0, 5},
		{0.19, 5},
		{0.20, 4},
		{0.39, 4},
		{0.40, 3},
		{0.59, 3},
		{0.60, 2},
		{0.79, 2},
		{0.80, 1},
		{1.0, 1},
	}

	for _, tt := range tests {
		if got := mapLevel(tt.score); got != tt.expected {
			t.Errorf("mapLevel(%v) = %d, expected %d", tt.score, got, tt.expected)
		}
	}
}

// =============================================================================
// Override Floor Tests
// =============================================================================

// TestEvaluate_ShieldsUpSectorFloor verifies the Shields Up + sector match
// combination floors the level at 3 even when the composite score is low.
func TestEvaluate_ShieldsUpSectorFloor(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:      PostureShieldsUp,
		Exploitation: ExploitationUnspecified,
		Sector:       "Energy",
		SectorMatch:  true,
		Urgency:      UrgencyUnspecified,
	})

	// 0.20*1.0 + 0.15*0.2 + 0.15*1.0 + 0.15*0.1 = 0.395, base level 4.
	if a.BaseLevel != 4 {
		t.Fatalf("expected base level 4, got %d (css %v)", a.BaseLevel, a.CSS)
	}
	if a.FinalLevel != 3 {
		t.Errorf("floor should raise readiness to 3, got %d", a.FinalLevel)
	}
	if len(a.Overrides) != 1 || a.Overrides[0].Name != "shields_up_sector_match" {
		t.Errorf("expected shields_up_sector_match override, got %+v", a.Overrides)
	}
	if a.Rationale != a.Overrides[0].Reason {
		t.Errorf("rationale should carry the override reason, got %q", a.Rationale)
	}
}

// TestEvaluate_EmergencyUrgencyFloor verifies binding-directive urgency with
// a high composite score floors the level at 2.
func TestEvaluate_EmergencyUrgencyFloor(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:       PostureShieldsUp,
		Exploitation:  ExploitationConfirmed,
		Sector:        "Energy",
		SectorMatch:   true,
		Urgency:       UrgencyEmergency,
		InKEV:         true,
		AssetExposure: 0.5,
	})

	if a.CSS < 0.8 {
		t.Fatalf("test input should produce CSS >= 0.8, got %v", a.CSS)
	}

	found := false
	for _, o := range a.Overrides {
		if o.Name == "bod_urgency_css" {
			found = true
			if o.PostLevel != 2 {
				t.Errorf("expected post level 2, got %d", o.PostLevel)
			}
		}
	}
	if !found {
		t.Errorf("expected bod_urgency_css override, got %+v", a.Overrides)
	}
	if a.FinalLevel > 2 {
		t.Errorf("final level should be at most 2, got %d", a.FinalLevel)
	}
}

// TestEvaluate_CriticalExploitationFloor verifies critical-function
// involvement with exploitation evidence floors the level at 2.
func TestEvaluate_CriticalExploitationFloor(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:           PostureNone,
		Exploitation:      ExploitationLikely,
		Urgency:           UrgencyLow,
		CriticalFunctions: true,
	})

	if a.FinalLevel != 2 {
		t.Errorf("expected floored level 2, got %d", a.FinalLevel)
	}
	if len(a.Overrides) != 1 || a.Overrides[0].Name != "critical_exploitation" {
		t.Errorf("expected critical_exploitation override, got %+v", a.Overrides)
	}
}

// TestEvaluate_FloorsNeverLowerReadiness verifies a base level already more
// severe than every floor stays put.
func TestEvaluate_FloorsNeverLowerReadiness(t *testing.T) {
	a := testMapper().Evaluate(Input{
		Posture:           PostureShieldsUp,
		Exploitation:      ExploitationConfirmed,
		Sector:            "Energy",
		SectorMatch:       true,
		Urgency:           UrgencyEmergency,
		InKEV:             true,
		CriticalFunctions: true,
		AssetExposure:     1.0,
	})

	// Base is already 1; floors at 2 and 3 must not push it back down.
	if a.FinalLevel != 1 {
		t.Errorf("floors must never lower readiness, got %d", a.FinalLevel)
	}
	if len(a.Overrides) != 3 {
		t.Errorf("expected all three overrides recorded, got %d", len(a.Overrides))
	}
}

// =============================================================================
// Component Score Tests
// =============================================================================

// TestPostureScore verifies the posture component values.
func TestPostureScore(t *testing.T) {
	tests := []struct {
		posture  Posture
		expected float64
	}{
		{PostureShieldsUp, 1.0},
		{PostureShieldsReady, 0.7},
		{PostureNone, 0.3},
		{Posture("unheard of"), 0.3},
	}

	for _, tt := range tests {
		if got := postureScore(tt.posture); got != tt.expected {
			t.Errorf("postureScore(%q) = %v, expected %v", tt.posture, got, tt.expected)
		}
	}
}

// TestUrgencyScore verifies the urgency component values.
func TestUrgencyScore(t *testing.T) {
	tests := []struct {
		urgency  Urgency
		expected float64
	}{
		{UrgencyEmergency, 1.0},
		{UrgencyHigh, 0.8},
		{UrgencyMedium, 0.5},
		{UrgencyLow, 0.2},
		{UrgencyUnspecified, 0.1},
	}

	for _, tt := range tests {
		if got := urgencyScore(tt.urgency); got != tt.expected {
			t.Errorf("urgencyScore(%q) = %v, expected %v", tt.urgency, got, tt.expected)
		}
	}
}
