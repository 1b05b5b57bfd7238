package signatures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vqlam/gridwatch/internal/intel"
)

// =============================================================================
// Classification Tests
// =============================================================================

// TestClassifySeverity verifies first-match precedence across the severity
// word lists.
func TestClassifySeverity(t *testing.T) {
	tables := Default()

	tests := []struct {
		text     string
		expected intel.Severity
	}{
		{"Zero-day actively exploited in the wild", intel.SeverityCritical},
		// Critical list wins even when lower-tier words are present.
		{"Critical vulnerability patch released", intel.SeverityCritical},
		{"Remote code execution in gateway firmware", intel.SeverityHigh},
		{"Security update fixes denial of service", intel.SeverityMedium},
		{"Awareness guidance for operators", intel.SeverityLow},
		{"Quarterly newsletter roundup", intel.SeverityUnknown},
		{"RANSOMWARE case study", intel.SeverityCritical},
	}

	for _, tt := range tests {
		if got := tables.ClassifySeverity(tt.text); got != tt.expected {
			t.Errorf("ClassifySeverity(%q) = %q, expected %q", tt.text, got, tt.expected)
		}
	}
}

// TestMembershipChecks verifies the keyword membership predicates.
func TestMembershipChecks(t *testing.T) {
	tables := Default()

	if !tables.IsEnergyRelevant("attack on a hydroelectric plant") {
		t.Error("hydroelectric should be energy relevant")
	}
	if tables.IsEnergyRelevant("new browser extension released") {
		t.Error("browser news is not energy relevant")
	}

	if !tables.IsICSRelated("malware communicates over DNP3") {
		t.Error("DNP3 should be ICS related")
	}
	if tables.IsICSRelated("mobile banking trojan update") {
		t.Error("banking trojan is not ICS related")
	}

	if !tables.HasNationStateIndicator("attributed to Volt Typhoon") {
		t.Error("Volt Typhoon is a nation-state indicator")
	}
	if tables.HasNationStateIndicator("commodity spam botnet dismantled") {
		t.Error("commodity spam is not a nation-state indicator")
	}
}

// TestSectorWeight verifies table lookups and the default weight.
func TestSectorWeight(t *testing.T) {
	tables := Default()

	if got := tables.SectorWeight("Energy"); got != 1.0 {
		t.Errorf("Energy weight = %v, expected 1.0", got)
	}
	if got := tables.SectorWeight("Commercial Facilities"); got != 0.55 {
		t.Errorf("Commercial Facilities weight = %v, expected 0.55", got)
	}
	if got := tables.SectorWeight("Unknown Sector"); got != 0.5 {
		t.Errorf("unknown sector weight = %v, expected 0.5", got)
	}
}

// =============================================================================
// Default Roster Tests
// =============================================================================

// TestDefaultActors verifies the shipped roster covers the energy-focused
// adversaries and their profiles are complete.
func TestDefaultActors(t *testing.T) {
	tables := Default()

	byName := map[string]intel.ThreatActor{}
	for _, a := range tables.Actors {
		byName[a.Name] = a
	}

	for _, name := range []string{"Volt Typhoon", "Sandworm", "Xenotime", "APT33", "Lazarus Group", "Kamacite"} {
		actor, ok := byName[name]
		if !ok {
			t.Errorf("roster missing %q", name)
			continue
		}
		if len(actor.Aliases) == 0 {
			t.Errorf("%s has no aliases", name)
		}
		if len(actor.TargetSectors) == 0 {
			t.Errorf("%s has no target sectors", name)
		}
		if actor.Origin == "" {
			t.Errorf("%s has no origin", name)
		}
	}
}

// =============================================================================
// Overlay Loading Tests
// =============================================================================

// TestLoad_OverlayReplacesOnlyGivenSections verifies a partial overlay file
// replaces the named sections and keeps the rest of the defaults.
func TestLoad_OverlayReplacesOnlyGivenSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.yaml")
	overlay := `
energy_keywords:
  - geothermal
actors:
  - name: Test Actor
    aliases: [ghost crab]
    origin: Nowhere
    target_sectors: [energy]
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	tables, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !tables.IsEnergyRelevant("geothermal plant incident") {
		t.Error("overlay keyword should match")
	}
	if tables.IsEnergyRelevant("substation breach") {
		t.Error("overlay should replace the energy keyword list entirely")
	}

	if len(tables.Actors) != 1 || tables.Actors[0].Name != "Test Actor" {
		t.Errorf("overlay should replace the roster, got %+v", tables.Actors)
	}

	// Untouched sections keep the defaults.
	if tables.ClassifySeverity("ransomware outbreak") != intel.SeverityCritical {
		t.Error("severity lists should keep defaults")
	}
	if tables.SectorWeight("Energy") != 1.0 {
		t.Error("sector weights should keep defaults")
	}
}

// TestLoad_MissingFile verifies a useful error for an absent file.
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestLoad_MalformedYAML verifies parse failures are reported.
func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signatures.yaml")
	if err := os.WriteFile(path, []byte("energy_keywords: {broken"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
