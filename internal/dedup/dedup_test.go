package dedup

import (
	"testing"
	"time"

	"github.com/vqlam/gridwatch/internal/intel"
)

func item(id, title, desc string, st intel.SourceType) *intel.ThreatItem {
	return &intel.ThreatItem{
		ID:          id,
		Title:       title,
		Description: desc,
		PubDate:     time.Now(),
		Source:      id,
		SourceType:  st,
	}
}

// =============================================================================
// CVE Key Tests
// =============================================================================

// TestDeduplicate_CVEMergesAcrossSources verifies that two items reporting
// the same CVE collapse to one, with the government source surviving.
func TestDeduplicate_CVEMergesAcrossSources(t *testing.T) {
	vendor := item("v-1", "Vendor analysis of CVE-2024-12345 exploitation", "", intel.SourceVendor)
	gov := item("g-1", "CISA alert: CVE-2024-12345 actively exploited", "", intel.SourceGovernment)

	out, removed := Deduplicate([]*intel.ThreatItem{vendor, gov})

	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(out))
	}
	if out[0].ID != "g-1" {
		t.Errorf("government source should win, got %q", out[0].ID)
	}
}

// TestDeduplicate_GovernmentWinsRegardlessOfOrder verifies the priority
// rule is order-independent: the higher-priority item survives whether it
// arrives first or second.
func TestDeduplicate_GovernmentWinsRegardlessOfOrder(t *testing.T) {
	gov := item("g-1", "Alert on CVE-2024-99999", "", intel.SourceGovernment)
	energy := item("e-1", "Sector note on CVE-2024-99999", "", intel.SourceEnergy)

	out, _ := Deduplicate([]*intel.ThreatItem{gov, energy})
	if len(out) != 1 || out[0].ID != "g-1" {
		t.Errorf("government first: expected g-1 to survive, got %v", out)
	}

	out, _ = Deduplicate([]*intel.ThreatItem{energy, gov})
	if len(out) != 1 || out[0].ID != "g-1" {
		t.Errorf("government second: expected g-1 to survive, got %v", out)
	}
}

// TestDeduplicate_EqualPriorityKeepsIncumbent verifies that a tie on source
// priority keeps the first-seen item.
func TestDeduplicate_EqualPriorityKeepsIncumbent(t *testing.T) {
	first := item("v-1", "First report of CVE-2024-11111", "", intel.SourceVendor)
	second := item("v-2", "Second report of CVE-2024-11111", "", intel.SourceVendor)

	out, removed := Deduplicate([]*intel.ThreatItem{first, second})
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if len(out) != 1 || out[0].ID != "v-1" {
		t.Errorf("expected incumbent v-1 to survive, got %v", out)
	}
}

// TestDeduplicate_CVEInDescription verifies the CVE key is extracted from
// the description when the title has none, case-insensitively.
func TestDeduplicate_CVEInDescription(t *testing.T) {
	a := item("a", "Critical flaw in grid controllers", "Tracked as cve-2024-55555.", intel.SourceVendor)
	b := item("b", "CVE-2024-55555: controller flaw", "", intel.SourceGovernment)

	out, removed := Deduplicate([]*intel.ThreatItem{a, b})
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("expected government item to survive, got %v", out)
	}
}

// TestDeduplicate_DifferentCVEsStaySeparate verifies distinct CVEs never
// merge even with identical titles.
func TestDeduplicate_DifferentCVEsStaySeparate(t *testing.T) {
	a := item("a", "Patch now: CVE-2024-00001", "", intel.SourceVendor)
	b := item("b", "Patch now: CVE-2024-00002", "", intel.SourceVendor)

	out, removed := Deduplicate([]*intel.ThreatItem{a, b})
	if removed != 0 || len(out) != 2 {
		t.Errorf("expected 2 survivors and 0 removed, got %d survivors, %d removed", len(out), removed)
	}
}

// =============================================================================
// Title Fingerprint Tests
// =============================================================================

// TestDeduplicate_TitleFingerprint verifies CVE-less items merge on the
// normalized title, ignoring punctuation and case.
func TestDeduplicate_TitleFingerprint(t *testing.T) {
	a := item("a", "Ransomware Group Targets Pipeline Operators", "", intel.SourceVendor)
	b := item("b", "ransomware group targets pipeline operators!", "", intel.SourceEnergy)

	out, removed := Deduplicate([]*intel.ThreatItem{a, b})
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("energy source outranks vendor, expected b, got %v", out)
	}
}

// TestDeduplicate_TitlePrefixBound verifies titles matching on the first 50
// normalized characters merge even when trailing suffixes differ.
func TestDeduplicate_TitlePrefixBound(t *testing.T) {
	base := "new malware campaign hits electric utility operators across region"
	a := item("a", base+" - Vendor Blog", "", intel.SourceVendor)
	b := item("b", base+" | Sector News", "", intel.SourceEnergy)

	out, removed := Deduplicate([]*intel.ThreatItem{a, b})
	if removed != 1 || len(out) != 1 {
		t.Errorf("expected prefix-bounded merge, got %d survivors, %d removed", len(out), removed)
	}
}

// TestDeduplicate_ShortTitlePassesThrough verifies items with titles too
// short to fingerprint are never merged, even when identical.
func TestDeduplicate_ShortTitlePassesThrough(t *testing.T) {
	a := item("a", "Outage", "", intel.SourceVendor)
	b := item("b", "Outage", "", intel.SourceGovernment)

	out, removed := Deduplicate([]*intel.ThreatItem{a, b})
	if removed != 0 || len(out) != 2 {
		t.Errorf("short titles must pass through, got %d survivors, %d removed", len(out), removed)
	}
}

// =============================================================================
// Order and Idempotence Tests
// =============================================================================

// TestDeduplicate_PreservesFirstSeenOrder verifies survivors keep their
// original relative positions even when a later item replaces an incumbent.
func TestDeduplicate_PreservesFirstSeenOrder(t *testing.T) {
	items := []*intel.ThreatItem{
		item("a", "Phishing wave against substation staff members", "", intel.SourceVendor),
		item("b", "Vendor note on CVE-2024-31337", "", intel.SourceVendor),
		item("c", "New advisory about transmission grid firmware", "", intel.SourceEnergy),
		item("d", "Official alert for CVE-2024-31337", "", intel.SourceGovernment),
	}

	out, removed := Deduplicate(items)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	want := []string{"a", "d", "c"}
	if len(out) != len(want) {
		t.Fatalf("expected %d survivors, got %d", len(want), len(out))
	}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("position %d: expected %q, got %q", i, id, out[i].ID)
		}
	}
}

// TestDeduplicate_Idempotent verifies running deduplication on its own
// output changes nothing.
func TestDeduplicate_Idempotent(t *testing.T) {
	items := []*intel.ThreatItem{
		item("a", "Report on CVE-2024-10001 in control systems", "", intel.SourceVendor),
		item("b", "Alert for CVE-2024-10001", "", intel.SourceGovernment),
		item("c", "Grid operators warned of credential phishing", "", intel.SourceEnergy),
	}

	once, _ := Deduplicate(items)
	twice, removed := Deduplicate(once)

	if removed != 0 {
		t.Errorf("second pass removed %d items, expected 0", removed)
	}
	if len(twice) != len(once) {
		t.Fatalf("second pass changed length: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("position %d changed: %q vs %q", i, once[i].ID, twice[i].ID)
		}
	}
}

// TestDeduplicate_Empty verifies the empty input contract.
func TestDeduplicate_Empty(t *testing.T) {
	out, removed := Deduplicate(nil)
	if out != nil || removed != 0 {
		t.Errorf("expected nil, 0 for empty input, got %v, %d", out, removed)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

// TestExtractCVE verifies CVE extraction and uppercasing.
func TestExtractCVE(t *testing.T) {
	tests := []struct {
		title    string
		desc     string
		expected string
	}{
		{"CVE-2024-12345 under active exploitation", "", "CVE-2024-12345"},
		{"Controller flaw", "patched as cve-2023-9999", "CVE-2023-9999"},
		{"CVE-2021-44228 and CVE-2021-45046 compared", "", "CVE-2021-44228"},
		{"No identifier here", "nothing", ""},
		{"CVE-20-1 is malformed", "", ""},
	}

	for _, tt := range tests {
		got := ExtractCVE(item("x", tt.title, tt.desc, intel.SourceVendor))
		if got != tt.expected {
			t.Errorf("title %q: expected %q, got %q", tt.title, tt.expected, got)
		}
	}
}

// TestNormalizeTitle verifies normalization collapses case, punctuation,
// and whitespace.
func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Hello,  World!", "hello world"},
		{"  Grid\tAlert  ", "grid alert"},
		{"ALL CAPS TITLE", "all caps title"},
		{"***", ""},
	}

	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.expected {
			t.Errorf("normalizeTitle(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}
