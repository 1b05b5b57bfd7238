// Package signatures holds the static classification data the pipeline
// matches against: severity word lists, energy-sector and ICS/SCADA
// keywords, nation-state indicators, sector criticality weights, and the
// default threat actor roster. Tables are built once at process start and
// passed by reference into each pipeline call; nothing mutates them.
package signatures

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vqlam/gridwatch/internal/intel"
)

// Tables is the immutable signature set for one process lifetime.
type Tables struct {
	// Severity word lists, checked in fixed precedence: critical beats
	// high beats medium beats low. First match wins.
	CriticalWords []string
	HighWords     []string
	MediumWords   []string
	LowWords      []string

	// EnergyKeywords drive the energy-relevance membership test.
	EnergyKeywords []string

	// ICSKeywords flag operational-technology topics.
	ICSKeywords []string

	// NationStateKeywords flag state-sponsored activity in raw text.
	NationStateKeywords []string

	// SectorWeights ranks critical-infrastructure sectors by mission
	// criticality (1.0 = most critical). Consumed by the readiness mapper.
	SectorWeights map[string]float64

	// Actors is the adversary roster correlated against recent items.
	Actors []intel.ThreatActor
}

// Default returns the built-in signature tables.
func Default() *Tables {
	return &Tables{
		CriticalWords: []string{
			"critical", "zero-day", "0-day", "actively exploited",
			"ransomware", "emergency directive", "wiper",
		},
		HighWords: []string{
			"high severity", "exploit", "remote code execution", "rce",
			"unauthenticated", "backdoor", "privilege escalation",
		},
		MediumWords: []string{
			"vulnerability", "patch", "security update", "advisory",
			"denial of service", "phishing",
		},
		LowWords: []string{
			"update", "awareness", "guidance", "best practice", "bulletin",
		},
		EnergyKeywords: []string{
			"energy", "power grid", "electric", "utility", "utilities",
			"substation", "transmission", "pipeline", "oil", "gas",
			"nuclear", "renewable", "solar", "wind farm", "hydroelectric",
			"petroleum", "refinery", "lng",
		},
		ICSKeywords: []string{
			"ics", "scada", "industrial control", "operational technology",
			"ot network", "plc", "hmi", "dcs", "modbus", "dnp3", "iec 61850",
			"rtu", "historian", "safety instrumented",
		},
		NationStateKeywords: []string{
			"nation-state", "state-sponsored", "apt", "volt typhoon",
			"sandworm", "lazarus", "dragonfly", "xenotime", "kamacite",
			"electrum", "chinese state", "russian state", "iranian state",
			"north korean",
		},
		SectorWeights:  defaultSectorWeights(),
		Actors:         defaultActors(),
	}
}

// defaultSectorWeights mirrors CISA's critical-infrastructure criticality
// ranking, with Energy weighted highest.
func defaultSectorWeights() map[string]float64 {
	return map[string]float64{
		"Energy":                              1.00,
		"Financial Services":                  0.95,
		"Communications":                      0.90,
		"Information Technology":              0.90,
		"Healthcare & Public Health":          0.90,
		"Water & Wastewater Systems":          0.85,
		"Transportation Systems":              0.85,
		"Emergency Services":                  0.85,
		"Defense Industrial Base":             0.80,
		"Food & Agriculture":                  0.75,
		"Government Facilities":               0.70,
		"Critical Manufacturing":              0.70,
		"Nuclear Reactors, Materials & Waste": 0.70,
		"Chemical":                            0.65,
		"Dams":                                0.60,
		"Commercial Facilities":               0.55,
	}
}

func defaultActors() []intel.ThreatActor {
	return []intel.ThreatActor{
		{
			Name:          "Volt Typhoon",
			Aliases:       []string{"vanguard panda", "bronze silhouette", "voltzite"},
			Origin:        "China",
			TargetSectors: []string{"energy", "communications", "water", "transportation"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T1078", Name: "Valid Accounts", Weight: 0.8},
				{TechniqueID: "T1090", Name: "Proxy", Weight: 0.6},
				{TechniqueID: "T1592", Name: "Gather Victim Host Information", Weight: 0.5},
			},
		},
		{
			Name:          "Sandworm",
			Aliases:       []string{"voodoo bear", "iridium", "electrum", "apt44"},
			Origin:        "Russia",
			TargetSectors: []string{"energy", "government", "transportation"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T0816", Name: "Device Restart/Shutdown", Weight: 0.9},
				{TechniqueID: "T1485", Name: "Data Destruction", Weight: 0.8},
				{TechniqueID: "T0855", Name: "Unauthorized Command Message", Weight: 0.8},
			},
		},
		{
			Name:          "Xenotime",
			Aliases:       []string{"temp.veles", "triton actor", "trisis actor"},
			Origin:        "Russia",
			TargetSectors: []string{"energy", "oil", "gas"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T0874", Name: "Hooking", Weight: 0.7},
				{TechniqueID: "T0857", Name: "System Firmware", Weight: 0.8},
			},
		},
		{
			Name:          "APT33",
			Aliases:       []string{"elfin", "peach sandstorm", "refined kitten"},
			Origin:        "Iran",
			TargetSectors: []string{"energy", "aviation", "defense"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T1110", Name: "Brute Force", Weight: 0.7},
				{TechniqueID: "T1566", Name: "Phishing", Weight: 0.6},
			},
		},
		{
			Name:          "Lazarus Group",
			Aliases:       []string{"hidden cobra", "diamond sleet", "zinc"},
			Origin:        "North Korea",
			TargetSectors: []string{"financial", "energy", "defense"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T1195", Name: "Supply Chain Compromise", Weight: 0.8},
				{TechniqueID: "T1486", Name: "Data Encrypted for Impact", Weight: 0.7},
			},
		},
		{
			Name:          "Kamacite",
			Aliases:       []string{"fancy bear ot", "grey tornado"},
			Origin:        "Russia",
			TargetSectors: []string{"energy", "electric", "oil", "gas"},
			TTPs: []intel.WeightedTTP{
				{TechniqueID: "T1566", Name: "Phishing", Weight: 0.6},
				{TechniqueID: "T1133", Name: "External Remote Services", Weight: 0.7},
			},
		},
	}
}

// overlay is the YAML shape accepted by Load. Every section is optional;
// omitted sections keep the built-in defaults.
type overlay struct {
	CriticalWords       []string            `yaml:"critical_words"`
	HighWords           []string            `yaml:"high_words"`
	MediumWords         []string            `yaml:"medium_words"`
	LowWords            []string            `yaml:"low_words"`
	EnergyKeywords      []string            `yaml:"energy_keywords"`
	ICSKeywords         []string            `yaml:"ics_keywords"`
	NationStateKeywords []string            `yaml:"nation_state_keywords"`
	SectorWeights       map[string]float64  `yaml:"sector_weights"`
	Actors              []intel.ThreatActor `yaml:"actors"`
}

// Load reads signature overrides from a YAML file on top of the defaults.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signatures file: %w", err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse signatures file: %w", err)
	}

	t := Default()
	if len(o.CriticalWords) > 0 {
		t.CriticalWords = o.CriticalWords
	}
	if len(o.HighWords) > 0 {
		t.HighWords = o.HighWords
	}
	if len(o.MediumWords) > 0 {
		t.MediumWords = o.MediumWords
	}
	if len(o.LowWords) > 0 {
		t.LowWords = o.LowWords
	}
	if len(o.EnergyKeywords) > 0 {
		t.EnergyKeywords = o.EnergyKeywords
	}
	if len(o.ICSKeywords) > 0 {
		t.ICSKeywords = o.ICSKeywords
	}
	if len(o.NationStateKeywords) > 0 {
		t.NationStateKeywords = o.NationStateKeywords
	}
	if len(o.SectorWeights) > 0 {
		t.SectorWeights = o.SectorWeights
	}
	if len(o.Actors) > 0 {
		t.Actors = o.Actors
	}
	return t, nil
}

// ClassifySeverity assigns a severity level by scanning the text for the
// severity word lists in fixed precedence. The first list with a match
// decides; text with no match at all is unknown.
func (t *Tables) ClassifySeverity(text string) intel.Severity {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, t.CriticalWords):
		return intel.SeverityCritical
	case containsAny(lower, t.HighWords):
		return intel.SeverityHigh
	case containsAny(lower, t.MediumWords):
		return intel.SeverityMedium
	case containsAny(lower, t.LowWords):
		return intel.SeverityLow
	default:
		return intel.SeverityUnknown
	}
}

// IsEnergyRelevant reports whether the text mentions any energy-sector keyword.
func (t *Tables) IsEnergyRelevant(text string) bool {
	return containsAny(strings.ToLower(text), t.EnergyKeywords)
}

// IsICSRelated reports whether the text mentions any ICS/SCADA term.
func (t *Tables) IsICSRelated(text string) bool {
	return containsAny(strings.ToLower(text), t.ICSKeywords)
}

// HasNationStateIndicator reports whether the text carries a state-sponsored
// activity signal.
func (t *Tables) HasNationStateIndicator(text string) bool {
	return containsAny(strings.ToLower(text), t.NationStateKeywords)
}

// SectorWeight returns the criticality weight for a sector, or 0.5 for
// sectors outside the table.
func (t *Tables) SectorWeight(sector string) float64 {
	if w, ok := t.SectorWeights[sector]; ok {
		return w
	}
	return 0.5
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
