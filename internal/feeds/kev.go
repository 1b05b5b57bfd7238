package feeds

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vqlam/gridwatch/internal/intel"
)

// kevCatalog matches the CISA known-exploited-vulnerabilities JSON feed.
type kevCatalog struct {
	Title           string             `json:"title"`
	CatalogVersion  string             `json:"catalogVersion"`
	Count           int                `json:"count"`
	Vulnerabilities []kevVulnerability `json:"vulnerabilities"`
}

type kevVulnerability struct {
	CVEID                      string `json:"cveID"`
	VendorProject              string `json:"vendorProject"`
	Product                    string `json:"product"`
	VulnerabilityName          string `json:"vulnerabilityName"`
	DateAdded                  string `json:"dateAdded"`
	ShortDescription           string `json:"shortDescription"`
	RequiredAction             string `json:"requiredAction"`
	DueDate                    string `json:"dueDate"`
	KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
	Notes                      string `json:"notes"`
}

const kevDateLayout = "2006-01-02"

// parseKEV normalizes the KEV catalog into threat items plus the parallel
// raw KEV list remediation guidance needs. Only vulnerabilities added within
// the recency window are kept, capped at maxKEVItems items; the raw list is
// the most urgent entries by due date, capped at maxRawKEVItems.
func (f *Fetcher) parseKEV(src Source, body []byte) ([]*intel.ThreatItem, []intel.KEVItem, error) {
	var catalog kevCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, nil, fmt.Errorf("kev parse: %w", err)
	}

	cutoff := f.now().Add(-kevRecencyWindow)
	prefix := slug(src.Name)

	var recent []intel.KEVItem
	for _, v := range catalog.Vulnerabilities {
		added, err := time.Parse(kevDateLayout, v.DateAdded)
		if err != nil || added.Before(cutoff) {
			continue
		}
		due, _ := time.Parse(kevDateLayout, v.DueDate)
		recent = append(recent, intel.KEVItem{
			CVEID:                      v.CVEID,
			VendorProject:              v.VendorProject,
			Product:                    v.Product,
			VulnerabilityName:          v.VulnerabilityName,
			DateAdded:                  added,
			DueDate:                    due,
			ShortDescription:           v.ShortDescription,
			RequiredAction:             v.RequiredAction,
			KnownRansomwareCampaignUse: v.KnownRansomwareCampaignUse,
			Notes:                      v.Notes,
		})
	}

	// Newest additions first so the item cap keeps the freshest entries.
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].DateAdded.After(recent[j].DateAdded)
	})

	items := make([]*intel.ThreatItem, 0, maxKEVItems)
	for i, kev := range recent {
		if i >= maxKEVItems {
			break
		}
		title := fmt.Sprintf("%s: %s", kev.CVEID, kev.VulnerabilityName)
		desc := truncate(kev.ShortDescription, descriptionLimit)
		items = append(items, &intel.ThreatItem{
			ID:               fmt.Sprintf("%s-%d", prefix, i),
			Title:            title,
			Description:      desc,
			Link:             "https://www.cisa.gov/known-exploited-vulnerabilities-catalog",
			PubDate:          kev.DateAdded,
			Source:           src.Name,
			SourceType:       src.Type,
			Severity:         kevSeverity(kev, f.tables.ClassifySeverity(title+" "+desc)),
			IsEnergyRelevant: f.tables.IsEnergyRelevant(title + " " + desc),
		})
	}

	raw := append([]intel.KEVItem(nil), recent...)
	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].DueDate.After(raw[j].DueDate)
	})
	if len(raw) > maxRawKEVItems {
		raw = raw[:maxRawKEVItems]
	}

	return items, raw, nil
}

// kevSeverity floors catalog entries at high: everything in KEV is
// confirmed exploited. Ransomware-linked entries are critical outright.
func kevSeverity(kev intel.KEVItem, classified intel.Severity) intel.Severity {
	if kev.KnownRansomwareCampaignUse == "Known" {
		return intel.SeverityCritical
	}
	if classified == intel.SeverityCritical {
		return intel.SeverityCritical
	}
	return intel.SeverityHigh
}
