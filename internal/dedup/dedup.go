// Package dedup merges items that describe the same vulnerability or story
// across sources. CVE identifiers are the primary key; items without one
// fall back to a normalized title fingerprint. When two sources report the
// same key, the higher-priority source type survives (government beats
// energy beats vendor) and ties keep the incumbent, so input order is part
// of the contract.
package dedup

import (
	"regexp"
	"strings"

	"github.com/vqlam/gridwatch/internal/intel"
)

var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d+`)

const (
	// titleKeyLength bounds the fingerprint so trailing source-specific
	// suffixes ("— Vendor Blog") don't defeat matching.
	titleKeyLength = 50

	// minTitleKeyLength guards against merging on fingerprints too short
	// to identify a story. Shorter titles pass through unchanged.
	minTitleKeyLength = 10
)

// Deduplicate returns the reduced item list and how many items were merged
// away. Survivors keep their first-seen position, so the operation is
// idempotent and order-stable.
func Deduplicate(items []*intel.ThreatItem) ([]*intel.ThreatItem, int) {
	if len(items) == 0 {
		return nil, 0
	}

	type slot struct {
		item *intel.ThreatItem
	}

	byKey := make(map[string]*slot)
	order := make([]*slot, 0, len(items))
	removed := 0

	for _, item := range items {
		key, ok := keyFor(item)
		if !ok {
			order = append(order, &slot{item: item})
			continue
		}

		if existing, seen := byKey[key]; seen {
			removed++
			// Strictly higher priority replaces the incumbent; ties keep it.
			if item.SourceType.Priority() > existing.item.SourceType.Priority() {
				existing.item = item
			}
			continue
		}

		s := &slot{item: item}
		byKey[key] = s
		order = append(order, s)
	}

	out := make([]*intel.ThreatItem, len(order))
	for i, s := range order {
		out[i] = s.item
	}
	return out, removed
}

// keyFor derives the merge key. The second return is false when the item is
// too ambiguous to deduplicate safely.
func keyFor(item *intel.ThreatItem) (string, bool) {
	if cve := ExtractCVE(item); cve != "" {
		return "cve:" + cve, true
	}

	norm := normalizeTitle(item.Title)
	if len(norm) < minTitleKeyLength {
		return "", false
	}
	if len(norm) > titleKeyLength {
		norm = norm[:titleKeyLength]
	}
	return "title:" + norm, true
}

// ExtractCVE returns the first CVE identifier in the item's text, uppercased,
// or the empty string.
func ExtractCVE(item *intel.ThreatItem) string {
	match := cvePattern.FindString(item.Text())
	return strings.ToUpper(match)
}

// normalizeTitle lowercases and strips everything but letters, digits, and
// single spaces.
func normalizeTitle(title string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
