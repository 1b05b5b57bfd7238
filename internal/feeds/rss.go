package feeds

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vqlam/gridwatch/internal/intel"
)

// rssDocument covers the RSS 2.0 subset the pipeline needs. encoding/xml
// resolves CDATA and plain character data the same way, so both description
// styles land in the Description field.
type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// pubDateLayouts are tried in order. Feeds in the wild mix RFC1123 and
// RFC822 variants freely.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// parseRSS normalizes an RSS payload into at most maxRSSItems threat items.
// Missing fields are repaired with safe defaults rather than dropping the
// item: untitled title, empty description/link, ingestion-time pubDate.
func (f *Fetcher) parseRSS(src Source, body []byte) ([]*intel.ThreatItem, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("rss parse: %w", err)
	}

	prefix := slug(src.Name)
	items := make([]*intel.ThreatItem, 0, len(doc.Channel.Items))

	for i, raw := range doc.Channel.Items {
		if len(items) >= maxRSSItems {
			break
		}

		title := strings.TrimSpace(raw.Title)
		if title == "" {
			title = "Untitled advisory"
		}

		desc := cleanDescription(raw.Description)
		text := title + " " + desc

		items = append(items, &intel.ThreatItem{
			ID:               fmt.Sprintf("%s-%d", prefix, i),
			Title:            title,
			Description:      truncate(desc, descriptionLimit),
			Link:             strings.TrimSpace(raw.Link),
			PubDate:          f.parsePubDate(raw.PubDate),
			Source:           src.Name,
			SourceType:       src.Type,
			Severity:         f.tables.ClassifySeverity(text),
			IsEnergyRelevant: f.tables.IsEnergyRelevant(text),
		})
	}

	return items, nil
}

// parsePubDate tries the known layouts and falls back to the ingestion time
// so PubDate is always a valid instant.
func (f *Fetcher) parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f.now()
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return f.now()
}

// cleanDescription strips markup and collapses whitespace. Keyword
// classification runs over the cleaned text, matching what a reader sees.
func cleanDescription(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
