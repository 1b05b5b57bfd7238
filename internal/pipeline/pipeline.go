// Package pipeline wires the four stages together: concurrent feed
// ingestion, cross-source deduplication, risk scoring, and campaign
// correlation. Each run is a pure recomputation over the latest feed
// snapshot; the only side effect is the score history write, which is
// logged and swallowed on failure because history is not part of the
// scoring contract.
package pipeline

import (
	"context"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vqlam/gridwatch/internal/correlation"
	"github.com/vqlam/gridwatch/internal/dedup"
	"github.com/vqlam/gridwatch/internal/feeds"
	"github.com/vqlam/gridwatch/internal/history"
	"github.com/vqlam/gridwatch/internal/intel"
	"github.com/vqlam/gridwatch/internal/observability"
	"github.com/vqlam/gridwatch/internal/scoring"
	"github.com/vqlam/gridwatch/internal/scoring/readiness"
	"github.com/vqlam/gridwatch/internal/signatures"
)

// IngestResult is the ingestion+dedup output exposed at the API boundary.
type IngestResult struct {
	feeds.Result
	DeduplicatedCount int `json:"deduplicatedCount"`
}

// Snapshot is the result of one full pipeline run.
type Snapshot struct {
	Ingest      IngestResult              `json:"ingest"`
	Score       scoring.Result            `json:"score"`
	Readiness   readiness.Assessment      `json:"readiness"`
	Campaigns   []intel.CampaignCandidate `json:"campaigns"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// PostureContext is the declared readiness context applied to every run.
type PostureContext struct {
	Posture           readiness.Posture
	Sector            string
	CriticalFunctions bool
}

// Options tune pipeline behavior.
type Options struct {
	// SnapshotTTL bounds how long a cached snapshot is served before a
	// request triggers a fresh run. Zero disables caching.
	SnapshotTTL time.Duration

	// HTTPClient overrides the fetch client (tests).
	HTTPClient *http.Client

	Posture PostureContext
}

// Pipeline runs the full ingest → dedup → {score, correlate} sequence.
type Pipeline struct {
	sources    []feeds.Source
	fetcher    *feeds.Fetcher
	scorer     *scoring.Engine
	correlator *correlation.Engine
	readiness  *readiness.Mapper
	tables     *signatures.Tables
	store      history.Store
	logger     *zap.Logger
	metrics    *observability.Metrics
	posture    PostureContext

	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	last *Snapshot
}

// New assembles a pipeline. store may be nil when history persistence is
// disabled; metrics may be nil in tests.
func New(sources []feeds.Source, tables *signatures.Tables, store history.Store, logger *zap.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		sources:    sources,
		fetcher:    feeds.NewFetcher(sources, tables, opts.HTTPClient, logger),
		scorer:     scoring.NewEngine(tables),
		correlator: correlation.NewEngine(tables),
		readiness:  readiness.NewMapper(tables),
		tables:     tables,
		store:      store,
		logger:     logger,
		metrics:    metrics,
		posture:    opts.Posture,
		ttl:        opts.SnapshotTTL,
		now:        time.Now,
	}
}

// Current returns a snapshot, reusing the cached one while it is fresh so
// API polling doesn't hammer the upstream feeds.
func (p *Pipeline) Current(ctx context.Context) (*Snapshot, error) {
	p.mu.Lock()
	if p.last != nil && p.ttl > 0 && p.now().Sub(p.last.GeneratedAt) < p.ttl {
		snap := p.last
		p.mu.Unlock()
		return snap, nil
	}
	p.mu.Unlock()

	snap, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
	return snap, nil
}

// Run executes one full pipeline pass. It only fails on caller
// cancellation; feed-level failures are carried inside the snapshot.
func (p *Pipeline) Run(ctx context.Context) (*Snapshot, error) {
	started := p.now()

	fetched := p.fetcher.Fetch(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := fetched.Items
	items, removed := dedup.Deduplicate(raw)
	fetched.Items = items

	score := p.scorer.Evaluate(items)
	assessment := p.readiness.Evaluate(p.readinessInput(fetched, score))
	campaigns := p.correlator.Correlate(items, p.tables.Actors)

	p.persistHistory(ctx, score)
	p.record(fetched, raw, removed, score, campaigns, p.now().Sub(started))

	p.logger.Info("pipeline run complete",
		zap.Int("items", len(items)),
		zap.Int("deduplicated", removed),
		zap.Int("sources_online", fetched.SourcesOnline),
		zap.Int("sources_total", fetched.SourcesTotal),
		zap.Float64("score", score.Score),
		zap.String("label", score.Label),
		zap.Int("campaigns", len(campaigns)),
	)

	return &Snapshot{
		Ingest:      IngestResult{Result: fetched, DeduplicatedCount: removed},
		Score:       score,
		Readiness:   assessment,
		Campaigns:   campaigns,
		GeneratedAt: started,
	}, nil
}

// readinessInput derives the posture-mapper context from the run: declared
// posture from configuration, exploitation and urgency evidence from the
// scoring output, asset exposure from the ICS factor density.
func (p *Pipeline) readinessInput(fetched feeds.Result, score scoring.Result) readiness.Input {
	var kevFactor, icsCount int
	energyRelevant := false
	for _, f := range score.Factors {
		switch f.Name {
		case "Recently Exploited Vulnerabilities":
			kevFactor = f.Count
		case "ICS/SCADA Targeting":
			icsCount = f.Count
		case "Energy Sector Threats":
			energyRelevant = true
		}
	}

	exploitation := readiness.ExploitationUnspecified
	if kevFactor > 0 {
		exploitation = readiness.ExploitationConfirmed
	} else if score.Label != "Normal" {
		exploitation = readiness.ExploitationLikely
	}

	urgency := readiness.UrgencyMedium
	switch score.Label {
	case "Severe":
		urgency = readiness.UrgencyEmergency
	case "Elevated":
		urgency = readiness.UrgencyHigh
	}

	return readiness.Input{
		Posture:           p.posture.Posture,
		Exploitation:      exploitation,
		Sector:            p.posture.Sector,
		SectorMatch:       energyRelevant,
		Urgency:           urgency,
		InKEV:             len(fetched.KEVItems) > 0,
		CriticalFunctions: p.posture.CriticalFunctions,
		AssetExposure:     math.Min(1, float64(icsCount)/10),
	}
}

// persistHistory appends the score snapshot. Failures are logged and
// swallowed: the scoring result is still returned to the caller.
func (p *Pipeline) persistHistory(ctx context.Context, score scoring.Result) {
	if p.store == nil {
		return
	}

	wrote, err := p.store.Append(ctx, history.Snapshot{
		Timestamp: score.GeneratedAt,
		Score:     score.Score,
		Label:     score.Label,
	})

	outcome := "written"
	switch {
	case err != nil:
		outcome = "error"
		p.logger.Warn("score history write failed", zap.Error(err))
	case !wrote:
		outcome = "suppressed"
	}
	if p.metrics != nil {
		p.metrics.HistoryWrites.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) record(fetched feeds.Result, raw []*intel.ThreatItem, removed int, score scoring.Result, campaigns []intel.CampaignCandidate, took time.Duration) {
	if p.metrics == nil {
		return
	}

	failed := make(map[string]bool, len(fetched.Errors))
	for _, e := range fetched.Errors {
		if i := strings.Index(e, ":"); i > 0 {
			failed[e[:i]] = true
		}
	}
	perSource := make(map[string]int)
	for _, item := range raw {
		perSource[item.Source]++
	}
	for _, src := range p.sources {
		status := "ok"
		if failed[src.Name] {
			status = "error"
		}
		p.metrics.FetchesTotal.WithLabelValues(src.Name, status).Inc()
		if n := perSource[src.Name]; n > 0 {
			p.metrics.ItemsIngested.WithLabelValues(src.Name).Add(float64(n))
		}
	}

	p.metrics.ItemsDeduplicated.Add(float64(removed))
	p.metrics.SourcesOnline.Set(float64(fetched.SourcesOnline))
	p.metrics.RiskScore.Set(score.Score)

	byTier := map[intel.Confidence]int{}
	for _, c := range campaigns {
		byTier[c.Confidence]++
	}
	for _, tier := range []intel.Confidence{intel.ConfidenceHigh, intel.ConfidenceMedium, intel.ConfidenceLow} {
		p.metrics.CampaignCandidates.WithLabelValues(string(tier)).Set(float64(byTier[tier]))
	}
	p.metrics.PipelineDuration.Observe(took.Seconds())
}
