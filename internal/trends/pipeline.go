package trends

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/pkg/serpapi"
)

// DefaultKeywords maps each tracked query to its fixed intent tag. Interest
// in a deal-seeking query reads as positive demand; interest in an outage
// query reads as trouble.
var DefaultKeywords = map[string]model.Intent{
	"T-Mobile deals":       model.IntentPositive,
	"T-Mobile 5G internet": model.IntentPositive,
	"T-Mobile outage":      model.IntentNegative,
	"T-Mobile problems":    model.IntentNegative,
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	UpsertTrendPoints(ctx context.Context, points []model.TrendPoint) (int64, error)
}

// Options configures one ingest run.
type Options struct {
	Keywords map[string]model.Intent
	Window   string // Google Trends date syntax, e.g. "today 3-m"
}

// Pipeline ingests comparative search-interest data for the tracked
// keyword set. Each run refreshes the whole window; re-ingested days
// overwrite their previous values.
type Pipeline struct {
	store  Store
	trends serpapi.Client
	opts   Options
	log    *zap.Logger
}

// NewPipeline creates a trend ingestion pipeline.
func NewPipeline(st Store, trends serpapi.Client, opts Options) *Pipeline {
	if len(opts.Keywords) == 0 {
		opts.Keywords = DefaultKeywords
	}
	return &Pipeline{
		store:  st,
		trends: trends,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "trends")),
	}
}

// Run fetches one timeline for all keywords and upserts the decomposed
// daily points. Transient provider failures are retried with backoff;
// a run that still cannot fetch aborts with an error.
func (p *Pipeline) Run(ctx context.Context) (int64, error) {
	keywords := make([]string, 0, len(p.opts.Keywords))
	for kw := range p.opts.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.ShouldRetry = isTransientTrendError
	retryCfg.OnRetry = resilience.RetryLogger("serpapi", "interest_over_time")

	timeline, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]serpapi.TimelinePoint, error) {
		return p.trends.InterestOverTime(ctx, keywords, p.opts.Window)
	})
	if err != nil {
		return 0, eris.Wrap(err, "trends: fetch interest timeline")
	}

	points := decompose(timeline, p.opts.Keywords)
	if len(points) == 0 {
		p.log.Warn("timeline contained no tracked keywords",
			zap.Int("timeline_days", len(timeline)),
		)
		return 0, nil
	}

	n, err := p.store.UpsertTrendPoints(ctx, points)
	if err != nil {
		return 0, eris.Wrap(err, "trends: upsert points")
	}

	p.log.Info("trend ingest finished",
		zap.Int("timeline_days", len(timeline)),
		zap.Int("points", len(points)),
		zap.Int64("upserted", n),
	)
	return n, nil
}

// decompose flattens the timeline into per-(keyword, day) rows, tagging each
// with its keyword's intent. Keywords outside the tracked set are dropped.
func decompose(timeline []serpapi.TimelinePoint, keywords map[string]model.Intent) []model.TrendPoint {
	var points []model.TrendPoint
	for _, tp := range timeline {
		for query, value := range tp.Values {
			intent, ok := keywords[query]
			if !ok {
				continue
			}
			points = append(points, model.TrendPoint{
				Query:  query,
				Intent: intent,
				Date:   tp.Date,
				Value:  value,
			})
		}
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Query < points[j].Query
	})
	return points
}

func isTransientTrendError(err error) bool {
	var apiErr *serpapi.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
