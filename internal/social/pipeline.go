package social

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/pkg/reddit"
)

const platformReddit = "reddit"

// Store is the persistence surface the pipeline needs.
type Store interface {
	UpsertSocialFeedback(ctx context.Context, fb model.SocialFeedback) (bool, error)
}

// Analyzer classifies posts and generates improvement insights.
type Analyzer interface {
	Classify(ctx context.Context, text string) (model.Sentiment, error)
	GenerateInsight(ctx context.Context, text string, label model.Sentiment) (string, error)
}

// Options configures one scrape run.
type Options struct {
	Subreddit   string
	RecentLimit int
	TopLimit    int
	ItemDelay   time.Duration
	Cooldown    time.Duration
}

// RunStats summarizes one scrape run.
type RunStats struct {
	Fetched    int
	Candidates int
	Inserted   int
	Duplicates int
	Skipped    int
}

// Pipeline scrapes a subreddit, classifies each post, and ingests the
// results. Runs are sequential and paced; a post that fails to process is
// logged and skipped, never aborting the run.
type Pipeline struct {
	store    Store
	forum    reddit.Client
	analyzer Analyzer
	opts     Options
	pace     *pacer
	log      *zap.Logger
}

// NewPipeline creates a social ingestion pipeline.
func NewPipeline(st Store, forum reddit.Client, analyzer Analyzer, opts Options) *Pipeline {
	return &Pipeline{
		store:    st,
		forum:    forum,
		analyzer: analyzer,
		opts:     opts,
		pace:     newPacer(opts.ItemDelay, opts.Cooldown),
		log:      zap.L().With(zap.String("component", "social")),
	}
}

// Run executes one scrape. Fetch failures abort the run; per-item failures
// do not. Re-running over the same posts is a no-op thanks to the post-URL
// dedup key in the store.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	posts, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{Fetched: len(posts)}
	candidates := dedupe(posts)
	stats.Candidates = len(candidates)

	p.log.Info("scrape run starting",
		zap.Int("fetched", stats.Fetched),
		zap.Int("candidates", stats.Candidates),
	)

	for i, post := range candidates {
		if err := p.process(ctx, post, stats); err != nil {
			stats.Skipped++
			p.log.Warn("post skipped",
				zap.String("post_id", post.ID),
				zap.Error(err),
			)
		}

		// Pause between items, not after the last one.
		if i < len(candidates)-1 {
			if err := p.pace.Wait(ctx); err != nil {
				return stats, eris.Wrap(err, "social: run canceled")
			}
		}
	}

	p.log.Info("scrape run finished",
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (p *Pipeline) fetch(ctx context.Context) ([]reddit.Post, error) {
	recent, err := p.forum.ListPosts(ctx, reddit.ListPostsRequest{
		Subreddit: p.opts.Subreddit,
		Sort:      reddit.SortNew,
		Limit:     p.opts.RecentLimit,
	})
	if err != nil {
		return nil, wrapForumError(err, "social: fetch recent posts")
	}

	top, err := p.forum.ListPosts(ctx, reddit.ListPostsRequest{
		Subreddit: p.opts.Subreddit,
		Sort:      reddit.SortTop,
		Limit:     p.opts.TopLimit,
		Timeframe: "year",
	})
	if err != nil {
		return nil, wrapForumError(err, "social: fetch top posts")
	}

	return append(recent, top...), nil
}

// process classifies and ingests one post. A rate-limited classification
// triggers the long cooldown and drops the post; the run picks up again
// with the next item.
func (p *Pipeline) process(ctx context.Context, post reddit.Post, stats *RunStats) error {
	text := postText(post)

	sentiment, err := p.analyzer.Classify(ctx, text)
	if resilience.IsRateLimited(err) {
		p.log.Warn("classifier rate limited, cooling off",
			zap.String("post_id", post.ID),
			zap.Duration("cooldown", p.pace.cooldown),
		)
		if cerr := p.pace.CoolOff(ctx); cerr != nil {
			return eris.Wrap(cerr, "social: cooldown canceled")
		}
		return eris.Wrap(err, "social: classify post")
	}
	if err != nil {
		return eris.Wrap(err, "social: classify post")
	}

	var insight *string
	if sentiment.NeedsInsight() {
		if suggestion, ierr := p.analyzer.GenerateInsight(ctx, text, sentiment); ierr != nil {
			p.log.Warn("insight generation failed",
				zap.String("post_id", post.ID),
				zap.Error(ierr),
			)
		} else {
			insight = &suggestion
		}
	}

	inserted, err := p.store.UpsertSocialFeedback(ctx, model.SocialFeedback{
		Platform:  platformReddit,
		Content:   text,
		Sentiment: sentiment,
		Insight:   insight,
		PostURL:   post.Permalink,
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		return eris.Wrap(err, "social: upsert feedback")
	}
	if inserted {
		stats.Inserted++
	} else {
		stats.Duplicates++
	}
	return nil
}

// dedupe merges the recent and top listings by post id and drops posts with
// no usable text.
func dedupe(posts []reddit.Post) []reddit.Post {
	seen := make(map[string]bool, len(posts))
	out := make([]reddit.Post, 0, len(posts))
	for _, post := range posts {
		if seen[post.ID] {
			continue
		}
		seen[post.ID] = true
		if strings.TrimSpace(post.Title) == "" && strings.TrimSpace(post.Body) == "" {
			continue
		}
		out = append(out, post)
	}
	return out
}

func postText(post reddit.Post) string {
	if strings.TrimSpace(post.Body) == "" {
		return post.Title
	}
	return post.Title + "\n\n" + post.Body
}

// wrapForumError tags listing failures as transient when the status warrants
// it so callers and retry wrappers can tell them apart.
func wrapForumError(err error, msg string) error {
	var apiErr *reddit.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return eris.Wrap(resilience.NewTransientError(err, apiErr.StatusCode), msg)
	}
	return eris.Wrap(err, msg)
}
