package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/notify"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/internal/sentiment"
)

func retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = 200 * time.Millisecond
	cfg.OnRetry = resilience.RetryLogger("store", "sentiment_counts")
	return cfg
}

// Store is the persistence surface the monitor needs.
type Store interface {
	SentimentCounts(ctx context.Context) (*model.SentimentCounts, error)
	ListRecipients(ctx context.Context) ([]string, error)
}

// Options configures the monitor.
type Options struct {
	// Threshold is the good-feedback ratio below which the monitor alerts.
	Threshold float64
	Interval  time.Duration
}

// Monitor watches the aggregate sentiment ratio and sends one alert per
// below-threshold episode. The alerting flag gives the transition
// hysteresis: further low readings inside an episode stay silent, and a
// recovery above the threshold re-arms the alert.
type Monitor struct {
	store    Store
	notifier notify.Notifier
	opts     Options
	log      *zap.Logger

	alerting bool
}

// New creates a sentiment monitor in the OK state.
func New(st Store, notifier notify.Notifier, opts Options) *Monitor {
	return &Monitor{
		store:    st,
		notifier: notifier,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "monitor")),
	}
}

// Alerting reports whether the monitor is inside a below-threshold episode.
func (m *Monitor) Alerting() bool {
	return m.alerting
}

// Check computes the current ratio and applies the threshold transition.
// It returns the ratio observed. The counts read retries on transient
// store errors so a brief database hiccup does not cost a whole tick.
func (m *Monitor) Check(ctx context.Context) (float64, error) {
	var counts *model.SentimentCounts
	err := resilience.Do(ctx, retryConfig(), func(ctx context.Context) error {
		var err error
		counts, err = m.store.SentimentCounts(ctx)
		return err
	})
	if err != nil {
		return 0, eris.Wrap(err, "monitor: load sentiment counts")
	}

	combined := counts.Combined()
	ratio := sentiment.Ratio(combined.Good, combined.Total())

	switch {
	case ratio < m.opts.Threshold && !m.alerting:
		m.alerting = true
		m.log.Warn("sentiment dropped below threshold",
			zap.Float64("ratio", ratio),
			zap.Float64("threshold", m.opts.Threshold),
			zap.Int64("total", combined.Total()),
		)
		m.sendAlert(ctx, ratio, combined)

	case ratio >= m.opts.Threshold && m.alerting:
		m.alerting = false
		m.log.Info("sentiment recovered",
			zap.Float64("ratio", ratio),
			zap.Float64("threshold", m.opts.Threshold),
		)
	}

	return ratio, nil
}

// sendAlert delivers the episode's single notification. Delivery problems
// never undo the state transition; a failed send is logged and the episode
// stays marked as alerted.
func (m *Monitor) sendAlert(ctx context.Context, ratio float64, counts model.SourceCounts) {
	recipients, err := m.store.ListRecipients(ctx)
	if err != nil {
		m.log.Error("failed to load alert recipients", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		m.log.Warn("no alert recipients configured, alert not delivered")
		return
	}

	subject := "Customer sentiment alert"
	body := fmt.Sprintf(
		"The good-feedback ratio dropped to %.2f (threshold %.2f).\n\n"+
			"Current distribution: %d good, %d neutral, %d bad across %d classified items.\n",
		ratio, m.opts.Threshold,
		counts.Good, counts.Neutral, counts.Bad, counts.Total(),
	)

	if err := m.notifier.Notify(ctx, recipients, subject, body); err != nil {
		m.log.Error("alert delivery failed", zap.Error(err))
		return
	}
	m.log.Info("alert delivered", zap.Int("recipients", len(recipients)))
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.log.Info("starting sentiment monitor",
		zap.Duration("interval", interval),
		zap.Float64("threshold", m.opts.Threshold),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("sentiment monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil {
				m.log.Error("sentiment check failed", zap.Error(err))
			}
		}
	}
}
