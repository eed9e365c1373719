package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/analysis"
	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/monitor"
	"github.com/sells-group/sentiment-cli/internal/notify"
	"github.com/sells-group/sentiment-cli/internal/social"
	"github.com/sells-group/sentiment-cli/internal/store"
	"github.com/sells-group/sentiment-cli/internal/survey"
	"github.com/sells-group/sentiment-cli/internal/trends"
	anthropicpkg "github.com/sells-group/sentiment-cli/pkg/anthropic"
	"github.com/sells-group/sentiment-cli/pkg/deepgram"
	"github.com/sells-group/sentiment-cli/pkg/elevenlabs"
	"github.com/sells-group/sentiment-cli/pkg/reddit"
	"github.com/sells-group/sentiment-cli/pkg/serpapi"
	"github.com/sells-group/sentiment-cli/pkg/twilio"
)

// appEnv holds the initialized store, clients, and pipelines shared by the
// serve/call/social/trends/check commands.
type appEnv struct {
	Store     store.Store
	Analyzer  *analysis.Analyzer
	Surveys   *survey.Orchestrator
	SocialRun *social.Pipeline
	TrendsRun *trends.Pipeline
	Monitor   *monitor.Monitor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sentiment.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, all provider clients, and the pipelines.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	analyzer := analysis.NewAnalyzer(anthropicClient, cfg.Anthropic.Model)

	voiceClient := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
		twilio.WithBaseURL(cfg.Twilio.BaseURL))
	ttsClient := elevenlabs.NewClient(cfg.ElevenLabs.Key,
		elevenlabs.WithBaseURL(cfg.ElevenLabs.BaseURL),
		elevenlabs.WithVoice(cfg.ElevenLabs.VoiceID))
	sttClient := deepgram.NewClient(cfg.Deepgram.Key,
		deepgram.WithBaseURL(cfg.Deepgram.BaseURL))

	surveys := survey.NewOrchestrator(st, voiceClient, ttsClient, sttClient, analyzer, survey.Options{
		BaseURL:    cfg.Server.BaseURL,
		FromNumber: cfg.Twilio.FromNumber,
	})

	forumClient := reddit.NewClient(
		reddit.WithBaseURL(cfg.Reddit.BaseURL),
		reddit.WithUserAgent(cfg.Reddit.UserAgent),
	)
	socialRun := social.NewPipeline(st, forumClient, analyzer, social.Options{
		Subreddit:   cfg.Reddit.Subreddit,
		RecentLimit: cfg.Social.RecentLimit,
		TopLimit:    cfg.Social.TopLimit,
		ItemDelay:   time.Duration(cfg.Social.ItemDelaySecs) * time.Second,
		Cooldown:    time.Duration(cfg.Social.CooldownSecs) * time.Second,
	})

	trendsClient := serpapi.NewClient(cfg.SerpAPI.Key,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
	trendsRun := trends.NewPipeline(st, trendsClient, trends.Options{
		Keywords: keywordIntents(cfg.Trends.Keywords),
		Window:   cfg.Trends.Window,
	})

	notifier := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.Alert.SMTPHost,
		Port:     cfg.Alert.SMTPPort,
		User:     cfg.Alert.SMTPUser,
		Password: cfg.Alert.SMTPPassword,
		From:     cfg.Alert.From,
		FromName: cfg.Alert.FromName,
	})
	mon := monitor.New(st, notifier, monitor.Options{
		Threshold: cfg.Monitor.Threshold,
		Interval:  time.Duration(cfg.Monitor.IntervalSecs) * time.Second,
	})

	return &appEnv{
		Store:     st,
		Analyzer:  analyzer,
		Surveys:   surveys,
		SocialRun: socialRun,
		TrendsRun: trendsRun,
		Monitor:   mon,
	}, nil
}

// keywordIntents converts the config keyword map to typed intents,
// dropping entries with an unknown tag.
func keywordIntents(raw map[string]string) map[string]model.Intent {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]model.Intent, len(raw))
	for query, tag := range raw {
		switch intent := model.Intent(tag); intent {
		case model.IntentPositive, model.IntentNegative:
			out[query] = intent
		default:
			zap.L().Warn("ignoring trend keyword with unknown intent",
				zap.String("query", query),
				zap.String("intent", tag),
			)
		}
	}
	return out
}
