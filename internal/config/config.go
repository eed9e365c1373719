package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Twilio     TwilioConfig     `yaml:"twilio" mapstructure:"twilio"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs" mapstructure:"elevenlabs"`
	Deepgram   DeepgramConfig   `yaml:"deepgram" mapstructure:"deepgram"`
	Reddit     RedditConfig     `yaml:"reddit" mapstructure:"reddit"`
	Social     SocialConfig     `yaml:"social" mapstructure:"social"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Trends     TrendsConfig     `yaml:"trends" mapstructure:"trends"`
	Monitor    MonitorConfig    `yaml:"monitor" mapstructure:"monitor"`
	Alert      AlertConfig      `yaml:"alert" mapstructure:"alert"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// BaseURL is the externally reachable URL the telephony provider uses
	// for instruction and callback requests.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings for classification and
// insight generation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// TwilioConfig holds voice-call provider credentials.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken  string `yaml:"auth_token" mapstructure:"auth_token"`
	FromNumber string `yaml:"from_number" mapstructure:"from_number"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
}

// ElevenLabsConfig holds speech synthesis settings.
type ElevenLabsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	VoiceID string `yaml:"voice_id" mapstructure:"voice_id"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DeepgramConfig holds transcription settings.
type DeepgramConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RedditConfig holds forum read API settings.
type RedditConfig struct {
	Subreddit string `yaml:"subreddit" mapstructure:"subreddit"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SocialConfig configures the social ingestion pipeline.
type SocialConfig struct {
	RecentLimit   int `yaml:"recent_limit" mapstructure:"recent_limit"`
	TopLimit      int `yaml:"top_limit" mapstructure:"top_limit"`
	ItemDelaySecs int `yaml:"item_delay_secs" mapstructure:"item_delay_secs"`
	CooldownSecs  int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	IntervalSecs  int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// SerpAPIConfig holds comparative trend API settings.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TrendsConfig configures the trend ingestion pipeline. Keywords maps each
// tracked query to its fixed intent tag ("positive" or "negative").
type TrendsConfig struct {
	Window       string            `yaml:"window" mapstructure:"window"`
	IntervalSecs int               `yaml:"interval_secs" mapstructure:"interval_secs"`
	Keywords     map[string]string `yaml:"keywords" mapstructure:"keywords"`
}

// MonitorConfig configures the sentiment alert monitor.
type MonitorConfig struct {
	Threshold    float64 `yaml:"threshold" mapstructure:"threshold"`
	IntervalSecs int     `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// AlertConfig holds SMTP settings for alert delivery.
type AlertConfig struct {
	SMTPHost     string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password" mapstructure:"smtp_password"`
	From         string `yaml:"from" mapstructure:"from"`
	FromName     string `yaml:"from_name" mapstructure:"from_name"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SENTIMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("twilio.base_url", "https://api.twilio.com")
	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("deepgram.base_url", "https://api.deepgram.com")
	v.SetDefault("reddit.subreddit", "Tmobile")
	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.user_agent", "Mozilla/5.0 (compatible; sentiment-cli)")
	v.SetDefault("social.recent_limit", 30)
	v.SetDefault("social.top_limit", 20)
	v.SetDefault("social.item_delay_secs", 7)
	v.SetDefault("social.cooldown_secs", 60)
	v.SetDefault("social.interval_secs", 3600)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("trends.window", "today 3-m")
	v.SetDefault("trends.interval_secs", 86400)
	v.SetDefault("trends.keywords", map[string]string{
		"T-Mobile deals":       "positive",
		"T-Mobile 5G internet": "positive",
		"T-Mobile outage":      "negative",
		"T-Mobile problems":    "negative",
	})
	v.SetDefault("monitor.threshold", 0.70)
	v.SetDefault("monitor.interval_secs", 300)
	v.SetDefault("alert.smtp_port", "587")
	v.SetDefault("alert.from_name", "Sentiment Alerts")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
