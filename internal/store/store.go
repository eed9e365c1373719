package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
)

// Sentinel errors surfaced to callers. Wrap sites add context; callers test
// with errors.Is.
var (
	ErrNotFound  = eris.New("store: not found")
	ErrDuplicate = eris.New("store: duplicate key")
)

// Store defines the persistence interface for the sentiment ingestion core.
type Store interface {
	// Customers
	GetOrCreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)

	// Call records (call SID → customer correlation, write-once)
	CreateCallRecord(ctx context.Context, callSID, customerID string) error
	GetCallRecord(ctx context.Context, callSID string) (*model.CallRecord, error)

	// Feedback
	CreateSurveyFeedback(ctx context.Context, fb model.SurveyFeedback) (*model.SurveyFeedback, error)
	UpsertSocialFeedback(ctx context.Context, fb model.SocialFeedback) (bool, error)
	ResolveFeedback(ctx context.Context, source model.FeedbackSource, id string) (*model.FeedbackRecord, error)
	ListSurveyFeedback(ctx context.Context) ([]model.SurveyFeedback, error)
	ListSocialFeedback(ctx context.Context) ([]model.SocialFeedback, error)
	ListUnresolved(ctx context.Context) ([]model.FeedbackRecord, error)

	// Aggregates
	SentimentCounts(ctx context.Context) (*model.SentimentCounts, error)
	TrendTotals(ctx context.Context) (*model.TrendTotals, error)
	DailyDirectSentiment(ctx context.Context) ([]model.DailyPercent, error)
	DailyTrendSentiment(ctx context.Context) ([]model.DailyPercent, error)

	// Trend points
	UpsertTrendPoints(ctx context.Context, points []model.TrendPoint) (int64, error)
	ListTrendPoints(ctx context.Context) ([]model.TrendPoint, error)

	// Alert distribution list
	ListRecipients(ctx context.Context) ([]string, error)
	AddRecipient(ctx context.Context, email string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
