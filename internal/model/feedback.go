package model

import "time"

// Customer is a survey target, keyed by normalized phone number.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// CallRecord links a provider-issued call SID to the customer the call was
// placed for. Records are write-once: created when the call is issued and
// read when the recording callback arrives.
type CallRecord struct {
	CallSID    string    `json:"call_sid"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SurveyFeedback is a classified transcript from one completed survey call.
// Transcript and Sentiment are nil until transcription/classification ran;
// Insight is populated only for non-good sentiment.
type SurveyFeedback struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Transcript *string    `json:"transcript,omitempty"`
	Sentiment  *Sentiment `json:"sentiment,omitempty"`
	Insight    *string    `json:"insight,omitempty"`
	IsResolved bool       `json:"is_resolved"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SocialFeedback is one classified post scraped from a social platform.
// PostURL is the dedup key: re-ingesting the same post is a no-op.
type SocialFeedback struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	Content    string    `json:"content"`
	Sentiment  Sentiment `json:"sentiment"`
	Insight    *string   `json:"insight,omitempty"`
	PostURL    string    `json:"post_url"`
	IsResolved bool      `json:"is_resolved"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackSource discriminates the two concrete feedback tables.
type FeedbackSource string

const (
	SourceSurvey FeedbackSource = "survey"
	SourceSocial FeedbackSource = "social"
)

// FeedbackRecord is the source-agnostic view of a feedback row, used for
// operator triage lists and the resolve operation.
type FeedbackRecord struct {
	ID         string         `json:"id"`
	Source     FeedbackSource `json:"source"`
	Sentiment  *Sentiment     `json:"sentiment,omitempty"`
	Text       string         `json:"text"`
	Insight    *string        `json:"insight,omitempty"`
	PostURL    string         `json:"post_url,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	IsResolved bool           `json:"is_resolved"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TrendPoint is one (keyword, day) interest measurement from the trend
// provider. Unique per (Query, Date); re-ingestion overwrites Value.
type TrendPoint struct {
	Query  string    `json:"query"`
	Intent Intent    `json:"intent"`
	Date   time.Time `json:"date"`
	Value  int64     `json:"value"`
}
