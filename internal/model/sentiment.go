package model

import "strings"

// Sentiment is the canonical label assigned to a piece of customer feedback.
type Sentiment string

const (
	SentimentGood    Sentiment = "good"
	SentimentNeutral Sentiment = "neutral"
	SentimentBad     Sentiment = "bad"
)

// Intent tags a tracked trend keyword as a positive or negative signal.
type Intent string

const (
	IntentPositive Intent = "positive"
	IntentNegative Intent = "negative"
)

// NormalizeSentiment collapses a raw classifier reply to one of the three
// canonical labels. The reply is lowercased and stripped of everything but
// letters before matching; anything unrecognized becomes neutral so a
// misbehaving classifier can never poison the label set.
func NormalizeSentiment(raw string) Sentiment {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	switch b.String() {
	case "good":
		return SentimentGood
	case "bad":
		return SentimentBad
	default:
		return SentimentNeutral
	}
}

// NeedsInsight reports whether feedback with this sentiment should have an
// improvement insight generated for it.
func (s Sentiment) NeedsInsight() bool {
	return s == SentimentNeutral || s == SentimentBad
}
