package model

import "time"

// SourceCounts tallies classified feedback rows by label for one source.
type SourceCounts struct {
	Good    int64 `json:"good"`
	Neutral int64 `json:"neutral"`
	Bad     int64 `json:"bad"`
}

// Total is the number of classified rows in the tally.
func (c SourceCounts) Total() int64 {
	return c.Good + c.Neutral + c.Bad
}

// SentimentCounts holds the per-source tallies the monitor and the KPI
// endpoint aggregate over.
type SentimentCounts struct {
	Survey SourceCounts `json:"survey"`
	Social SourceCounts `json:"social"`
}

// Combined merges the survey and social tallies.
func (c SentimentCounts) Combined() SourceCounts {
	return SourceCounts{
		Good:    c.Survey.Good + c.Social.Good,
		Neutral: c.Survey.Neutral + c.Social.Neutral,
		Bad:     c.Survey.Bad + c.Social.Bad,
	}
}

// TrendTotals sums trend interest values by intent across all points.
type TrendTotals struct {
	Positive int64 `json:"positive"`
	Negative int64 `json:"negative"`
}

// DailyPercent is one day's sentiment percentage for a single series
// (direct good-% or indirect positive-%).
type DailyPercent struct {
	Date    time.Time `json:"date"`
	Percent float64   `json:"percent"`
}
