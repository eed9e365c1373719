package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sentiment-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Customers ---

func TestSQLite_GetOrCreateCustomer_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.GetOrCreateCustomer(ctx, "Dana", "+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", first.Phone)

	// Same phone in a different format returns the existing row, name untouched.
	second, err := st.GetOrCreateCustomer(ctx, "Someone Else", "555-123-4567 ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Dana", second.Name)

	customers, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 1)
}

func TestSQLite_GetCustomer_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCustomer(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Call records ---

func TestSQLite_CallRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cust, err := st.GetOrCreateCustomer(ctx, "Dana", "+15551234567")
	require.NoError(t, err)

	require.NoError(t, st.CreateCallRecord(ctx, "CA123", cust.ID))

	rec, err := st.GetCallRecord(ctx, "CA123")
	require.NoError(t, err)
	assert.Equal(t, cust.ID, rec.CustomerID)

	err = st.CreateCallRecord(ctx, "CA123", cust.ID)
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = st.GetCallRecord(ctx, "CA999")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Feedback ---

func TestSQLite_SurveyFeedback_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cust, err := st.GetOrCreateCustomer(ctx, "Dana", "+15551234567")
	require.NoError(t, err)

	transcript := "service keeps dropping in my area"
	bad := model.SentimentBad
	insight := "investigate coverage in the customer's area"
	created, err := st.CreateSurveyFeedback(ctx, model.SurveyFeedback{
		CustomerID: cust.ID,
		Transcript: &transcript,
		Sentiment:  &bad,
		Insight:    &insight,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	unresolved, err := st.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, model.SourceSurvey, unresolved[0].Source)
	assert.Equal(t, transcript, unresolved[0].Text)

	resolved, err := st.ResolveFeedback(ctx, model.SourceSurvey, created.ID)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)

	unresolved, err = st.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}

func TestSQLite_SurveyFeedback_NoAnswer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cust, err := st.GetOrCreateCustomer(ctx, "Dana", "+15551234567")
	require.NoError(t, err)

	// A call with no usable recording stores a row with nil transcript and
	// nil sentiment; it must not show up in triage or counts.
	_, err = st.CreateSurveyFeedback(ctx, model.SurveyFeedback{CustomerID: cust.ID})
	require.NoError(t, err)

	list, err := st.ListSurveyFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Transcript)
	assert.Nil(t, list[0].Sentiment)

	unresolved, err := st.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	counts, err := st.SentimentCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Survey.Total())
}

func TestSQLite_SocialFeedback_Dedup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	fb := model.SocialFeedback{
		Platform:  "reddit",
		Content:   "switched last month, great coverage",
		Sentiment: model.SentimentGood,
		PostURL:   "https://reddit.com/r/tmobile/abc",
	}

	inserted, err := st.UpsertSocialFeedback(ctx, fb)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.UpsertSocialFeedback(ctx, fb)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := st.ListSocialFeedback(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLite_SentimentCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cust, err := st.GetOrCreateCustomer(ctx, "Dana", "+15551234567")
	require.NoError(t, err)

	good := model.SentimentGood
	bad := model.SentimentBad
	tr := "t"
	_, err = st.CreateSurveyFeedback(ctx, model.SurveyFeedback{CustomerID: cust.ID, Transcript: &tr, Sentiment: &good})
	require.NoError(t, err)
	_, err = st.CreateSurveyFeedback(ctx, model.SurveyFeedback{CustomerID: cust.ID, Transcript: &tr, Sentiment: &bad})
	require.NoError(t, err)

	for i, s := range []model.Sentiment{model.SentimentGood, model.SentimentNeutral} {
		_, err = st.UpsertSocialFeedback(ctx, model.SocialFeedback{
			Platform:  "reddit",
			Content:   "post",
			Sentiment: s,
			PostURL:   "https://reddit.com/post/" + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}

	counts, err := st.SentimentCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Survey.Good)
	assert.Equal(t, int64(1), counts.Survey.Bad)
	assert.Equal(t, int64(1), counts.Social.Good)
	assert.Equal(t, int64(1), counts.Social.Neutral)

	combined := counts.Combined()
	assert.Equal(t, int64(4), combined.Total())
}

// --- Trend points ---

func TestSQLite_TrendPoints_UpsertAndAggregate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	n, err := st.UpsertTrendPoints(ctx, []model.TrendPoint{
		{Query: "T-Mobile deals", Intent: model.IntentPositive, Date: day1, Value: 60},
		{Query: "T-Mobile outage", Intent: model.IntentNegative, Date: day1, Value: 40},
		{Query: "T-Mobile deals", Intent: model.IntentPositive, Date: day2, Value: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Re-ingesting the same (query, date) replaces the value.
	_, err = st.UpsertTrendPoints(ctx, []model.TrendPoint{
		{Query: "T-Mobile deals", Intent: model.IntentPositive, Date: day1, Value: 70},
	})
	require.NoError(t, err)

	points, err := st.ListTrendPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)

	totals, err := st.TrendTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), totals.Positive)
	assert.Equal(t, int64(40), totals.Negative)

	daily, err := st.DailyTrendSentiment(ctx)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.InDelta(t, 63.6, daily[0].Percent, 0.1) // 70 / 110
	assert.InDelta(t, 100.0, daily[1].Percent, 0.01)
}

func TestSQLite_DailyDirectSentiment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cust, err := st.GetOrCreateCustomer(ctx, "Dana", "+15551234567")
	require.NoError(t, err)

	good := model.SentimentGood
	bad := model.SentimentBad
	tr := "t"
	_, err = st.CreateSurveyFeedback(ctx, model.SurveyFeedback{CustomerID: cust.ID, Transcript: &tr, Sentiment: &good})
	require.NoError(t, err)
	_, err = st.UpsertSocialFeedback(ctx, model.SocialFeedback{
		Platform: "reddit", Content: "p", Sentiment: bad, PostURL: "https://reddit.com/p/1",
	})
	require.NoError(t, err)

	daily, err := st.DailyDirectSentiment(ctx)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.InDelta(t, 50.0, daily[0].Percent, 0.01)
}

// --- Recipients ---

func TestSQLite_Recipients(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AddRecipient(ctx, "ops@example.com"))
	require.NoError(t, st.AddRecipient(ctx, "ops@example.com")) // idempotent
	require.NoError(t, st.AddRecipient(ctx, "alerts@example.com"))

	emails, err := st.ListRecipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts@example.com", "ops@example.com"}, emails)
}
