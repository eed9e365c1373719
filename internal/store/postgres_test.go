package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sentiment-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestGetOrCreateCustomer(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO customers .+ ON CONFLICT \(phone\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "Dana", "+15551234567", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "created_at"}).
			AddRow("cust-1", "Dana", "+15551234567", now))

	c, err := s.GetOrCreateCustomer(context.Background(), "Dana", "+1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", c.ID)
	assert.Equal(t, "+15551234567", c.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateCustomerEmptyPhone(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.GetOrCreateCustomer(context.Background(), "Dana", "---")
	require.Error(t, err)
}

func TestGetCustomerNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, phone, created_at FROM customers`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCustomer(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCallRecordDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO call_records`).
		WithArgs("CA123", "cust-1", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateCallRecord(context.Background(), "CA123", "cust-1")
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCallRecord(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT call_sid, customer_id, created_at FROM call_records`).
		WithArgs("CA123").
		WillReturnRows(pgxmock.NewRows([]string{"call_sid", "customer_id", "created_at"}).
			AddRow("CA123", "cust-1", now))

	rec, err := s.GetCallRecord(context.Background(), "CA123")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", rec.CustomerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSocialFeedback(t *testing.T) {
	s, mock := newMockStore(t)
	fb := model.SocialFeedback{
		Platform:  "reddit",
		Content:   "coverage dropped again",
		Sentiment: model.SentimentBad,
		PostURL:   "https://reddit.com/r/tmobile/abc",
	}

	t.Run("inserted", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO social_feedback .+ ON CONFLICT \(post_url\) DO NOTHING`).
			WithArgs(pgxmock.AnyArg(), fb.Platform, fb.Content, fb.Sentiment, fb.Insight, fb.PostURL, false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		inserted, err := s.UpsertSocialFeedback(context.Background(), fb)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("already seen", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO social_feedback .+ ON CONFLICT \(post_url\) DO NOTHING`).
			WithArgs(pgxmock.AnyArg(), fb.Platform, fb.Content, fb.Sentiment, fb.Insight, fb.PostURL, false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		inserted, err := s.UpsertSocialFeedback(context.Background(), fb)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveFeedback(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	bad := model.SentimentBad
	insight := "follow up about billing"

	t.Run("survey", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE survey_feedback SET is_resolved = true`).
			WithArgs("fb-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "transcript", "sentiment", "insight", "is_resolved", "created_at"}).
				AddRow("fb-1", "cust-1", strPtr("transcript"), &bad, &insight, true, now))

		rec, err := s.ResolveFeedback(context.Background(), model.SourceSurvey, "fb-1")
		require.NoError(t, err)
		assert.True(t, rec.IsResolved)
		assert.Equal(t, model.SourceSurvey, rec.Source)
		assert.Equal(t, "transcript", rec.Text)
	})

	t.Run("social not found", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE social_feedback SET is_resolved = true`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.ResolveFeedback(context.Background(), model.SourceSocial, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := s.ResolveFeedback(context.Background(), model.FeedbackSource("carrier-pigeon"), "fb-1")
		require.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSentimentCounts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM survey_feedback`).
		WillReturnRows(pgxmock.NewRows([]string{"sg", "sn", "sb", "og", "on", "ob"}).
			AddRow(int64(5), int64(2), int64(1), int64(3), int64(4), int64(2)))

	c, err := s.SentimentCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), c.Survey.Total())
	assert.Equal(t, int64(9), c.Social.Total())
	combined := c.Combined()
	assert.Equal(t, int64(8), combined.Good)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTrendPoints(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []model.TrendPoint{
		{Query: "T-Mobile deals", Intent: model.IntentPositive, Date: day, Value: 72},
		{Query: "T-Mobile outage", Intent: model.IntentNegative, Date: day, Value: 18},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_trend_points"}, []string{"query", "intent", "date", "value"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "trend_points"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertTrendPoints(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTrendPointsEmpty(t *testing.T) {
	s, _ := newMockStore(t)
	n, err := s.UpsertTrendPoints(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func strPtr(s string) *string { return &s }
