package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sentiment-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and single-node deployments; Postgres is the production driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS call_records (
	call_sid    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS survey_feedback (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	transcript  TEXT,
	sentiment   TEXT CHECK (sentiment IN ('good', 'neutral', 'bad')),
	insight     TEXT,
	is_resolved INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS social_feedback (
	id          TEXT PRIMARY KEY,
	platform    TEXT NOT NULL,
	content     TEXT NOT NULL,
	sentiment   TEXT NOT NULL CHECK (sentiment IN ('good', 'neutral', 'bad')),
	insight     TEXT,
	post_url    TEXT NOT NULL UNIQUE,
	is_resolved INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS trend_points (
	query  TEXT NOT NULL,
	intent TEXT NOT NULL CHECK (intent IN ('positive', 'negative')),
	date   DATE NOT NULL,
	value  INTEGER NOT NULL,
	PRIMARY KEY (query, date)
);

CREATE TABLE IF NOT EXISTS recipients (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_survey_feedback_created_at ON survey_feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_social_feedback_created_at ON social_feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_trend_points_date ON trend_points(date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func isSQLiteUnique(err error) bool {
	// modernc.org/sqlite surfaces constraint failures as formatted errors;
	// there is no exported error type to assert against.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) GetOrCreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error) {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return nil, eris.New("sqlite: empty phone")
	}

	var c model.Customer
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO customers (id, name, phone, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (phone) DO UPDATE SET phone = excluded.phone
		 RETURNING id, name, phone, created_at`,
		uuid.New().String(), name, phone, time.Now().UTC(),
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get or create customer %s", phone)
	}
	return &c, nil
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, created_at FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: customer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get customer %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, phone, created_at FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customers")
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list customers")
}

func (s *SQLiteStore) CreateCallRecord(ctx context.Context, callSID, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_records (call_sid, customer_id, created_at) VALUES (?, ?, ?)`,
		callSID, customerID, time.Now().UTC(),
	)
	if isSQLiteUnique(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: call record %s", callSID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert call record %s", callSID)
	}
	return nil
}

func (s *SQLiteStore) GetCallRecord(ctx context.Context, callSID string) (*model.CallRecord, error) {
	var r model.CallRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT call_sid, customer_id, created_at FROM call_records WHERE call_sid = ?`, callSID,
	).Scan(&r.CallSID, &r.CustomerID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: call record %s", callSID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get call record %s", callSID)
	}
	return &r, nil
}

func (s *SQLiteStore) CreateSurveyFeedback(ctx context.Context, fb model.SurveyFeedback) (*model.SurveyFeedback, error) {
	fb.ID = uuid.New().String()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO survey_feedback (id, customer_id, transcript, sentiment, insight, is_resolved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.CustomerID, fb.Transcript, sentimentPtrStr(fb.Sentiment), fb.Insight, fb.IsResolved, fb.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert survey feedback")
	}
	return &fb, nil
}

func (s *SQLiteStore) UpsertSocialFeedback(ctx context.Context, fb model.SocialFeedback) (bool, error) {
	fb.ID = uuid.New().String()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO social_feedback (id, platform, content, sentiment, insight, post_url, is_resolved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (post_url) DO NOTHING`,
		fb.ID, fb.Platform, fb.Content, string(fb.Sentiment), fb.Insight, fb.PostURL, fb.IsResolved, fb.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert social feedback %s", fb.PostURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ResolveFeedback(ctx context.Context, source model.FeedbackSource, id string) (*model.FeedbackRecord, error) {
	switch source {
	case model.SourceSurvey:
		rec := model.FeedbackRecord{Source: model.SourceSurvey}
		var transcript, sentiment sql.NullString
		err := s.db.QueryRowContext(ctx,
			`UPDATE survey_feedback SET is_resolved = 1 WHERE id = ?
			 RETURNING id, customer_id, transcript, sentiment, insight, is_resolved, created_at`,
			id,
		).Scan(&rec.ID, &rec.CustomerID, &transcript, &sentiment, &rec.Insight, &rec.IsResolved, &rec.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: survey feedback %s", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: resolve survey feedback %s", id)
		}
		rec.Text = transcript.String
		if sentiment.Valid {
			v := model.Sentiment(sentiment.String)
			rec.Sentiment = &v
		}
		return &rec, nil

	case model.SourceSocial:
		rec := model.FeedbackRecord{Source: model.SourceSocial}
		var sentiment model.Sentiment
		err := s.db.QueryRowContext(ctx,
			`UPDATE social_feedback SET is_resolved = 1 WHERE id = ?
			 RETURNING id, content, sentiment, insight, post_url, is_resolved, created_at`,
			id,
		).Scan(&rec.ID, &rec.Text, &sentiment, &rec.Insight, &rec.PostURL, &rec.IsResolved, &rec.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: social feedback %s", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: resolve social feedback %s", id)
		}
		rec.Sentiment = &sentiment
		return &rec, nil

	default:
		return nil, eris.Errorf("sqlite: unknown feedback source %q", source)
	}
}

func (s *SQLiteStore) ListSurveyFeedback(ctx context.Context) ([]model.SurveyFeedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, transcript, sentiment, insight, is_resolved, created_at
		 FROM survey_feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list survey feedback")
	}
	defer rows.Close()

	var out []model.SurveyFeedback
	for rows.Next() {
		var fb model.SurveyFeedback
		var sentiment sql.NullString
		if err := rows.Scan(&fb.ID, &fb.CustomerID, &fb.Transcript, &sentiment, &fb.Insight, &fb.IsResolved, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan survey feedback")
		}
		if sentiment.Valid {
			v := model.Sentiment(sentiment.String)
			fb.Sentiment = &v
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list survey feedback")
}

func (s *SQLiteStore) ListSocialFeedback(ctx context.Context) ([]model.SocialFeedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, content, sentiment, insight, post_url, is_resolved, created_at
		 FROM social_feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list social feedback")
	}
	defer rows.Close()

	var out []model.SocialFeedback
	for rows.Next() {
		var fb model.SocialFeedback
		if err := rows.Scan(&fb.ID, &fb.Platform, &fb.Content, &fb.Sentiment, &fb.Insight, &fb.PostURL, &fb.IsResolved, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan social feedback")
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list social feedback")
}

func (s *SQLiteStore) ListUnresolved(ctx context.Context) ([]model.FeedbackRecord, error) {
	var out []model.FeedbackRecord

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, COALESCE(transcript, ''), sentiment, insight, created_at
		 FROM survey_feedback
		 WHERE sentiment IN ('neutral', 'bad') AND is_resolved = 0
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved surveys")
	}
	defer rows.Close()
	for rows.Next() {
		rec := model.FeedbackRecord{Source: model.SourceSurvey}
		var sentiment sql.NullString
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.Text, &sentiment, &rec.Insight, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved survey")
		}
		if sentiment.Valid {
			v := model.Sentiment(sentiment.String)
			rec.Sentiment = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved surveys")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, content, sentiment, insight, post_url, created_at
		 FROM social_feedback
		 WHERE sentiment IN ('neutral', 'bad') AND is_resolved = 0
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved social")
	}
	defer rows.Close()
	for rows.Next() {
		rec := model.FeedbackRecord{Source: model.SourceSocial}
		var sentiment model.Sentiment
		if err := rows.Scan(&rec.ID, &rec.Text, &sentiment, &rec.Insight, &rec.PostURL, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved social")
		}
		rec.Sentiment = &sentiment
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved social")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SQLiteStore) SentimentCounts(ctx context.Context) (*model.SentimentCounts, error) {
	var c model.SentimentCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'good'),
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'neutral'),
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'bad'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'good'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'neutral'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'bad')`,
	).Scan(&c.Survey.Good, &c.Survey.Neutral, &c.Survey.Bad, &c.Social.Good, &c.Social.Neutral, &c.Social.Bad)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sentiment counts")
	}
	return &c, nil
}

func (s *SQLiteStore) TrendTotals(ctx context.Context) (*model.TrendTotals, error) {
	var t model.TrendTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN intent = 'positive' THEN value ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN intent = 'negative' THEN value ELSE 0 END), 0)
		 FROM trend_points`,
	).Scan(&t.Positive, &t.Negative)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: trend totals")
	}
	return &t, nil
}

func (s *SQLiteStore) DailyDirectSentiment(ctx context.Context) ([]model.DailyPercent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(created_at) AS day,
		        CAST(SUM(CASE WHEN sentiment = 'good' THEN 1 ELSE 0 END) AS REAL) / COUNT(*) * 100
		 FROM (
			SELECT created_at, sentiment FROM survey_feedback WHERE sentiment IS NOT NULL
			UNION ALL
			SELECT created_at, sentiment FROM social_feedback
		 )
		 GROUP BY 1 ORDER BY 1 ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: daily direct sentiment")
	}
	defer rows.Close()
	return scanDailyPercent(rows, "sqlite: daily direct sentiment")
}

func (s *SQLiteStore) DailyTrendSentiment(ctx context.Context) ([]model.DailyPercent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date,
		        CAST(SUM(CASE WHEN intent = 'positive' THEN value ELSE 0 END) AS REAL)
		          / NULLIF(SUM(value), 0) * 100
		 FROM trend_points
		 GROUP BY date ORDER BY date ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: daily trend sentiment")
	}
	defer rows.Close()
	return scanDailyPercent(rows, "sqlite: daily trend sentiment")
}

func scanDailyPercent(rows *sql.Rows, wrapMsg string) ([]model.DailyPercent, error) {
	var out []model.DailyPercent
	for rows.Next() {
		var day string
		var percent sql.NullFloat64
		if err := rows.Scan(&day, &percent); err != nil {
			return nil, eris.Wrap(err, wrapMsg)
		}
		if !percent.Valid {
			continue
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: parse day %s", wrapMsg, day)
		}
		out = append(out, model.DailyPercent{Date: date, Percent: percent.Float64})
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}

func (s *SQLiteStore) UpsertTrendPoints(ctx context.Context, points []model.TrendPoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert trend points: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trend_points (query, intent, date, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (query, date) DO UPDATE SET intent = excluded.intent, value = excluded.value`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert trend points: prepare")
	}
	defer stmt.Close()

	var n int64
	for _, p := range points {
		res, err := stmt.ExecContext(ctx, p.Query, string(p.Intent), p.Date.Format("2006-01-02"), p.Value)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert trend point %s/%s", p.Query, p.Date.Format("2006-01-02"))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert trend points: commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListTrendPoints(ctx context.Context) ([]model.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, intent, date, value FROM trend_points ORDER BY query ASC, date ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trend points")
	}
	defer rows.Close()

	var out []model.TrendPoint
	for rows.Next() {
		var p model.TrendPoint
		var day string
		if err := rows.Scan(&p.Query, &p.Intent, &day, &p.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trend point")
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse trend date %s", day)
		}
		p.Date = date
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list trend points")
}

func (s *SQLiteStore) ListRecipients(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM recipients ORDER BY email ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recipients")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recipient")
		}
		out = append(out, email)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list recipients")
}

func (s *SQLiteStore) AddRecipient(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients (id, email, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), email, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add recipient %s", email)
}

func sentimentPtrStr(s *model.Sentiment) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
