package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/db"
	"github.com/sells-group/sentiment-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths: the call correlation lookup and the two feedback writers.
var preparedStatements = map[string]string{
	"get_call_record":    `SELECT call_sid, customer_id, created_at FROM call_records WHERE call_sid = $1`,
	"insert_call_record": `INSERT INTO call_records (call_sid, customer_id, created_at) VALUES ($1, $2, $3)`,
	"insert_survey":      `INSERT INTO survey_feedback (id, customer_id, transcript, sentiment, insight, is_resolved, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"upsert_social":      `INSERT INTO social_feedback (id, platform, content, sentiment, insight, post_url, is_resolved, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (post_url) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS call_records (
	call_sid    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS survey_feedback (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	transcript  TEXT,
	sentiment   TEXT CHECK (sentiment IN ('good', 'neutral', 'bad')),
	insight     TEXT,
	is_resolved BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS social_feedback (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	platform    TEXT NOT NULL,
	content     TEXT NOT NULL,
	sentiment   TEXT NOT NULL CHECK (sentiment IN ('good', 'neutral', 'bad')),
	insight     TEXT,
	post_url    TEXT NOT NULL UNIQUE,
	is_resolved BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trend_points (
	query  TEXT NOT NULL,
	intent TEXT NOT NULL CHECK (intent IN ('positive', 'negative')),
	date   DATE NOT NULL,
	value  BIGINT NOT NULL,
	PRIMARY KEY (query, date)
);

CREATE TABLE IF NOT EXISTS recipients (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_survey_feedback_created_at ON survey_feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_survey_feedback_unresolved ON survey_feedback(is_resolved) WHERE NOT is_resolved;
CREATE INDEX IF NOT EXISTS idx_social_feedback_created_at ON social_feedback(created_at);
CREATE INDEX IF NOT EXISTS idx_social_feedback_unresolved ON social_feedback(is_resolved) WHERE NOT is_resolved;
CREATE INDEX IF NOT EXISTS idx_trend_points_date ON trend_points(date);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) GetOrCreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error) {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return nil, eris.New("postgres: empty phone")
	}

	// DO UPDATE on the conflict key makes RETURNING yield the existing row
	// without touching its name.
	var c model.Customer
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (id, name, phone, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		 RETURNING id, name, phone, created_at`,
		uuid.New().String(), name, phone, time.Now().UTC(),
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get or create customer %s", phone)
	}
	return &c, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, phone, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: customer %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get customer %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, phone, created_at FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customers")
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list customers")
}

func (s *PostgresStore) CreateCallRecord(ctx context.Context, callSID, customerID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_records (call_sid, customer_id, created_at) VALUES ($1, $2, $3)`,
		callSID, customerID, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: call record %s", callSID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: insert call record %s", callSID)
	}
	return nil
}

func (s *PostgresStore) GetCallRecord(ctx context.Context, callSID string) (*model.CallRecord, error) {
	var r model.CallRecord
	err := s.pool.QueryRow(ctx,
		`SELECT call_sid, customer_id, created_at FROM call_records WHERE call_sid = $1`, callSID,
	).Scan(&r.CallSID, &r.CustomerID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: call record %s", callSID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get call record %s", callSID)
	}
	return &r, nil
}

func (s *PostgresStore) CreateSurveyFeedback(ctx context.Context, fb model.SurveyFeedback) (*model.SurveyFeedback, error) {
	fb.ID = uuid.New().String()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO survey_feedback (id, customer_id, transcript, sentiment, insight, is_resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fb.ID, fb.CustomerID, fb.Transcript, fb.Sentiment, fb.Insight, fb.IsResolved, fb.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert survey feedback")
	}
	return &fb, nil
}

func (s *PostgresStore) UpsertSocialFeedback(ctx context.Context, fb model.SocialFeedback) (bool, error) {
	fb.ID = uuid.New().String()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO social_feedback (id, platform, content, sentiment, insight, post_url, is_resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (post_url) DO NOTHING`,
		fb.ID, fb.Platform, fb.Content, fb.Sentiment, fb.Insight, fb.PostURL, fb.IsResolved, fb.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert social feedback %s", fb.PostURL)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ResolveFeedback(ctx context.Context, source model.FeedbackSource, id string) (*model.FeedbackRecord, error) {
	switch source {
	case model.SourceSurvey:
		var rec model.FeedbackRecord
		rec.Source = model.SourceSurvey
		var transcript *string
		err := s.pool.QueryRow(ctx,
			`UPDATE survey_feedback SET is_resolved = true WHERE id = $1
			 RETURNING id, customer_id, transcript, sentiment, insight, is_resolved, created_at`,
			id,
		).Scan(&rec.ID, &rec.CustomerID, &transcript, &rec.Sentiment, &rec.Insight, &rec.IsResolved, &rec.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: survey feedback %s", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: resolve survey feedback %s", id)
		}
		if transcript != nil {
			rec.Text = *transcript
		}
		return &rec, nil

	case model.SourceSocial:
		var rec model.FeedbackRecord
		rec.Source = model.SourceSocial
		var sentiment model.Sentiment
		err := s.pool.QueryRow(ctx,
			`UPDATE social_feedback SET is_resolved = true WHERE id = $1
			 RETURNING id, content, sentiment, insight, post_url, is_resolved, created_at`,
			id,
		).Scan(&rec.ID, &rec.Text, &sentiment, &rec.Insight, &rec.PostURL, &rec.IsResolved, &rec.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: social feedback %s", id)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: resolve social feedback %s", id)
		}
		rec.Sentiment = &sentiment
		return &rec, nil

	default:
		return nil, eris.Errorf("postgres: unknown feedback source %q", source)
	}
}

func (s *PostgresStore) ListSurveyFeedback(ctx context.Context) ([]model.SurveyFeedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, transcript, sentiment, insight, is_resolved, created_at
		 FROM survey_feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list survey feedback")
	}
	defer rows.Close()

	var out []model.SurveyFeedback
	for rows.Next() {
		var fb model.SurveyFeedback
		if err := rows.Scan(&fb.ID, &fb.CustomerID, &fb.Transcript, &fb.Sentiment, &fb.Insight, &fb.IsResolved, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan survey feedback")
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list survey feedback")
}

func (s *PostgresStore) ListSocialFeedback(ctx context.Context) ([]model.SocialFeedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, platform, content, sentiment, insight, post_url, is_resolved, created_at
		 FROM social_feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list social feedback")
	}
	defer rows.Close()

	var out []model.SocialFeedback
	for rows.Next() {
		var fb model.SocialFeedback
		if err := rows.Scan(&fb.ID, &fb.Platform, &fb.Content, &fb.Sentiment, &fb.Insight, &fb.PostURL, &fb.IsResolved, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan social feedback")
		}
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list social feedback")
}

func (s *PostgresStore) ListUnresolved(ctx context.Context) ([]model.FeedbackRecord, error) {
	var out []model.FeedbackRecord

	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, COALESCE(transcript, ''), sentiment, insight, created_at
		 FROM survey_feedback
		 WHERE sentiment IN ('neutral', 'bad') AND NOT is_resolved
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved surveys")
	}
	defer rows.Close()
	for rows.Next() {
		rec := model.FeedbackRecord{Source: model.SourceSurvey}
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.Text, &rec.Sentiment, &rec.Insight, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved survey")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved surveys")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, content, sentiment, insight, post_url, created_at
		 FROM social_feedback
		 WHERE sentiment IN ('neutral', 'bad') AND NOT is_resolved
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved social")
	}
	defer rows.Close()
	for rows.Next() {
		rec := model.FeedbackRecord{Source: model.SourceSocial}
		var sentiment model.Sentiment
		if err := rows.Scan(&rec.ID, &rec.Text, &sentiment, &rec.Insight, &rec.PostURL, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved social")
		}
		rec.Sentiment = &sentiment
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved social")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PostgresStore) SentimentCounts(ctx context.Context) (*model.SentimentCounts, error) {
	var c model.SentimentCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'good'),
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'neutral'),
			(SELECT COUNT(*) FROM survey_feedback WHERE sentiment = 'bad'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'good'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'neutral'),
			(SELECT COUNT(*) FROM social_feedback WHERE sentiment = 'bad')`,
	).Scan(&c.Survey.Good, &c.Survey.Neutral, &c.Survey.Bad, &c.Social.Good, &c.Social.Neutral, &c.Social.Bad)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sentiment counts")
	}
	return &c, nil
}

func (s *PostgresStore) TrendTotals(ctx context.Context) (*model.TrendTotals, error) {
	var t model.TrendTotals
	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN intent = 'positive' THEN value ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN intent = 'negative' THEN value ELSE 0 END), 0)
		 FROM trend_points`,
	).Scan(&t.Positive, &t.Negative)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: trend totals")
	}
	return &t, nil
}

func (s *PostgresStore) DailyDirectSentiment(ctx context.Context) ([]model.DailyPercent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DATE_TRUNC('day', created_at)::date AS day,
		        (COUNT(*) FILTER (WHERE sentiment = 'good'))::float / COUNT(*)::float * 100
		 FROM (
			SELECT created_at, sentiment FROM survey_feedback WHERE sentiment IS NOT NULL
			UNION ALL
			SELECT created_at, sentiment FROM social_feedback
		 ) AS direct
		 GROUP BY 1 ORDER BY 1 ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: daily direct sentiment")
	}
	defer rows.Close()

	var out []model.DailyPercent
	for rows.Next() {
		var p model.DailyPercent
		if err := rows.Scan(&p.Date, &p.Percent); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily direct sentiment")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: daily direct sentiment")
}

func (s *PostgresStore) DailyTrendSentiment(ctx context.Context) ([]model.DailyPercent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date,
		        SUM(CASE WHEN intent = 'positive' THEN value ELSE 0 END)::float
		          / NULLIF(SUM(value), 0)::float * 100
		 FROM trend_points
		 GROUP BY date ORDER BY date ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: daily trend sentiment")
	}
	defer rows.Close()

	var out []model.DailyPercent
	for rows.Next() {
		var date time.Time
		var percent *float64
		if err := rows.Scan(&date, &percent); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily trend sentiment")
		}
		// NULL percent means interest sums to zero that day; no signal.
		if percent == nil {
			continue
		}
		out = append(out, model.DailyPercent{Date: date, Percent: *percent})
	}
	return out, eris.Wrap(rows.Err(), "postgres: daily trend sentiment")
}

func (s *PostgresStore) UpsertTrendPoints(ctx context.Context, points []model.TrendPoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{p.Query, string(p.Intent), p.Date, p.Value}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "trend_points",
		Columns:      []string{"query", "intent", "date", "value"},
		ConflictKeys: []string{"query", "date"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert trend points")
	}
	return n, nil
}

func (s *PostgresStore) ListTrendPoints(ctx context.Context) ([]model.TrendPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT query, intent, date, value FROM trend_points ORDER BY query ASC, date ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trend points")
	}
	defer rows.Close()

	var out []model.TrendPoint
	for rows.Next() {
		var p model.TrendPoint
		if err := rows.Scan(&p.Query, &p.Intent, &p.Date, &p.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trend point")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list trend points")
}

func (s *PostgresStore) ListRecipients(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM recipients ORDER BY email ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recipients")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recipient")
		}
		out = append(out, email)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list recipients")
}

func (s *PostgresStore) AddRecipient(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recipients (id, email, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), email, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add recipient %s", email)
}
