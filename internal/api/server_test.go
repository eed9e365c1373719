package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/store"
)

type mockStore struct {
	customers []model.Customer
	resolved  *model.FeedbackRecord
	counts    model.SentimentCounts
	totals    model.TrendTotals
	direct    []model.DailyPercent
	indirect  []model.DailyPercent

	createdName  string
	createdPhone string
	recipients   []string

	err error
}

func (m *mockStore) GetOrCreateCustomer(_ context.Context, name, phone string) (*model.Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.createdName, m.createdPhone = name, phone
	return &model.Customer{ID: "cust-1", Name: name, Phone: model.NormalizePhone(phone)}, nil
}

func (m *mockStore) ListCustomers(_ context.Context) ([]model.Customer, error) {
	return m.customers, m.err
}

func (m *mockStore) ResolveFeedback(_ context.Context, _ model.FeedbackSource, _ string) (*model.FeedbackRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resolved, nil
}

func (m *mockStore) ListUnresolved(_ context.Context) ([]model.FeedbackRecord, error) {
	return nil, m.err
}

func (m *mockStore) ListSurveyFeedback(_ context.Context) ([]model.SurveyFeedback, error) {
	return nil, m.err
}

func (m *mockStore) ListSocialFeedback(_ context.Context) ([]model.SocialFeedback, error) {
	return nil, m.err
}

func (m *mockStore) ListTrendPoints(_ context.Context) ([]model.TrendPoint, error) {
	return nil, m.err
}

func (m *mockStore) SentimentCounts(_ context.Context) (*model.SentimentCounts, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.counts, nil
}

func (m *mockStore) TrendTotals(_ context.Context) (*model.TrendTotals, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.totals, nil
}

func (m *mockStore) DailyDirectSentiment(_ context.Context) ([]model.DailyPercent, error) {
	return m.direct, m.err
}

func (m *mockStore) DailyTrendSentiment(_ context.Context) ([]model.DailyPercent, error) {
	return m.indirect, m.err
}

func (m *mockStore) AddRecipient(_ context.Context, email string) error {
	if m.err != nil {
		return m.err
	}
	m.recipients = append(m.recipients, email)
	return nil
}

type mockSurveyor struct {
	callSID   string
	twiml     string
	clips     map[string][]byte
	issueErr  error
	voiceErr  error
	recordErr error

	recordedSID string
	recordedURL string
}

func (m *mockSurveyor) IssueCall(_ context.Context, _ string) (string, error) {
	return m.callSID, m.issueErr
}

func (m *mockSurveyor) VoiceInstructions(_ context.Context, _ string) (string, error) {
	return m.twiml, m.voiceErr
}

func (m *mockSurveyor) AudioClip(id string) ([]byte, bool) {
	data, ok := m.clips[id]
	return data, ok
}

func (m *mockSurveyor) HandleRecording(_ context.Context, callSID, recordingURL string) error {
	m.recordedSID, m.recordedURL = callSID, recordingURL
	return m.recordErr
}

func newTestServer(st *mockStore, sv *mockSurveyor) http.Handler {
	return NewServer(st, sv).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestServer(&mockStore{}, &mockSurveyor{})
	w := doJSON(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateCustomer(t *testing.T) {
	st := &mockStore{}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Dana","phone":"+1 (555) 123-4567"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Dana", got.Name)
	assert.Equal(t, "+15551234567", got.Phone)
	assert.Equal(t, "Dana", st.createdName)
}

func TestCreateCustomerValidation(t *testing.T) {
	h := newTestServer(&mockStore{}, &mockSurveyor{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing name", `{"phone":"+15551234567"}`},
		{"missing phone", `{"name":"Dana"}`},
		{"non numeric phone", `{"name":"Dana","phone":"---"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/customers", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestIssueCall(t *testing.T) {
	sv := &mockSurveyor{callSID: "CA123"}
	h := newTestServer(&mockStore{}, sv)

	w := doJSON(t, h, http.MethodPost, "/api/calls/cust-1", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"call_sid":"CA123"}`, w.Body.String())
}

func TestIssueCallUnknownCustomer(t *testing.T) {
	sv := &mockSurveyor{issueErr: eris.Wrap(store.ErrNotFound, "survey: load customer")}
	h := newTestServer(&mockStore{}, sv)

	w := doJSON(t, h, http.MethodPost, "/api/calls/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssueCallProviderFailure(t *testing.T) {
	sv := &mockSurveyor{issueErr: eris.New("twilio: create call")}
	h := newTestServer(&mockStore{}, sv)

	w := doJSON(t, h, http.MethodPost, "/api/calls/cust-1", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestVoiceInstructions(t *testing.T) {
	sv := &mockSurveyor{twiml: `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`}
	h := newTestServer(&mockStore{}, sv)

	w := doJSON(t, h, http.MethodPost, "/api/twilio/voice/cust-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<Response>")
}

func TestRecordingCallback(t *testing.T) {
	sv := &mockSurveyor{}
	h := newTestServer(&mockStore{}, sv)

	form := url.Values{
		"CallSid":      {"CA123"},
		"RecordingUrl": {"https://api.twilio.com/rec/RE1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/twilio/recording", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CA123", sv.recordedSID)
	assert.Equal(t, "https://api.twilio.com/rec/RE1", sv.recordedURL)
}

func TestRecordingCallbackMissingSID(t *testing.T) {
	h := newTestServer(&mockStore{}, &mockSurveyor{})

	req := httptest.NewRequest(http.MethodPost, "/api/twilio/recording", strings.NewReader("RecordingUrl=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordingCallbackUnknownCall(t *testing.T) {
	sv := &mockSurveyor{recordErr: eris.Wrap(store.ErrNotFound, "survey: load call record")}
	h := newTestServer(&mockStore{}, sv)

	form := url.Values{"CallSid": {"CA999"}}
	req := httptest.NewRequest(http.MethodPost, "/api/twilio/recording", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAudioClip(t *testing.T) {
	sv := &mockSurveyor{clips: map[string][]byte{"clip-1": []byte("mp3bytes")}}
	h := newTestServer(&mockStore{}, sv)

	w := doJSON(t, h, http.MethodGet, "/api/audio/clip-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "mp3bytes", w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/api/audio/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveFeedback(t *testing.T) {
	st := &mockStore{resolved: &model.FeedbackRecord{
		ID:         "fb-1",
		Source:     model.SourceSurvey,
		IsResolved: true,
	}}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodPost, "/api/feedback/resolve", `{"type":"survey","id":"fb-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.FeedbackRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.IsResolved)
}

func TestResolveFeedbackValidation(t *testing.T) {
	h := newTestServer(&mockStore{}, &mockSurveyor{})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"bad type", `{"type":"email","id":"fb-1"}`, http.StatusBadRequest},
		{"missing id", `{"type":"survey"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/feedback/resolve", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestResolveFeedbackNotFound(t *testing.T) {
	st := &mockStore{err: eris.Wrap(store.ErrNotFound, "store: resolve")}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodPost, "/api/feedback/resolve", `{"type":"social","id":"fb-x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddRecipient(t *testing.T) {
	st := &mockStore{}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodPost, "/api/recipients", `{"email":"ops@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"ops@example.com"}, st.recipients)

	w = doJSON(t, h, http.MethodPost, "/api/recipients", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKPIs(t *testing.T) {
	st := &mockStore{
		counts: model.SentimentCounts{
			Survey: model.SourceCounts{Good: 6, Bad: 2},
			Social: model.SourceCounts{Good: 1, Neutral: 1},
		},
		totals: model.TrendTotals{Positive: 150, Negative: 40},
	}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodGet, "/api/dashboard/kpis", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got kpiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, 0.7, got.GoodRatio, 1e-9)
	assert.InDelta(t, 0.75, got.SurveyGoodRatio, 1e-9)
	assert.InDelta(t, 0.5, got.SocialGoodRatio, 1e-9)
	assert.Equal(t, int64(150), got.TrendTotals.Positive)

	// 0.7 * 70 (direct good-%) + 0.3 * 150/190*100 (trend positive-%).
	assert.InDelta(t, 72.6842105, got.WeightedSentiment, 1e-6)
}

func TestKPIsWeightedFallsBackWithoutTrends(t *testing.T) {
	st := &mockStore{
		counts: model.SentimentCounts{
			Survey: model.SourceCounts{Good: 7, Bad: 3},
		},
	}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodGet, "/api/dashboard/kpis", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got kpiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))

	// No trend interest recorded: the direct side carries the full weight.
	assert.InDelta(t, 70.0, got.WeightedSentiment, 1e-9)
}

func TestSentimentOverTime(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := &mockStore{
		direct:   []model.DailyPercent{{Date: day, Percent: 60}},
		indirect: []model.DailyPercent{{Date: day, Percent: 40}},
	}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodGet, "/api/dashboard/sentiment-over-time", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []model.DailyPercent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.InDelta(t, 54.0, got[0].Percent, 1e-9)
}

func TestDashboardEmptyLists(t *testing.T) {
	h := newTestServer(&mockStore{}, &mockSurveyor{})

	for _, path := range []string{
		"/api/dashboard/trends",
		"/api/dashboard/insights",
		"/api/dashboard/surveys",
		"/api/dashboard/social",
	} {
		w := doJSON(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "[]\n", w.Body.String(), path)
	}
}

func TestDashboardStoreFailure(t *testing.T) {
	st := &mockStore{err: eris.New("db down")}
	h := newTestServer(st, &mockSurveyor{})

	w := doJSON(t, h, http.MethodGet, "/api/dashboard/kpis", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
