// Package api exposes the HTTP surface: telephony webhooks, operator
// actions, and the dashboard read endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/sentiment"
	"github.com/sells-group/sentiment-cli/internal/store"
	"github.com/sells-group/sentiment-cli/pkg/twilio"
)

// Store is the persistence surface the HTTP handlers need.
type Store interface {
	GetOrCreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	ResolveFeedback(ctx context.Context, source model.FeedbackSource, id string) (*model.FeedbackRecord, error)
	ListUnresolved(ctx context.Context) ([]model.FeedbackRecord, error)
	ListSurveyFeedback(ctx context.Context) ([]model.SurveyFeedback, error)
	ListSocialFeedback(ctx context.Context) ([]model.SocialFeedback, error)
	ListTrendPoints(ctx context.Context) ([]model.TrendPoint, error)
	SentimentCounts(ctx context.Context) (*model.SentimentCounts, error)
	TrendTotals(ctx context.Context) (*model.TrendTotals, error)
	DailyDirectSentiment(ctx context.Context) ([]model.DailyPercent, error)
	DailyTrendSentiment(ctx context.Context) ([]model.DailyPercent, error)
	AddRecipient(ctx context.Context, email string) error
}

// Surveyor drives the outbound survey-call lifecycle.
type Surveyor interface {
	IssueCall(ctx context.Context, customerID string) (string, error)
	VoiceInstructions(ctx context.Context, customerID string) (string, error)
	AudioClip(id string) ([]byte, bool)
	HandleRecording(ctx context.Context, callSID, recordingURL string) error
}

// Server holds the handler dependencies.
type Server struct {
	store   Store
	surveys Surveyor
	log     *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(st Store, surveys Surveyor) *Server {
	return &Server{
		store:   st,
		surveys: surveys,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/customers", s.handleCreateCustomer)
		r.Get("/customers", s.handleListCustomers)
		r.Post("/calls/{customerID}", s.handleIssueCall)

		r.Post("/twilio/voice/{customerID}", s.handleVoice)
		r.Post("/twilio/recording", s.handleRecording)
		r.Get("/audio/{clipID}", s.handleAudio)

		r.Post("/feedback/resolve", s.handleResolve)
		r.Post("/recipients", s.handleAddRecipient)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/kpis", s.handleKPIs)
			r.Get("/sentiment-over-time", s.handleSentimentOverTime)
			r.Get("/trends", s.handleTrends)
			r.Get("/insights", s.handleInsights)
			r.Get("/surveys", s.handleSurveys)
			r.Get("/social", s.handleSocial)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if model.NormalizePhone(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	customer, err := s.store.GetOrCreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		s.log.Error("create customer failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create customer")
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListCustomers(r.Context())
	if err != nil {
		s.log.Error("list customers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleIssueCall(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	sid, err := s.surveys.IssueCall(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.log.Error("issue call failed", zap.String("customer_id", customerID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to place call")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"call_sid": sid})
}

// handleVoice answers the telephony provider's instruction fetch with the
// survey TwiML for the customer the call was placed to.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	twiml, err := s.surveys.VoiceInstructions(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.log.Error("voice instructions failed", zap.String("customer_id", customerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build call instructions")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(twiml))
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	cb, err := twilio.ParseRecordingCallback(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recording callback")
		return
	}

	if err := s.surveys.HandleRecording(r.Context(), cb.CallSID, cb.RecordingURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown call")
			return
		}
		s.log.Error("recording processing failed", zap.String("call_sid", cb.CallSID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process recording")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	clipID := chi.URLParam(r, "clipID")

	data, ok := s.surveys.AudioClip(clipID)
	if !ok {
		writeError(w, http.StatusNotFound, "audio clip not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	source := model.FeedbackSource(req.Type)
	if source != model.SourceSurvey && source != model.SourceSocial {
		writeError(w, http.StatusBadRequest, "type must be survey or social")
		return
	}

	record, err := s.store.ResolveFeedback(r.Context(), source, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback not found")
			return
		}
		s.log.Error("resolve feedback failed", zap.String("id", req.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve feedback")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	if err := s.store.AddRecipient(r.Context(), req.Email); err != nil {
		s.log.Error("add recipient failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to add recipient")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

// kpiResponse is the dashboard headline block. WeightedSentiment blends the
// direct good-percentage with the trend positive-percentage 70/30.
type kpiResponse struct {
	Counts            model.SentimentCounts `json:"counts"`
	SurveyGoodRatio   float64               `json:"survey_good_ratio"`
	SocialGoodRatio   float64               `json:"social_good_ratio"`
	GoodRatio         float64               `json:"good_ratio"`
	TrendTotals       model.TrendTotals     `json:"trend_totals"`
	WeightedSentiment float64               `json:"weighted_sentiment"`
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.SentimentCounts(r.Context())
	if err != nil {
		s.log.Error("load sentiment counts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load counts")
		return
	}
	totals, err := s.store.TrendTotals(r.Context())
	if err != nil {
		s.log.Error("load trend totals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load trend totals")
		return
	}

	combined := counts.Combined()

	var direct *float64
	if combined.Total() > 0 {
		pct := sentiment.Ratio(combined.Good, combined.Total()) * 100
		direct = &pct
	}
	var indirect *float64
	if interest := totals.Positive + totals.Negative; interest > 0 {
		pct := float64(totals.Positive) / float64(interest) * 100
		indirect = &pct
	}

	writeJSON(w, http.StatusOK, kpiResponse{
		Counts:            *counts,
		SurveyGoodRatio:   sentiment.Ratio(counts.Survey.Good, counts.Survey.Total()),
		SocialGoodRatio:   sentiment.Ratio(counts.Social.Good, counts.Social.Total()),
		GoodRatio:         sentiment.Ratio(combined.Good, combined.Total()),
		TrendTotals:       *totals,
		WeightedSentiment: sentiment.BlendTotal(direct, indirect),
	})
}

func (s *Server) handleSentimentOverTime(w http.ResponseWriter, r *http.Request) {
	direct, err := s.store.DailyDirectSentiment(r.Context())
	if err != nil {
		s.log.Error("load direct sentiment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sentiment series")
		return
	}
	indirect, err := s.store.DailyTrendSentiment(r.Context())
	if err != nil {
		s.log.Error("load trend sentiment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sentiment series")
		return
	}

	blended := sentiment.BlendDaily(direct, indirect)
	if blended == nil {
		blended = []model.DailyPercent{}
	}
	writeJSON(w, http.StatusOK, blended)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.ListTrendPoints(r.Context())
	if err != nil {
		s.log.Error("list trend points failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load trend points")
		return
	}
	if points == nil {
		points = []model.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListUnresolved(r.Context())
	if err != nil {
		s.log.Error("list unresolved failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load insights")
		return
	}
	if records == nil {
		records = []model.FeedbackRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSurveys(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListSurveyFeedback(r.Context())
	if err != nil {
		s.log.Error("list survey feedback failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load survey feedback")
		return
	}
	if rows == nil {
		rows = []model.SurveyFeedback{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListSocialFeedback(r.Context())
	if err != nil {
		s.log.Error("list social feedback failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load social feedback")
		return
	}
	if rows == nil {
		rows = []model.SocialFeedback{}
	}
	writeJSON(w, http.StatusOK, rows)
}
