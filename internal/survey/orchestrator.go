package survey

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/pkg/deepgram"
	"github.com/sells-group/sentiment-cli/pkg/elevenlabs"
	"github.com/sells-group/sentiment-cli/pkg/twilio"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	CreateCallRecord(ctx context.Context, callSID, customerID string) error
	GetCallRecord(ctx context.Context, callSID string) (*model.CallRecord, error)
	CreateSurveyFeedback(ctx context.Context, fb model.SurveyFeedback) (*model.SurveyFeedback, error)
}

// Analyzer classifies feedback and generates improvement insights.
type Analyzer interface {
	Classify(ctx context.Context, text string) (model.Sentiment, error)
	GenerateInsight(ctx context.Context, text string, label model.Sentiment) (string, error)
}

// Options configures the orchestrator.
type Options struct {
	// BaseURL is the externally reachable server URL used to build
	// instruction, audio and callback URLs for the voice provider.
	BaseURL    string
	FromNumber string
}

// Orchestrator drives the outbound survey call lifecycle: placing the call,
// serving the voice instructions, and turning the recording callback into a
// classified feedback row.
type Orchestrator struct {
	store    Store
	voice    twilio.Client
	tts      elevenlabs.Client
	stt      deepgram.Client
	analyzer Analyzer
	opts     Options
	log      *zap.Logger

	mu    sync.Mutex
	clips map[string]audioClip
}

type audioClip struct {
	data    []byte
	created time.Time
}

// clipTTL bounds how long synthesized prompts are held for provider fetches.
const clipTTL = 10 * time.Minute

// NewOrchestrator creates a survey call orchestrator.
func NewOrchestrator(st Store, voice twilio.Client, tts elevenlabs.Client, stt deepgram.Client, analyzer Analyzer, opts Options) *Orchestrator {
	return &Orchestrator{
		store:    st,
		voice:    voice,
		tts:      tts,
		stt:      stt,
		analyzer: analyzer,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "survey")),
		clips:    make(map[string]audioClip),
	}
}

// IssueCall places a survey call to the customer and records the returned
// call SID for callback correlation. Provider failures are not retried.
func (o *Orchestrator) IssueCall(ctx context.Context, customerID string) (string, error) {
	customer, err := o.store.GetCustomer(ctx, customerID)
	if err != nil {
		return "", eris.Wrapf(err, "survey: issue call for %s", customerID)
	}

	call, err := o.voice.CreateCall(ctx, twilio.CreateCallRequest{
		To:              customer.Phone,
		From:            o.opts.FromNumber,
		InstructionsURL: fmt.Sprintf("%s/api/twilio/voice/%s", o.opts.BaseURL, customer.ID),
	})
	if err != nil {
		return "", eris.Wrapf(err, "survey: place call to %s", customer.Phone)
	}

	if err := o.store.CreateCallRecord(ctx, call.SID, customer.ID); err != nil {
		return "", eris.Wrapf(err, "survey: record call %s", call.SID)
	}

	o.log.Info("survey call issued",
		zap.String("call_sid", call.SID),
		zap.String("customer_id", customer.ID),
	)
	return call.SID, nil
}

// VoiceInstructions renders the TwiML script for a ringing call. The prompt
// is synthesized per customer; when synthesis fails the script falls back to
// provider text-to-speech so the call still proceeds.
func (o *Orchestrator) VoiceInstructions(ctx context.Context, customerID string) (string, error) {
	customer, err := o.store.GetCustomer(ctx, customerID)
	if err != nil {
		return "", eris.Wrapf(err, "survey: voice instructions for %s", customerID)
	}

	prompt := fmt.Sprintf(
		"Hello %s! We are reaching out to hear about your recent experience with our service. "+
			"After the beep, please tell us how things have been going for you. Thank you!",
		customer.Name,
	)
	callbackURL := o.opts.BaseURL + "/api/twilio/recording"

	audio, err := o.tts.Synthesize(ctx, prompt)
	if err != nil {
		o.log.Warn("prompt synthesis failed, falling back to provider speech",
			zap.String("customer_id", customer.ID),
			zap.Error(err),
		)
		return renderSurveyTwiML("", prompt, callbackURL)
	}

	clipID := o.storeClip(audio)
	audioURL := fmt.Sprintf("%s/api/audio/%s", o.opts.BaseURL, clipID)
	return renderSurveyTwiML(audioURL, "", callbackURL)
}

// AudioClip returns a synthesized prompt by id for the provider to fetch.
func (o *Orchestrator) AudioClip(id string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	clip, ok := o.clips[id]
	if !ok {
		return nil, false
	}
	return clip.data, true
}

func (o *Orchestrator) storeClip(data []byte) string {
	id := uuid.New().String()
	now := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	for k, c := range o.clips {
		if now.Sub(c.created) > clipTTL {
			delete(o.clips, k)
		}
	}
	o.clips[id] = audioClip{data: data, created: now}
	return id
}

// HandleRecording processes a recording callback. Unknown call SIDs return
// store.ErrNotFound (wrapped) with no side effects. Calls that produced no
// recording or an empty transcript are acknowledged without a feedback row.
func (o *Orchestrator) HandleRecording(ctx context.Context, callSID, recordingURL string) error {
	log := o.log.With(zap.String("call_sid", callSID))

	record, err := o.store.GetCallRecord(ctx, callSID)
	if err != nil {
		return eris.Wrapf(err, "survey: recording callback %s", callSID)
	}

	if recordingURL == "" {
		log.Info("call completed without recording, skipping")
		return nil
	}

	transcript, err := o.stt.TranscribeURL(ctx, recordingURL)
	if err != nil {
		return eris.Wrapf(err, "survey: transcribe recording for %s", callSID)
	}
	if transcript == "" {
		log.Info("empty transcript, skipping")
		return nil
	}

	sentiment, err := o.analyzer.Classify(ctx, transcript)
	if err != nil {
		return eris.Wrapf(err, "survey: classify transcript for %s", callSID)
	}

	var insight *string
	if sentiment.NeedsInsight() {
		text, err := o.analyzer.GenerateInsight(ctx, transcript, sentiment)
		if err != nil {
			// The classified row is still worth keeping.
			log.Warn("insight generation failed", zap.Error(err))
		} else {
			insight = &text
		}
	}

	fb, err := o.store.CreateSurveyFeedback(ctx, model.SurveyFeedback{
		CustomerID: record.CustomerID,
		Transcript: &transcript,
		Sentiment:  &sentiment,
		Insight:    insight,
	})
	if err != nil {
		return eris.Wrapf(err, "survey: persist feedback for %s", callSID)
	}

	log.Info("survey feedback recorded",
		zap.String("feedback_id", fb.ID),
		zap.String("sentiment", string(sentiment)),
		zap.Bool("has_insight", insight != nil),
	)
	return nil
}
