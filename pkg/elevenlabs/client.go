package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModel   = "eleven_turbo_v2_5"
)

// Client synthesizes speech from text via the ElevenLabs API.
type Client interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithVoice overrides the default voice ID.
func WithVoice(voiceID string) Option {
	return func(c *httpClient) {
		c.voiceID = voiceID
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	voiceID string
	http    *http.Client
}

// NewClient creates an ElevenLabs API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		voiceID: defaultVoiceID,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Synthesize renders text to MP3 audio bytes.
func (c *httpClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, eris.New("elevenlabs: empty text")
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: defaultModel,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "elevenlabs: marshal request")
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + c.voiceID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "elevenlabs: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "elevenlabs: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "elevenlabs: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if len(respBody) == 0 {
		return nil, eris.New("elevenlabs: empty audio response")
	}
	return respBody, nil
}
