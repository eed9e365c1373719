package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.deepgram.com"

// Client transcribes recorded audio via the Deepgram API.
type Client interface {
	// TranscribeURL submits a hosted recording for transcription and returns
	// the transcript text. An empty transcript is not an error; recordings
	// can contain only silence.
	TranscribeURL(ctx context.Context, recordingURL string) (string, error)
}

type transcribeRequest struct {
	URL string `json:"url"`
}

type transcribeResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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
	http    *http.Client
}

// NewClient creates a Deepgram API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TranscribeURL(ctx context.Context, recordingURL string) (string, error) {
	if recordingURL == "" {
		return "", eris.New("deepgram: empty recording URL")
	}

	body, err := json.Marshal(transcribeRequest{URL: recordingURL})
	if err != nil {
		return "", eris.Wrap(err, "deepgram: marshal request")
	}

	endpoint := c.baseURL + "/v1/listen?model=nova-2&smart_format=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "deepgram: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", eris.Wrap(err, "deepgram: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "deepgram: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("deepgram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result transcribeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "deepgram: unmarshal response")
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
