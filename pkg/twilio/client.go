package twilio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.twilio.com"

// Client places outbound voice calls via the Twilio REST API.
type Client interface {
	CreateCall(ctx context.Context, req CreateCallRequest) (*Call, error)
}

// CreateCallRequest describes one outbound call. InstructionsURL is fetched
// by the provider when the callee answers and must return TwiML.
type CreateCallRequest struct {
	To              string
	From            string
	InstructionsURL string
}

// Call is the provider's view of a placed call.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// RecordingCallback carries the fields of a recording status webhook.
type RecordingCallback struct {
	CallSID      string
	RecordingURL string
}

// ParseRecordingCallback extracts the recording webhook fields from a
// form-encoded request. A missing CallSid is an error; a missing
// RecordingUrl is not (calls can complete without a recording).
func ParseRecordingCallback(r *http.Request) (*RecordingCallback, error) {
	if err := r.ParseForm(); err != nil {
		return nil, eris.Wrap(err, "twilio: parse callback form")
	}
	cb := &RecordingCallback{
		CallSID:      r.PostFormValue("CallSid"),
		RecordingURL: r.PostFormValue("RecordingUrl"),
	}
	if cb.CallSID == "" {
		return nil, eris.New("twilio: callback missing CallSid")
	}
	return cb, nil
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
	accountSID string
	authToken  string
	baseURL    string
	http       *http.Client
}

// NewClient creates a Twilio REST client.
func NewClient(accountSID, authToken string, opts ...Option) Client {
	c := &httpClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateCall(ctx context.Context, req CreateCallRequest) (*Call, error) {
	if req.To == "" || req.From == "" || req.InstructionsURL == "" {
		return nil, eris.New("twilio: to, from and instructions URL are required")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", req.InstructionsURL)

	endpoint := c.baseURL + "/2010-04-01/Accounts/" + c.accountSID + "/Calls.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "twilio: create request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "twilio: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "twilio: read response")
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("twilio: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var call Call
	if err := json.Unmarshal(respBody, &call); err != nil {
		return nil, eris.Wrap(err, "twilio: unmarshal response")
	}
	if call.SID == "" {
		return nil, eris.New("twilio: response missing call sid")
	}
	return &call, nil
}
