package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://serpapi.com"

// APIError is a non-2xx search response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("serpapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client queries comparative search-interest timelines via the SerpApi
// Google Trends engine.
type Client interface {
	InterestOverTime(ctx context.Context, keywords []string, window string) ([]TimelinePoint, error)
}

// TimelinePoint is one dated set of per-keyword interest values.
type TimelinePoint struct {
	Date   time.Time
	Values map[string]int64 // keyword -> relative interest 0..100
}

type trendsResponse struct {
	InterestOverTime struct {
		TimelineData []struct {
			Timestamp string `json:"timestamp"`
			Values    []struct {
				Query          string `json:"query"`
				ExtractedValue int64  `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
	Error string `json:"error"`
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

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// InterestOverTime fetches one comparative timeline for up to five keywords
// over the given window (Google Trends date syntax, e.g. "today 3-m").
func (c *httpClient) InterestOverTime(ctx context.Context, keywords []string, window string) ([]TimelinePoint, error) {
	if len(keywords) == 0 {
		return nil, eris.New("serpapi: no keywords")
	}
	if len(keywords) > 5 {
		return nil, eris.Errorf("serpapi: at most 5 keywords per comparison, got %d", len(keywords))
	}

	q := url.Values{}
	q.Set("engine", "google_trends")
	q.Set("q", strings.Join(keywords, ","))
	q.Set("data_type", "TIMESERIES")
	q.Set("date", window)
	q.Set("api_key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result trendsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	if result.Error != "" {
		return nil, eris.Errorf("serpapi: %s", result.Error)
	}

	points := make([]TimelinePoint, 0, len(result.InterestOverTime.TimelineData))
	for _, td := range result.InterestOverTime.TimelineData {
		secs, err := strconv.ParseInt(td.Timestamp, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "serpapi: parse timestamp %q", td.Timestamp)
		}
		p := TimelinePoint{
			Date:   time.Unix(secs, 0).UTC().Truncate(24 * time.Hour),
			Values: make(map[string]int64, len(td.Values)),
		}
		for _, v := range td.Values {
			p.Values[v.Query] = v.ExtractedValue
		}
		points = append(points, p)
	}
	return points, nil
}
