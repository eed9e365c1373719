package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "sentiment-cli/1.0 (sentiment aggregation; contact ops@sells-group.com)"
)

// Sort orders for subreddit listings.
const (
	SortNew = "new"
	SortTop = "top"
)

// Client reads public subreddit listings.
type Client interface {
	ListPosts(ctx context.Context, req ListPostsRequest) ([]Post, error)
}

// ListPostsRequest selects one subreddit listing page.
type ListPostsRequest struct {
	Subreddit string
	Sort      string // "new" or "top"
	Limit     int
	Timeframe string // top only: hour/day/week/month/year/all
}

// Post is one submission from a listing.
type Post struct {
	ID        string
	Title     string
	Body      string
	Permalink string // absolute URL
	Author    string
	CreatedAt time.Time
}

// APIError is a non-2xx listing response. The social pipeline inspects
// StatusCode to distinguish rate limiting from other failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit: unexpected status %d: %s", e.StatusCode, e.Body)
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				SelfText   string  `json:"selftext"`
				Permalink  string  `json:"permalink"`
				Author     string  `json:"author"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithUserAgent overrides the default User-Agent. Reddit throttles generic
// agents aggressively, so production deployments should set a descriptive one.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter overrides the default 1 req/s client-side limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates an unauthenticated Reddit read client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListPosts(ctx context.Context, req ListPostsRequest) ([]Post, error) {
	if req.Subreddit == "" {
		return nil, eris.New("reddit: subreddit is required")
	}
	if req.Sort != SortNew && req.Sort != SortTop {
		return nil, eris.Errorf("reddit: unsupported sort %q", req.Sort)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reddit: limiter wait")
	}

	q := url.Values{}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}
	if req.Sort == SortTop && req.Timeframe != "" {
		q.Set("t", req.Timeframe)
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, req.Subreddit, req.Sort, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: create request")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var listing listingResponse
	if err := json.Unmarshal(respBody, &listing); err != nil {
		return nil, eris.Wrap(err, "reddit: unmarshal response")
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		posts = append(posts, Post{
			ID:        d.ID,
			Title:     d.Title,
			Body:      d.SelfText,
			Permalink: c.baseURL + d.Permalink,
			Author:    d.Author,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return posts, nil
}
