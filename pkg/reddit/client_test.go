package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const listingBody = `{"data": {"children": [
	{"data": {"id": "p1", "title": "Coverage improved a lot", "selftext": "after the tower upgrade", "permalink": "/r/tmobile/comments/p1/", "author": "u1", "created_utc": 1749000000}},
	{"data": {"id": "p2", "title": "Billing question", "selftext": "", "permalink": "/r/tmobile/comments/p2/", "author": "u2", "created_utc": 1749003600}}
]}}`

func TestListPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/tmobile/top.json", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "year", r.URL.Query().Get("t"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingBody))
	}))
	defer srv.Close()

	client := NewClient(
		WithBaseURL(srv.URL),
		WithUserAgent("test-agent"),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)

	posts, err := client.ListPosts(context.Background(), ListPostsRequest{
		Subreddit: "tmobile",
		Sort:      SortTop,
		Limit:     20,
		Timeframe: "year",
	})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "Coverage improved a lot", posts[0].Title)
	assert.Equal(t, srv.URL+"/r/tmobile/comments/p1/", posts[0].Permalink)
	assert.Equal(t, int64(1749000000), posts[0].CreatedAt.Unix())
}

func TestListPostsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithLimiter(rate.NewLimiter(rate.Inf, 1)))

	_, err := client.ListPosts(context.Background(), ListPostsRequest{Subreddit: "tmobile", Sort: SortNew})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestListPostsValidation(t *testing.T) {
	client := NewClient(WithLimiter(rate.NewLimiter(rate.Inf, 1)))

	_, err := client.ListPosts(context.Background(), ListPostsRequest{Sort: SortNew})
	require.Error(t, err)

	_, err = client.ListPosts(context.Background(), ListPostsRequest{Subreddit: "tmobile", Sort: "rising"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sort")
}
