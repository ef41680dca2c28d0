package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

const sampleFeed = `[
	{
		"id": 42,
		"slug": "quota-windows-explained",
		"link": "https://blog.example.com/quota-windows-explained",
		"date_gmt": "2026-07-15T09:30:00",
		"title": {"rendered": "Quota Windows Explained "},
		"excerpt": {"rendered": "How monthly windows reset."},
		"content": {"rendered": "<p>Full post body.</p>"},
		"author_name": "Dana"
	},
	{
		"id": 41,
		"slug": "launch",
		"link": "https://blog.example.com/launch",
		"date_gmt": "2026-06-01T00:00:00",
		"title": {"rendered": "Launch"},
		"excerpt": {"rendered": ""},
		"content": {"rendered": ""},
		"author_name": "Dana"
	}
]`

func testBlogClient(srvURL string) *BlogClient {
	base := NewBaseClient(&http.Client{}, "blog-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		types.ErrCodeUpstreamContent,
		WithSleepFunc(func(time.Duration) {}))
	return NewBlogClientWithBase(base, srvURL, testLogger())
}

func TestListPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleFeed)
	}))
	defer srv.Close()

	posts, err := testBlogClient(srv.URL).ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	first := posts[0]
	assert.Equal(t, 42, first.ID)
	assert.Equal(t, "quota-windows-explained", first.Slug)
	assert.Equal(t, "Quota Windows Explained", first.Title)
	assert.Equal(t, "Dana", first.Author)
	assert.Equal(t, time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC), first.PublishedAt.UTC())
}

func TestGetPost_FiltersBySlug(t *testing.T) {
	var gotSlug string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSlug = r.URL.Query().Get("slug")
		io.WriteString(w, `[{"id": 42, "slug": "quota-windows-explained",
			"title": {"rendered": "Quota Windows Explained"},
			"date_gmt": "2026-07-15T09:30:00"}]`)
	}))
	defer srv.Close()

	post, err := testBlogClient(srv.URL).GetPost(context.Background(), "quota-windows-explained")
	require.NoError(t, err)
	assert.Equal(t, "quota-windows-explained", gotSlug)
	assert.Equal(t, 42, post.ID)
}

func TestGetPost_UnknownSlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	_, err := testBlogClient(srv.URL).GetPost(context.Background(), "nope")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFound, appErr.Code)
}

func TestListPosts_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testBlogClient(srv.URL).ListPosts(context.Background())
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamContent, appErr.Code)
}

func TestListPosts_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{not a list}")
	}))
	defer srv.Close()

	_, err := testBlogClient(srv.URL).ListPosts(context.Background())
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamContent, appErr.Code)
}
