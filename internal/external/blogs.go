package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"recordstack/internal/types"
)

// maxBlogFeedBytes caps the decoded feed size.
const maxBlogFeedBytes = 4 << 20

// BlogPost is a published post from the upstream content service.
type BlogPost struct {
	ID          int       `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// feedPost is the upstream WordPress REST shape. Rendered fields arrive
// wrapped in a {"rendered": "..."} object.
type feedPost struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Link    string `json:"link"`
	DateGMT string `json:"date_gmt"`
	Title   struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Excerpt struct {
		Rendered string `json:"rendered"`
	} `json:"excerpt"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
	AuthorName string `json:"author_name"`
}

// BlogClient fetches published posts from the configured feed URL. Failures
// and an open breaker surface as UPSTREAM_CONTENT_UNAVAILABLE.
type BlogClient struct {
	base    *BaseClient
	feedURL string
	logger  *slog.Logger
}

// NewBlogClient creates a BlogClient. timeout bounds each fetch attempt.
func NewBlogClient(feedURL string, timeout time.Duration, logger *slog.Logger) *BlogClient {
	if logger == nil {
		logger = slog.Default()
	}
	base := NewBaseClient(
		&http.Client{Timeout: timeout},
		"blog-feed",
		DefaultRetryPolicy(),
		types.ErrCodeUpstreamContent,
	)
	return &BlogClient{base: base, feedURL: strings.TrimSuffix(feedURL, "/"), logger: logger}
}

// NewBlogClientWithBase creates a BlogClient over a pre-configured
// BaseClient. For tests.
func NewBlogClientWithBase(base *BaseClient, feedURL string, logger *slog.Logger) *BlogClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlogClient{base: base, feedURL: strings.TrimSuffix(feedURL, "/"), logger: logger}
}

// ListPosts returns the published posts, newest first per the upstream's
// default ordering.
func (c *BlogClient) ListPosts(ctx context.Context) ([]*BlogPost, error) {
	raw, err := c.fetch(ctx, c.feedURL)
	if err != nil {
		return nil, err
	}

	var feed []feedPost
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamContent,
			"blog feed returned malformed JSON", err)
	}

	posts := make([]*BlogPost, 0, len(feed))
	for i := range feed {
		posts = append(posts, convertPost(&feed[i]))
	}
	return posts, nil
}

// GetPost fetches a single post by slug. The upstream filters server-side
// via the slug query parameter and returns a one-element list.
func (c *BlogClient) GetPost(ctx context.Context, slug string) (*BlogPost, error) {
	raw, err := c.fetch(ctx, c.feedURL+"?slug="+slug)
	if err != nil {
		return nil, err
	}

	var feed []feedPost
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamContent,
			"blog feed returned malformed JSON", err)
	}
	if len(feed) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFound, "blog post not found", nil)
	}
	return convertPost(&feed[0]), nil
}

func (c *BlogClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build blog feed request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamContent,
			fmt.Sprintf("blog feed returned %d", resp.StatusCode), nil)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBlogFeedBytes))
}

func convertPost(p *feedPost) *BlogPost {
	publishedAt, err := time.Parse("2006-01-02T15:04:05", p.DateGMT)
	if err != nil {
		publishedAt = time.Time{}
	}
	return &BlogPost{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       strings.TrimSpace(p.Title.Rendered),
		Excerpt:     strings.TrimSpace(p.Excerpt.Rendered),
		Content:     p.Content.Rendered,
		Author:      p.AuthorName,
		URL:         p.Link,
		PublishedAt: publishedAt,
	}
}
