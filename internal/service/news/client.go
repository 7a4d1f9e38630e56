package news

import (
	"context"
	"fmt"
	"time"

	"CryptoSouq/internal/domain/models"
	"CryptoSouq/internal/service/ratelimit"

	"github.com/go-resty/resty/v2"
)

const newsSource = "cryptopanic"

// Client pulls recent posts from the CryptoPanic API.
type Client struct {
	http     *resty.Client
	apiKey   string
	pageSize int
	limiter  *ratelimit.Interval
}

type postsResponse struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Source      struct {
			Title  string `json:"title"`
			Domain string `json:"domain"`
		} `json:"source"`
	} `json:"results"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration, pageSize int, limiter *ratelimit.Interval) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "CryptoSouq/1.0")
	return &Client{http: c, apiKey: apiKey, pageSize: pageSize, limiter: limiter}
}

// FetchLatest returns up to pageSize recent articles tagged with the
// given currency code. The rate-limit window only advances on success.
func (c *Client) FetchLatest(ctx context.Context, currency string) ([]models.NewsItem, error) {
	if err := c.limiter.Wait(ctx, newsSource); err != nil {
		return nil, err
	}

	var posts postsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("auth_token", c.apiKey).
		SetQueryParam("currencies", currency).
		SetQueryParam("public", "true").
		SetResult(&posts).
		Get("/posts/")
	if err != nil {
		return nil, &models.UpstreamFetchError{Source: newsSource, Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &models.UpstreamFetchError{
			Source: newsSource,
			Err:    fmt.Errorf("posts %s: status %d", currency, resp.StatusCode()),
		}
	}
	c.limiter.Advance(newsSource)

	items := make([]models.NewsItem, 0, c.pageSize)
	for _, r := range posts.Results {
		if len(items) >= c.pageSize {
			break
		}
		if r.Title == "" || r.URL == "" {
			continue
		}
		source := r.Source.Title
		if source == "" {
			source = r.Source.Domain
		}
		at, ok := parsePublished(r.PublishedAt)
		if !ok {
			at = time.Now().UTC()
		}
		items = append(items, models.NewsItem{
			Title:      r.Title,
			URL:        r.URL,
			Source:     source,
			ObservedAt: at,
			Currency:   currency,
		})
	}
	return items, nil
}

func parsePublished(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
