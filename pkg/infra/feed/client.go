package feed

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mmcdole/gofeed"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

const defaultHTTPTimeout = 30 * time.Second

type client struct {
	httpClient *http.Client
	userAgent  string
}

// Option is a functional option for the feed client.
type Option func(*client)

// WithHTTPClient replaces the HTTP client used for feed requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header sent with feed requests.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

// New creates a feed source that fetches release feeds over HTTP and parses
// RSS, Atom and JSON feed content.
func New(opts ...Option) interfaces.FeedSource {
	c := &client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.userAgent == "" {
		c.userAgent = "herald/" + types.Version
	}

	return c
}

// Fetch downloads and parses the source's feed. Transport failures and
// non-2xx responses are fetch errors; malformed feed content is a parse
// error. Both are source-local.
func (c *client) Fetch(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build feed request",
			goerr.T(types.ErrTagFetch),
			goerr.V("source", src.ID),
			goerr.V("url", src.URL),
		)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml, text/xml, application/feed+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch feed",
			goerr.T(types.ErrTagFetch),
			goerr.V("source", src.ID),
			goerr.V("url", src.URL),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, goerr.New("unexpected status code from feed",
			goerr.T(types.ErrTagFetch),
			goerr.V("source", src.ID),
			goerr.V("url", src.URL),
			goerr.V("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read feed body",
			goerr.T(types.ErrTagFetch),
			goerr.V("source", src.ID),
			goerr.V("url", src.URL),
		)
	}

	// A parser per call: gofeed.Parser does not document concurrency safety
	// and sources may be fetched in parallel.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse feed content",
			goerr.T(types.ErrTagParse),
			goerr.V("source", src.ID),
			goerr.V("url", src.URL),
		)
	}

	records := make([]model.ReleaseRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		records = append(records, normalizeItem(item))
	}

	return records, nil
}

// normalizeItem maps one feed entry to a ReleaseRecord. Missing optional
// fields become empty strings rather than failures; a missing or unparseable
// timestamp becomes the zero time so it sorts oldest.
func normalizeItem(item *gofeed.Item) model.ReleaseRecord {
	rec := model.ReleaseRecord{
		ID:    item.GUID,
		Title: item.Title,
		Link:  item.Link,
	}

	if rec.ID == "" {
		rec.ID = item.Link
	}

	switch {
	case item.PublishedParsed != nil:
		rec.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		// GitHub release Atom feeds carry <updated> only.
		rec.Published = *item.UpdatedParsed
	}

	return rec
}
