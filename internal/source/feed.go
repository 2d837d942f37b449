package source

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/listing"
)

const (
	defaultUserAgent = "jobscout/1.0"
	contentType      = "application/json"
	acceptEncoding   = "gzip"
	feedTimeout      = 30 * time.Second
	maxPages         = 20

	// DefaultMaxPageBytes caps one decoded page, after gzip expansion.
	DefaultMaxPageBytes = 8 << 20
)

// Feed pulls listings from an HTTP endpoint returning JSON. Paginated
// responses ({"items": [...], "page": 0, "pages": N}) are followed page by
// page through the page query parameter.
type Feed struct {
	name      string
	url       string
	client    *http.Client
	UserAgent string
	// MaxPageBytes bounds the decoded size of a single page.
	MaxPageBytes int64
	logger       *zap.Logger
	now          func() time.Time
}

func NewFeed(name, rawURL string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		name:      name,
		url:       rawURL,
		client:    &http.Client{Timeout: feedTimeout},
		UserAgent:    defaultUserAgent,
		MaxPageBytes: DefaultMaxPageBytes,
		logger:       logger,
		now:       time.Now,
	}
}

func (f *Feed) Name() string { return f.name }

func (f *Feed) Collect(ctx context.Context) ([]*listing.Listing, error) {
	base, err := url.Parse(f.url)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}

	var items []map[string]any

	for page := 0; page < maxPages; page++ {
		doc, err := f.fetch(ctx, withPage(base, page))
		if err != nil {
			return nil, err
		}
		items = append(items, doc.Items...)

		if doc.Page >= doc.Pages-1 {
			break
		}
		f.logger.Debug("additional request needed",
			zap.String("source", f.name),
			zap.Int("page", doc.Page+1),
			zap.Int("pages", doc.Pages),
		)
	}

	return decodeItems(items, f.name, f.now().UTC())
}

func (f *Feed) fetch(ctx context.Context, u *url.URL) (*document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	f.logger.Debug("make request", zap.String("url", u.String()))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	limit := f.MaxPageBytes
	if limit <= 0 {
		limit = DefaultMaxPageBytes
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("feed page exceeds %d bytes", limit)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return doc, nil
}

func withPage(base *url.URL, page int) *url.URL {
	u := *base
	if page == 0 {
		return &u
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return &u
}
