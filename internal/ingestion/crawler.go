package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

var _ driven.CrawlerFactory = (*Registry)(nil)

// Registry resolves a Crawler by name, mirroring the provider-type
// registry the connector layer used for OAuth sources, repurposed here for
// corpus crawlers instead.
type Registry struct {
	mu       sync.RWMutex
	crawlers map[string]driven.Crawler
}

// NewRegistry builds an empty crawler registry.
func NewRegistry() *Registry {
	return &Registry{crawlers: make(map[string]driven.Crawler)}
}

// Register adds a crawler under its own Name().
func (r *Registry) Register(c driven.Crawler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crawlers[c.Name()] = c
}

// Create resolves a crawler by name.
func (r *Registry) Create(name string) (driven.Crawler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crawlers[name]
	if !ok {
		return nil, fmt.Errorf("ingestion: unknown crawler %q", name)
	}
	return c, nil
}

// HTTPCrawler fetches corpus records from a paginated JSON REST API,
// grounded on the rate-limited page-walking idiom of an OpenLegalData-style
// API client: GET with a since-cursor query param, follow pagination until
// a page comes back short of the page size.
type HTTPCrawler struct {
	name       string
	baseURL    string
	apiKey     string
	pageSize   int
	rateDelay  time.Duration
	httpClient *http.Client
}

// NewHTTPCrawler builds an HTTPCrawler against baseURL. Every request waits
// rateDelay beforehand to stay within the upstream's rate limit.
func NewHTTPCrawler(name, baseURL, apiKey string, pageSize int, rateDelay time.Duration) *HTTPCrawler {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &HTTPCrawler{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		pageSize:   pageSize,
		rateDelay:  rateDelay,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPCrawler) Name() string { return c.name }

type httpCrawlerPage struct {
	Results []httpCrawlerRecord `json:"results"`
}

type httpCrawlerRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Content     string    `json:"content"`
	CreatedDate time.Time `json:"createdDate"`
}

// Fetch pages through the API for records created at or after since,
// returning the latest CreatedDate seen as the new cursor.
func (c *HTTPCrawler) Fetch(ctx context.Context, since time.Time) ([]driven.Record, time.Time, error) {
	var records []driven.Record
	cursor := since
	page := 0

	for {
		if c.rateDelay > 0 {
			select {
			case <-ctx.Done():
				return records, cursor, ctx.Err()
			case <-time.After(c.rateDelay):
			}
		}

		pageResult, err := c.fetchPage(ctx, since, page)
		if err != nil {
			return records, cursor, err
		}
		if len(pageResult.Results) == 0 {
			break
		}

		for _, rec := range pageResult.Results {
			records = append(records, driven.Record{
				ExternalID:  rec.ID,
				Filename:    rec.Filename,
				MimeType:    rec.MimeType,
				Content:     []byte(rec.Content),
				CreatedDate: rec.CreatedDate,
			})
			if rec.CreatedDate.After(cursor) {
				cursor = rec.CreatedDate
			}
		}

		if len(pageResult.Results) < c.pageSize {
			break
		}
		page++
	}

	return records, cursor, nil
}

func (c *HTTPCrawler) fetchPage(ctx context.Context, since time.Time, page int) (httpCrawlerPage, error) {
	url := fmt.Sprintf("%s?since=%s&page=%d&pageSize=%d",
		c.baseURL, since.UTC().Format(time.RFC3339), page, c.pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return httpCrawlerPage{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return httpCrawlerPage{}, fmt.Errorf("ingestion: %s fetch: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		return httpCrawlerPage{}, fmt.Errorf("ingestion: %s rate limited, retry after %s", c.name, retryAfter)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return httpCrawlerPage{}, fmt.Errorf("ingestion: %s returned %d: %s", c.name, resp.StatusCode, body)
	}

	var page_ httpCrawlerPage
	if err := json.NewDecoder(resp.Body).Decode(&page_); err != nil {
		return httpCrawlerPage{}, fmt.Errorf("ingestion: %s decode page: %w", c.name, err)
	}
	return page_, nil
}

// StaticCrawler reads records from a local directory of pre-downloaded
// documents, one file per record, grounded on the dataset-directory layout
// a bulk offline dataset loader extracts to on disk. `since` filters by
// each file's modification time.
type StaticCrawler struct {
	name string
	dir  string
}

// NewStaticCrawler builds a StaticCrawler reading documents from dir.
func NewStaticCrawler(name, dir string) *StaticCrawler {
	return &StaticCrawler{name: name, dir: dir}
}

func (c *StaticCrawler) Name() string { return c.name }

func (c *StaticCrawler) Fetch(ctx context.Context, since time.Time) ([]driven.Record, time.Time, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, since, fmt.Errorf("ingestion: %s read dir: %w", c.name, err)
	}

	var records []driven.Record
	cursor := since

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return records, cursor, ctx.Err()
		default:
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		modTime := info.ModTime()
		if !modTime.After(since) {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return records, cursor, fmt.Errorf("ingestion: %s read %s: %w", c.name, entry.Name(), err)
		}

		records = append(records, driven.Record{
			ExternalID:  entry.Name(),
			Filename:    entry.Name(),
			MimeType:    mimeTypeFor(entry.Name()),
			Content:     content,
			CreatedDate: modTime,
		})
		if modTime.After(cursor) {
			cursor = modTime
		}
	}

	return records, cursor, nil
}

func mimeTypeFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
