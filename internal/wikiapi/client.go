// Package wikiapi talks to the MediaWiki Action API: category traversal
// and batched title-to-entity-id resolution.
package wikiapi

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/types"
)

// MemberType selects which kind of category members to list.
type MemberType string

const (
	MemberPages   MemberType = "page"
	MemberSubcats MemberType = "subcat"
)

// Client is a MediaWiki Action API client with retrying requests.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	retries   int
	delay     time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewClient creates a MediaWiki client from config.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:       20,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true, // we handle decompression ourselves (including brotli)
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Fetcher.RequestTimeout,
		},
		baseURL:   cfg.Sources.MediaWikiAPI,
		userAgent: cfg.Sources.UserAgent,
		retries:   cfg.Fetcher.MaxRetries,
		delay:     cfg.Fetcher.RetryDelay,
		batchSize: cfg.Fetcher.IDBatchSize,
		logger:    logger.With("component", "wikiapi"),
	}
}

type memberList struct {
	Continue struct {
		CmContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

// CategoryMembers lists all direct members of a category, following the
// continuation token until the API reports no further pages. The category
// name is given without the "Category:" prefix.
func (c *Client) CategoryMembers(ctx context.Context, category string, mt MemberType) ([]string, error) {
	var members []string
	cont := ""
	for {
		params := url.Values{
			"action":  {"query"},
			"format":  {"json"},
			"list":    {"categorymembers"},
			"cmtitle": {"Category:" + category},
			"cmtype":  {string(mt)},
			"cmlimit": {"max"},
		}
		if cont != "" {
			params.Set("cmcontinue", cont)
		}

		var page memberList
		if err := c.get(ctx, params, &page); err != nil {
			return nil, err
		}
		for _, m := range page.Query.CategoryMembers {
			members = append(members, m.Title)
		}

		cont = page.Continue.CmContinue
		if cont == "" {
			break
		}
	}

	c.logger.Debug("category listed", "category", category, "type", mt, "members", len(members))
	return members, nil
}

type pagePropsResult struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// ResolveEntityIDs maps page titles to Wikidata entity ids via batched
// pageprops lookups. Titles with no linked entity are omitted from the
// result; that is a data-quality condition, not an error.
func (c *Client) ResolveEntityIDs(ctx context.Context, titles []string) (map[string]string, error) {
	sorted := make([]string, len(titles))
	copy(sorted, titles)
	sort.Strings(sorted)

	ids := make(map[string]string)
	for start := 0; start < len(sorted); start += c.batchSize {
		end := start + c.batchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]

		params := url.Values{
			"action": {"query"},
			"format": {"json"},
			"prop":   {"pageprops"},
			"titles": {strings.Join(batch, "|")},
		}

		var result pagePropsResult
		if err := c.get(ctx, params, &result); err != nil {
			return nil, err
		}
		for _, page := range result.Query.Pages {
			if qid := page.PageProps.WikibaseItem; qid != "" {
				ids[page.Title] = qid
			}
		}
	}

	c.logger.Debug("entity ids resolved", "titles", len(titles), "resolved", len(ids))
	return ids, nil
}

// get issues one API request, retrying with linearly increasing backoff on
// transport failure or non-2xx status, and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			sleep := c.delay * time.Duration(attempt-1)
			c.logger.Warn("request failed, retrying",
				"url", reqURL, "attempt", attempt, "backoff", sleep, "error", lastErr)
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.doOnce(ctx, reqURL, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %s: %w", types.ErrMaxRetries, reqURL, lastErr)
}

func (c *Client) doOnce(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &types.FetchError{URL: reqURL, Err: err, Retryable: false}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.http.Do(req)
	if err != nil {
		return &types.FetchError{URL: reqURL, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &types.FetchError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Retryable:  true,
		}
	}

	reader, err := decompressReader(resp)
	if err != nil {
		return &types.FetchError{URL: reqURL, Err: err, Retryable: false}
	}

	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return &types.FetchError{URL: reqURL, Err: fmt.Errorf("decode response: %w", err), Retryable: true}
	}
	return nil
}

// decompressReader wraps the response body with the appropriate
// decompressor. Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// StripCategoryPrefix removes a leading "Category:" if present.
func StripCategoryPrefix(title string) string {
	return strings.TrimPrefix(title, "Category:")
}
