// Package ledger queries the remote ledger indexer for transactions that
// reference a monitored contract or account.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/metrics"
)

// MaxPageLimit is the largest page the indexer serves.
const MaxPageLimit = 200

// StatusError is a non-2xx answer from the indexer.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Endpoint, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the indexer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client is a read-only HTTP client for the ledger indexer.
type Client struct {
	baseURL    string
	pageLimit  int
	httpClient *http.Client
}

// NewClient creates a ledger client. pageLimit is clamped to 1..MaxPageLimit.
func NewClient(baseURL string, timeout time.Duration, pageLimit int) *Client {
	if pageLimit <= 0 || pageLimit > MaxPageLimit {
		pageLimit = MaxPageLimit
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		pageLimit: pageLimit,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type pageResponse struct {
	Embedded struct {
		Records []domain.LedgerTransaction `json:"records"`
	} `json:"_embedded"`
}

// Transactions returns up to one page of transactions after cursor in
// ascending ledger order. The contract endpoint is tried first; on 404 the
// account endpoint is asked once.
func (c *Client) Transactions(ctx context.Context, address string, cursor uint64) ([]domain.LedgerTransaction, error) {
	txs, err := c.fetch(ctx, "contracts", address, cursor)
	if err == nil {
		return txs, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return c.fetch(ctx, "accounts", address, cursor)
}

func (c *Client) pageURL(kind, address string, cursor uint64) string {
	q := url.Values{}
	q.Set("order", "asc")
	q.Set("limit", strconv.Itoa(c.pageLimit))
	q.Set("cursor", strconv.FormatUint(cursor, 10))
	return fmt.Sprintf("%s/%s/%s/transactions?%s", c.baseURL, kind, url.PathEscape(address), q.Encode())
}

func (c *Client) fetch(ctx context.Context, kind, address string, cursor uint64) ([]domain.LedgerTransaction, error) {
	start := time.Now()
	defer func() {
		metrics.LedgerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(kind, address, cursor), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.LedgerRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", kind, err)
	}
	defer resp.Body.Close()

	metrics.LedgerRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: kind, Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var page pageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return page.Embedded.Records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
