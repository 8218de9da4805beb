// Package flexquery implements the broker statement service protocol:
// requesting asynchronous report generation and polling for the finished
// document, plus parsing the statement XML into typed records.
package flexquery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trogers1052/portfolio-ledger/internal/backoff"
)

const (
	// userAgent is required by the statement service (it expects "Java").
	userAgent = "Java"
	// errorCodeGenerating means the statement is still being generated.
	errorCodeGenerating = "1019"
	// errorCodeRateLimited means too many generation requests were issued.
	errorCodeRateLimited = "1018"
)

// ErrReportUnavailable indicates the report could not be obtained in this
// cycle (rate-limited or perpetually generating). It is recoverable: the
// sync reports not_ready and the next scheduled cycle retries.
var ErrReportUnavailable = errors.New("flex report unavailable")

// GenerationLadder is the fixed backoff ladder for rate-limited generation
// requests: immediate, then 40s, 80s, 160s.
var GenerationLadder = backoff.Policy{
	Delays: []time.Duration{0, 40 * time.Second, 80 * time.Second, 160 * time.Second},
}

// FetchState is the tri-state outcome of a document fetch. "Still
// generating" is an expected, common outcome, not an error.
type FetchState int

const (
	// FetchReady means the final statement document was returned.
	FetchReady FetchState = iota + 1
	// FetchStillGenerating means the report is not ready yet.
	FetchStillGenerating
	// FetchFailed means the service rejected the fetch.
	FetchFailed
)

// FetchResult is the outcome of one FetchDocument call.
type FetchResult struct {
	State    FetchState
	Document []byte
	Reason   string
}

// Client requests statement generation and retrieves finished documents.
type Client interface {
	// RequestGeneration asks the service to generate a report, returning
	// the reference code used to retrieve it.
	RequestGeneration(ctx context.Context, accountFilter string) (string, error)
	// FetchDocument attempts to retrieve a generated document once.
	FetchDocument(ctx context.Context, referenceCode string, accountFilter string) (FetchResult, error)
	// Download runs the full request-then-poll cycle and returns the raw
	// statement document.
	Download(ctx context.Context, accountFilter string) ([]byte, error)
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithSleeper sets the sleeper used between retries and polls.
func WithSleeper(sleeper backoff.Sleeper) ClientOption {
	return func(c *client) {
		c.sleeper = sleeper
	}
}

// WithPolling overrides the document poll interval and attempt bound.
func WithPolling(interval time.Duration, attempts int) ClientOption {
	return func(c *client) {
		c.pollInterval = interval
		c.pollAttempts = attempts
	}
}

// WithGenerationPolicy overrides the generation retry ladder.
func WithGenerationPolicy(policy backoff.Policy) ClientOption {
	return func(c *client) {
		c.generation = policy
	}
}

// NewClient creates a statement service client. baseURL is the service
// root (SendRequest and GetStatement are appended), token authenticates
// the caller and queryID selects the configured report.
func NewClient(baseURL, token, queryID string, options ...ClientOption) Client {
	c := &client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		queryID:      queryID,
		httpClient:   http.DefaultClient,
		sleeper:      backoff.StdSleeper{},
		generation:   GenerationLadder,
		pollInterval: 10 * time.Second,
		pollAttempts: 30,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type client struct {
	baseURL      string
	token        string
	queryID      string
	httpClient   *http.Client
	sleeper      backoff.Sleeper
	generation   backoff.Policy
	pollInterval time.Duration
	pollAttempts int
}

// statementResponse is the XML wrapper the service returns for both
// generation requests and not-yet-ready document fetches.
type statementResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

func (c *client) RequestGeneration(ctx context.Context, accountFilter string) (string, error) {
	filter := accountFilter
	referenceCode, err := backoff.Retry(ctx, c.generation, c.sleeper,
		func(ctx context.Context, attempt int) (string, bool, error) {
			code, resp, err := c.sendRequest(ctx, filter)
			if err != nil {
				return "", false, err
			}
			if code != "" {
				return code, false, nil
			}
			if isRateLimited(resp) {
				log.Printf("flexquery: generation rate limited (attempt %d), backing off", attempt+1)
				return "", true, fmt.Errorf("%w: %s", ErrReportUnavailable, resp.ErrorMessage)
			}
			if isInvalidAccount(resp) && filter != "" {
				// Some report configurations are account-filter-incompatible.
				// Retry once without the filter before giving up.
				log.Printf("flexquery: account filter %q rejected, retrying without filter", filter)
				filter = ""
				code, resp, err = c.sendRequest(ctx, "")
				if err != nil {
					return "", false, err
				}
				if code != "" {
					return code, false, nil
				}
			}
			return "", false, fmt.Errorf("generation request failed: %s (code %s)", resp.ErrorMessage, resp.ErrorCode)
		})
	if err != nil {
		return "", err
	}
	return referenceCode, nil
}

// sendRequest issues one SendRequest call. On success the reference code is
// non-empty; on rejection the parsed response is returned for inspection.
func (c *client) sendRequest(ctx context.Context, accountFilter string) (string, *statementResponse, error) {
	body, err := c.get(ctx, "SendRequest", c.queryID, accountFilter)
	if err != nil {
		return "", nil, err
	}
	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", nil, fmt.Errorf("parsing generation response: %w", err)
	}
	if resp.Status == "Success" && resp.ReferenceCode != "" {
		return resp.ReferenceCode, nil, nil
	}
	return "", &resp, nil
}

func (c *client) FetchDocument(ctx context.Context, referenceCode string, accountFilter string) (FetchResult, error) {
	body, err := c.get(ctx, "GetStatement", referenceCode, accountFilter)
	if err != nil {
		return FetchResult{}, err
	}
	// A FlexStatementResponse wrapper means the document is not ready or
	// the fetch was rejected; anything else is the statement itself.
	if strings.HasPrefix(strings.TrimSpace(string(body)), "<FlexStatementResponse") {
		var resp statementResponse
		if err := xml.Unmarshal(body, &resp); err != nil {
			return FetchResult{}, fmt.Errorf("parsing fetch response: %w", err)
		}
		if resp.ErrorCode == errorCodeGenerating {
			return FetchResult{State: FetchStillGenerating}, nil
		}
		return FetchResult{
			State:  FetchFailed,
			Reason: fmt.Sprintf("%s (code %s)", resp.ErrorMessage, resp.ErrorCode),
		}, nil
	}
	return FetchResult{State: FetchReady, Document: body}, nil
}

func (c *client) Download(ctx context.Context, accountFilter string) ([]byte, error) {
	referenceCode, err := c.RequestGeneration(ctx, accountFilter)
	if err != nil {
		return nil, err
	}
	log.Printf("flexquery: report generation requested, reference code %s", referenceCode)
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleeper.Sleep(ctx, c.pollInterval); err != nil {
				return nil, err
			}
		}
		result, err := c.FetchDocument(ctx, referenceCode, accountFilter)
		if err != nil {
			return nil, err
		}
		switch result.State {
		case FetchReady:
			return result.Document, nil
		case FetchStillGenerating:
			log.Printf("flexquery: report still generating (attempt %d/%d)", attempt+1, c.pollAttempts)
		case FetchFailed:
			return nil, fmt.Errorf("fetching statement: %s", result.Reason)
		}
	}
	return nil, fmt.Errorf("%w: still generating after %d attempts", ErrReportUnavailable, c.pollAttempts)
}

// get performs one GET against the service. q is the query ID for
// SendRequest and the reference code for GetStatement.
func (c *client) get(ctx context.Context, endpoint string, q string, accountFilter string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s?t=%s&q=%s&v=3", c.baseURL, endpoint, url.QueryEscape(c.token), url.QueryEscape(q))
	if accountFilter != "" {
		reqURL += "&acct=" + url.QueryEscape(accountFilter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func isRateLimited(resp *statementResponse) bool {
	if resp == nil {
		return false
	}
	return resp.ErrorCode == errorCodeRateLimited ||
		strings.Contains(strings.ToLower(resp.ErrorMessage), "too many requests")
}

func isInvalidAccount(resp *statementResponse) bool {
	if resp == nil {
		return false
	}
	msg := strings.ToLower(resp.ErrorMessage)
	return strings.Contains(msg, "invalid") && strings.Contains(msg, "account")
}
