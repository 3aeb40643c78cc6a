// Package pce is a small client for the parts of the Illumio Policy Compute
// Engine REST API (v2) needed to pull traffic flows: the health check, the
// label list and the async traffic flow query.
package pce

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultPollAttempts = 120
	defaultPollDelay    = 5 * time.Second

	// maxCollectionResults is the most objects a synchronous collection
	// GET returns.
	maxCollectionResults = 500
)

// Async query states.
const (
	statusQueued    = "queued"
	statusWorking   = "working"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Async collection job states.
const (
	jobPending = "pending"
	jobRunning = "running"
	jobDone    = "done"
	jobFailed  = "failed"
)

var errQueryPending = errors.New("traffic query still running")

// Config identifies a PCE and the API credentials used against it.
type Config struct {
	// Host is the PCE FQDN. A scheme may be included; https is assumed
	// otherwise.
	Host      string
	Port      int
	OrgID     string
	APIKey    string
	APISecret string

	// Insecure skips TLS verification, for lab PCEs with self signed certs.
	Insecure bool

	// Timeout per HTTP request. Default: 60s
	Timeout time.Duration
}

// APIError is returned when the PCE answers with a non-2xx status.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pce: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to a single PCE organization.
type Client struct {
	cfg          Config
	baseURL      string
	http         *http.Client
	log          log15.Logger
	pollAttempts uint
	pollDelay    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to route through a mock
// transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l log15.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithPolling sets how long and how often an async query is polled.
func WithPolling(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.pollAttempts = attempts
		c.pollDelay = delay
	}
}

// NewClient validates cfg and returns a Client for it.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("pce host is required")
	}
	if cfg.OrgID == "" {
		return nil, errors.New("pce org id is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("pce api key and secret are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:          cfg,
		baseURL:      baseURL(cfg.Host, cfg.Port),
		pollAttempts: defaultPollAttempts,
		pollDelay:    defaultPollDelay,
		log:          log15.New("module", "pce"),
	}
	c.log.SetHandler(log15.DiscardHandler())
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure}, //nolint:gosec
			},
		}
	}
	return c, nil
}

func baseURL(host string, port int) string {
	host = strings.TrimRight(host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	if port > 0 {
		host = fmt.Sprintf("%s:%d", host, port)
	}
	return host + "/api/v2"
}

// BaseURL returns the API root this client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) orgPath(path string) string {
	return "/orgs/" + c.cfg.OrgID + path
}

// do sends a request relative to the API root and returns the body of a 2xx
// response.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	data, _, err := c.send(ctx, method, path, body, nil)
	return data, err
}

// send is do with extra request headers, also returning the response
// headers.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, header http.Header) ([]byte, http.Header, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, errors.Wrap(err, "encoding request body")
		}
		rdr = bytes.NewReader(b)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "building %s %s", method, url)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.log.Debug("pce request", "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, errors.Wrapf(err, "reading response of %s %s", method, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.Header, &APIError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, resp.Header, nil
}

// CheckConnection reports whether the PCE health endpoint answers with a
// success status. Transport failures are returned as errors.
func (c *Client) CheckConnection(ctx context.Context) (bool, error) {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.log.Warn("pce health check failed", "status", apiErr.StatusCode)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Labels returns every label defined in the organization. When the org holds
// more labels than a single GET returns, the list is fetched again as an
// async collection job.
func (c *Client) Labels(ctx context.Context) (labels []Label, err error) {
	path := fmt.Sprintf("%s?max_results=%d", c.orgPath("/labels"), maxCollectionResults)
	data, header, err := c.send(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return labels, err
	}
	if err = json.Unmarshal(data, &labels); err != nil {
		return labels, errors.Wrap(err, "decoding labels")
	}
	total, err := totalCount(header, len(labels))
	if err != nil {
		return labels, err
	}
	if total > len(labels) {
		c.log.Info("label list truncated, fetching as async collection", "returned", len(labels), "total", total)
		if labels, err = c.asyncLabels(ctx); err != nil {
			return labels, err
		}
		if len(labels) < total {
			return labels, errors.Errorf("pce reported %d labels but returned %d", total, len(labels))
		}
	}
	c.log.Debug("loaded labels", "count", len(labels))
	return labels, nil
}

// totalCount reads the X-Total-Count header, falling back to n when the PCE
// did not send one.
func totalCount(header http.Header, n int) (int, error) {
	v := header.Get("X-Total-Count")
	if v == "" {
		return n, nil
	}
	total, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing X-Total-Count %q", v)
	}
	return total, nil
}

func (c *Client) asyncLabels(ctx context.Context) (labels []Label, err error) {
	_, header, err := c.send(ctx, http.MethodGet, c.orgPath("/labels"), nil,
		http.Header{"Prefer": []string{"respond-async"}})
	if err != nil {
		return labels, errors.Wrap(err, "requesting async label collection")
	}
	job := header.Get("Location")
	if job == "" {
		return labels, errors.New("async label collection response carried no Location")
	}
	result, err := c.waitForJob(ctx, job)
	if err != nil {
		return labels, err
	}
	data, err := c.do(ctx, http.MethodGet, result, nil)
	if err != nil {
		return labels, errors.Wrap(err, "downloading async label collection")
	}
	if err = json.Unmarshal(data, &labels); err != nil {
		return labels, errors.Wrap(err, "decoding labels")
	}
	return labels, nil
}

// waitForJob polls an async collection job until it is done and returns the
// href of its result.
func (c *Client) waitForJob(ctx context.Context, href string) (string, error) {
	var result string
	poll := 0
	err := retry.Do(
		func() error {
			poll++
			data, err := c.do(ctx, http.MethodGet, href, nil)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "polling job"))
			}
			status := gjson.GetBytes(data, "status").String()
			c.log.Debug("polled job", "href", href, "status", status, "poll", poll)
			switch status {
			case jobDone:
				result = gjson.GetBytes(data, "result.href").String()
				if result == "" {
					return retry.Unrecoverable(errors.Errorf("job %s finished without a result", href))
				}
				return nil
			case jobPending, jobRunning, "":
				return errQueryPending
			case jobFailed:
				return retry.Unrecoverable(errors.Errorf("job %s failed", href))
			default:
				return retry.Unrecoverable(errors.Errorf("job %s in unexpected state %q", href, status))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.pollAttempts),
		retry.Delay(c.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, errQueryPending) {
		return "", errors.Errorf("job %s did not complete after %d polls", href, poll)
	}
	return result, err
}

// TrafficFlows submits q as an async query named name, waits for it to finish
// and downloads the resulting flows.
func (c *Client) TrafficFlows(ctx context.Context, name string, q *TrafficQuery) (flows []TrafficFlow, err error) {
	if q == nil {
		return flows, errors.New("traffic query is required")
	}
	query := *q
	query.QueryName = name
	data, err := c.do(ctx, http.MethodPost, c.orgPath("/traffic_flows/async_queries"), &query)
	if err != nil {
		return flows, errors.Wrap(err, "submitting traffic query")
	}
	href := gjson.GetBytes(data, "href").String()
	if href == "" {
		return flows, errors.New("traffic query response carried no href")
	}
	c.log.Info("submitted traffic query", "name", name, "href", href,
		"start", q.StartDate, "end", q.EndDate, "max_results", q.MaxResults)

	if err = c.waitForQuery(ctx, href); err != nil {
		return flows, err
	}

	data, err = c.do(ctx, http.MethodGet, href+"/download", nil)
	if err != nil {
		return flows, errors.Wrap(err, "downloading traffic query results")
	}
	if err = json.Unmarshal(data, &flows); err != nil {
		return flows, errors.Wrap(err, "decoding traffic flows")
	}
	c.log.Info("downloaded traffic flows", "name", name, "flows", len(flows))
	return flows, nil
}

func (c *Client) waitForQuery(ctx context.Context, href string) error {
	poll := 0
	err := retry.Do(
		func() error {
			poll++
			data, err := c.do(ctx, http.MethodGet, href, nil)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "polling traffic query"))
			}
			status := gjson.GetBytes(data, "status").String()
			c.log.Debug("polled traffic query", "href", href, "status", status, "poll", poll)
			switch status {
			case statusCompleted:
				return nil
			case statusQueued, statusWorking, "":
				return errQueryPending
			case statusFailed:
				return retry.Unrecoverable(errors.Errorf("traffic query %s failed", href))
			default:
				return retry.Unrecoverable(errors.Errorf("traffic query %s in unexpected state %q", href, status))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.pollAttempts),
		retry.Delay(c.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, errQueryPending) {
		return errors.Errorf("traffic query %s did not complete after %d polls", href, poll)
	}
	return err
}
