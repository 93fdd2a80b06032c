package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gridview/gridview-go/pkg/synclog"
)

// Client errors.
var (
	ErrNoBaseURL = errors.New("base URL is required")
)

// DefaultRequestTimeout bounds one request when the context carries
// no deadline of its own.
const DefaultRequestTimeout = 30 * time.Second

// StatusError reports a non-success HTTP status from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gateway returned status %d", e.StatusCode)
}

// Config holds REST client configuration.
type Config struct {
	// BaseURL is the gateway API root, e.g. "http://gw:8090/api/v1".
	// Required.
	BaseURL string

	// HTTPClient defaults to a client with DefaultRequestTimeout.
	HTTPClient *http.Client

	// Logger receives sync events. Nil disables logging.
	Logger synclog.Logger
}

// Client talks to the gateway's per-entity REST endpoints.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger synclog.Logger
}

// NewClient creates a REST client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{
		base:   base,
		http:   httpClient,
		logger: config.Logger,
	}, nil
}

// GetEntity fetches the entity's current JSON document.
func (c *Client) GetEntity(ctx context.Context, id string) (json.RawMessage, error) {
	u := c.entityURL(id, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(id, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp)
		c.logError(id, err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logError(id, err)
		return nil, err
	}
	return json.RawMessage(body), nil
}

// InvokeAction POSTs to the entity's action endpoint. The gateway
// returns no body; the resulting state change arrives via the push
// stream, never through this call.
func (c *Client) InvokeAction(ctx context.Context, id, action string, params any) error {
	u := c.entityURL(id, "actions/"+url.PathEscape(action))

	var body io.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding action parameters: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(id, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp)
		c.logError(id, err)
		return err
	}

	// Discard any body so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// entityURL builds the per-entity path, with an optional suffix.
func (c *Client) entityURL(id, suffix string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/entities/" + url.PathEscape(id)
	if suffix != "" {
		u.Path += "/" + suffix
	}
	return u.String()
}

// statusError reads a bounded amount of the failure body for context.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

// logError emits a fetch-failed event.
func (c *Client) logError(id string, err error) {
	if c.logger == nil {
		return
	}
	event := synclog.NewEvent(synclog.SourceRest, synclog.KindFetchFailed)
	event.Entity = id
	event.Error = err.Error()
	c.logger.Log(event)
}
