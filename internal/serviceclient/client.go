// Package serviceclient speaks the resource-service envelope
// ({success, data}) to downstream services resolved from the route table.
package serviceclient

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

	"github.com/smallbiznis/crm/internal/config"
	obscontext "github.com/smallbiznis/crm/internal/observability/context"
	"github.com/smallbiznis/crm/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("serviceclient",
	fx.Provide(New),
)

const maxResponseBytes = 10 << 20

type Client struct {
	routes  config.RouteTable
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

func New(p Params) *Client {
	return NewWithHTTPClient(p.Cfg.Routes, p.Cfg.UpstreamTimeout, tracing.WrapHTTPClient(&http.Client{}), p.Log)
}

// NewWithHTTPClient builds a client over an explicit route table and transport.
func NewWithHTTPClient(routes config.RouteTable, timeout time.Duration, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		routes:  routes,
		http:    httpClient,
		timeout: timeout,
		log:     log.Named("serviceclient"),
	}
}

// Timeout is the bound applied to every call.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// List reads a collection: GET {base}{path} returning {success, data:[...]}.
func (c *Client) List(ctx context.Context, path string) ([]Record, error) {
	raw, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	records := []Record{}
	if isNull(raw) {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return records, nil
}

// Get reads one record: GET {base}{path}/{id} returning {success, data:{...}}.
func (c *Client) Get(ctx context.Context, path, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	raw, err := c.call(ctx, http.MethodGet, strings.TrimRight(path, "/")+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, ErrNotFound
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return record, nil
}

// Do sends body as JSON and decodes the envelope's data into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	raw, err := c.call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	_, endpoint, ok := c.routes.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, path)
	}

	ctx, cancel := context.WithTimeout(obscontext.WithService(ctx, endpoint.Name), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UnreachableError{Service: endpoint.Name, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UnreachableError{Service: endpoint.Name, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &RejectedError{Service: endpoint.Name, Status: resp.StatusCode, Body: payload}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if env.Success != nil && !*env.Success {
		return nil, &RejectedError{Service: endpoint.Name, Status: resp.StatusCode, Body: payload}
	}
	return env.Data, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Reason reduces an error from this package to a short label for logs and
// aggregate sections.
func Reason(err error) string {
	var rejected *RejectedError
	var unreachable *UnreachableError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return fmt.Sprintf("upstream responded %d", rejected.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "upstream timeout"
	case errors.As(err, &unreachable):
		return "upstream unreachable"
	case errors.Is(err, ErrUnknownService):
		return "unknown service"
	default:
		return "invalid upstream response"
	}
}
