// Package rpc is a JSON-RPC 2.0 client for the base ledger and the TEE
// delegate. Both speak the same method set; the TEE endpoint additionally
// carries a bearer token as a query parameter.
package rpc

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
	"sync/atomic"
	"time"
)

var ErrUnavailable = errors.New("rpc_unavailable")

type Client struct {
	name     string
	endpoint string
	inner    *http.Client
	seq      *atomic.Uint64
}

func NewClient(name, endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		name:     name,
		endpoint: endpoint,
		inner:    &http.Client{Timeout: timeout},
		seq:      new(atomic.Uint64),
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// WithToken returns a client bound to the same transport whose requests
// carry token as the "token" query parameter.
func (c *Client) WithToken(token string) *Client {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	cp := *c
	cp.endpoint = u.String()
	return &cp
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error"`
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Call invokes method and decodes the result into out when out is non-nil.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	start := time.Now()
	err := c.call(ctx, method, params, out)
	observeCall(c.name, method, err, time.Since(start))
	return err
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	raw, err := json.Marshal(request{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.inner.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, c.name, method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: read body: %v", ErrUnavailable, c.name, method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrUnavailable, c.name, method, resp.StatusCode, truncate(body, 200))
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", c.name, method, err)
	}
	if decoded.Error != nil {
		return newError(decoded.Error)
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("%s %s: decode result: %w", c.name, method, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
