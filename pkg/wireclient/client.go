// Package wireclient is the Sender's and Reconnector's HTTP transport to
// the backup server: it knows the wire protocol's endpoint shapes but
// nothing about chunking, caching, or carving.
package wireclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/vigil/pkg/wireproto"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 120 * time.Second

// Client is the backup server API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client pointed at baseURL (e.g. "http://10.0.0.1:5468").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// do marshals body (if non-nil) as JSON, POSTs or GETs path, and decodes
// the JSON response into result (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wireclient: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("wireclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", wireproto.ContentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wireclient: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wireclient: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("wireclient: %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("wireclient: decode response: %w", err)
		}
	}
	return nil
}

// Version probes the server's liveness; used by the Reconnector.
func (c *Client) Version(ctx context.Context) (wireproto.VersionResponse, error) {
	var out wireproto.VersionResponse
	err := c.do(ctx, http.MethodGet, wireproto.EndpointVersion, nil, &out)
	return out, err
}

// PostMeta POSTs a metadata record and returns the hash list the server
// still needs.
func (c *Client) PostMeta(ctx context.Context, meta wireproto.Metadata) ([]string, error) {
	var out wireproto.HashListResponse
	if err := c.do(ctx, http.MethodPost, wireproto.EndpointMeta, meta, &out); err != nil {
		return nil, err
	}
	return out.HashList, nil
}

// PostHashArray POSTs a list of candidate hashes and returns the subset
// the server still needs. Used only by the big-file path.
func (c *Client) PostHashArray(ctx context.Context, hashList []string) ([]string, error) {
	var out wireproto.HashListResponse
	req := wireproto.HashListResponse{HashList: hashList}
	if err := c.do(ctx, http.MethodPost, wireproto.EndpointHashArray, req, &out); err != nil {
		return nil, err
	}
	return out.HashList, nil
}

// PostBlock POSTs a single block to the single-block endpoint.
func (c *Client) PostBlock(ctx context.Context, block wireproto.Block) error {
	var out wireproto.SuccessResponse
	return c.do(ctx, http.MethodPost, wireproto.EndpointData, block, &out)
}

// PostBlockArray POSTs a batch of blocks to the bulk endpoint.
func (c *Client) PostBlockArray(ctx context.Context, blocks []wireproto.Block) error {
	var out wireproto.SuccessResponse
	req := wireproto.DataArrayRequest{DataArray: blocks}
	return c.do(ctx, http.MethodPost, wireproto.EndpointDataArray, req, &out)
}

// RawPost POSTs an already-serialized payload to path and discards the
// response body on success. Used by the Reconnector to replay a buffered
// request without re-marshaling it.
func (c *Client) RawPost(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("wireclient: build raw request: %w", err)
	}
	req.Header.Set("Content-Type", wireproto.ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wireclient: raw request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wireclient: raw POST %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return nil
}
