// Package coordclient is the worker's authenticated HTTP client to the
// coordinator's request surface, grounded on the teacher repo's
// internal/httputil.ServiceClient retry-oriented client.
package coordclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

// Client talks to the coordinator's /work/* endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client against baseURL, presenting token on every mutating
// request via the dedicated header.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// LeaseRequest is the /work/request request body.
type LeaseRequest struct {
	CPUCount int    `json:"cpuCount"`
	ClientID string `json:"clientId"`
}

// LeaseResponse is the /work/request response body.
type LeaseResponse struct {
	Success       bool                       `json:"success"`
	Passwords     []string                   `json:"passwords"`
	Encrypt       walletdesc.Descriptor      `json:"encrypt"`
	BatchID       string                     `json:"batchId"`
	Count         int                        `json:"count"`
	PasswordFound bool                       `json:"passwordFound,omitempty"`
}

// Lease requests a new batch of candidate passphrases.
func (c *Client) Lease(ctx context.Context, req LeaseRequest) (LeaseResponse, error) {
	var resp LeaseResponse
	err := c.doJSON(ctx, http.MethodPost, "/work/request", req, &resp, true)
	return resp, err
}

// ResultRequest is the /work/result request body.
type ResultRequest struct {
	BatchID        string   `json:"batchId"`
	ClientID       string   `json:"clientId"`
	Success        bool     `json:"success"`
	FoundPassword  string   `json:"foundPassword,omitempty"`
	Passwords      []string `json:"passwords"`
}

// ResultResponse is the /work/result response body.
type ResultResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ShouldStop    bool   `json:"shouldStop,omitempty"`
	PasswordFound bool   `json:"passwordFound,omitempty"`
}

// Report submits a batch result.
func (c *Client) Report(ctx context.Context, req ResultRequest) (ResultResponse, error) {
	var resp ResultResponse
	err := c.doJSON(ctx, http.MethodPost, "/work/result", req, &resp, true)
	return resp, err
}

// FoundRequest is the /work/found request body.
type FoundRequest struct {
	Password string `json:"password"`
	ClientID string `json:"clientId"`
}

// FoundResponse is the /work/found response body.
type FoundResponse struct {
	Success       bool `json:"success"`
	PasswordFound bool `json:"passwordFound"`
}

// ConfirmFound notifies the coordinator of a match, idempotently.
func (c *Client) ConfirmFound(ctx context.Context, req FoundRequest) (FoundResponse, error) {
	var resp FoundResponse
	err := c.doJSON(ctx, http.MethodPost, "/work/found", req, &resp, true)
	return resp, err
}

// doJSON marshals body (if non-nil), POSTs/GETs it to path, and decodes the
// JSON response into out. authenticated adds the worker's shared-secret
// header the way every /work/* endpoint requires.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("X-API-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("coordinator returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}
