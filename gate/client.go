// Package gate implements [quill.Gate] against the usage-accounting HTTP
// API. Business rejections (quota exhausted, terms outdated) come back as
// decisions; anything else — network failure, non-2xx status, malformed
// body — is a [quill.TransportError], which the pipeline treats as
// non-fatal.
package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quillab/quill"
)

const checkPath = "/v1/usage/check"

// Interface compliance check.
var _ quill.Gate = (*Client)(nil)

// Client implements [quill.Gate] over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Useful for testing with httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a gate client for the given base URL and account token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// checkRequest is the JSON body sent to the usage API. Only the context's
// shape travels, never its text.
type checkRequest struct {
	App          string `json:"app"`
	BundleID     string `json:"bundle_id,omitempty"`
	Mode         string `json:"mode"`
	ContextChars int    `json:"context_chars"`
}

type checkResponse struct {
	Decision  string `json:"decision"`
	Remaining int    `json:"remaining"`
}

// Check asks the usage API whether the run may proceed.
func (c *Client) Check(ctx context.Context, cc *quill.CapturedContext, mode quill.Mode) (quill.QuotaDecision, error) {
	body, err := json.Marshal(checkRequest{
		App:          cc.App.Name,
		BundleID:     cc.App.BundleID,
		Mode:         string(mode),
		ContextChars: len(cc.CompactText()),
	})
	if err != nil {
		return quill.QuotaDecision{}, &quill.TransportError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, bytes.NewReader(body))
	if err != nil {
		return quill.QuotaDecision{}, &quill.TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return quill.QuotaDecision{}, &quill.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return quill.QuotaDecision{}, &quill.TransportError{Status: resp.StatusCode, Body: string(b)}
	}

	var cr checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return quill.QuotaDecision{}, &quill.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("gate: decoding response: %w", err)}
	}

	switch cr.Decision {
	case "proceed":
		return quill.Proceed(cr.Remaining), nil
	case "quota_exceeded":
		return quill.QuotaDecision{Kind: quill.DecisionQuotaExceeded}, nil
	case "terms_required":
		return quill.QuotaDecision{Kind: quill.DecisionTermsRequired}, nil
	default:
		return quill.QuotaDecision{}, &quill.TransportError{Status: resp.StatusCode, Body: cr.Decision, Err: fmt.Errorf("gate: unknown decision %q", cr.Decision)}
	}
}
