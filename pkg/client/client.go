// Package client is a typed Go client for the churn-api REST contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("churn-api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("churn-api: %s (HTTP %d)", e.Detail, e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New returns a client for baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    utils.NewHTTPClient(utils.WithRequestTimeout(30 * time.Second)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Login(ctx context.Context, username, password string) (views.LoginResponse, error) {
	var resp views.LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/login", views.LoginRequest{Username: username, Password: password}, &resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (views.Stats, error) {
	var resp views.Stats
	err := c.doJSON(ctx, http.MethodGet, "/stats", nil, &resp)
	return resp, err
}

// Logs returns recent prediction logs; limit <= 0 uses the server default.
func (c *Client) Logs(ctx context.Context, limit int) ([]views.LogEntry, error) {
	path := "/logs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var resp []views.LogEntry
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) Features(ctx context.Context) (views.FeatureCatalog, error) {
	var resp views.FeatureCatalog
	err := c.doJSON(ctx, http.MethodGet, "/features", nil, &resp)
	return resp, err
}

// Predict validates the record locally before sending it.
func (c *Client) Predict(ctx context.Context, record views.CustomerRecord) (views.PredictionResult, error) {
	if err := ValidateRecord(record); err != nil {
		return views.PredictionResult{}, err
	}
	var resp views.PredictionResult
	err := c.doJSON(ctx, http.MethodPost, "/predict", record, &resp)
	return resp, err
}

// Report renders a PDF for data (a prediction result, optionally merged with the
// customer attributes) and returns its bytes and the server-suggested filename.
func (c *Client) Report(ctx context.Context, data map[string]any) ([]byte, string, error) {
	res, err := c.do(ctx, http.MethodPost, "/report", views.ReportRequest{Data: data})
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", err
	}
	return body, reportFilename(res.Header.Get("Content-Disposition")), nil
}

// reportFilename takes the base name of the suggested attachment filename so a server cannot
// direct the file outside the current directory.
func reportFilename(contentDisposition string) string {
	fallback := "ChurnReport_" + pkg.UnknownCustomer + ".pdf"
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return fallback
	}
	name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(params["filename"], `\`, "/")))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return fallback
	}
	return name
}

func (c *Client) Settings(ctx context.Context) (views.Settings, error) {
	var resp views.Settings
	err := c.doJSON(ctx, http.MethodGet, "/settings", nil, &resp)
	return resp, err
}

func (c *Client) UpdateSettings(ctx context.Context, theme pkg.Theme) (views.Settings, error) {
	var resp views.Settings
	err := c.doJSON(ctx, http.MethodPut, "/settings", views.Settings{Theme: theme}, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	res, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends the request and converts non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	apiErr := &APIError{StatusCode: res.StatusCode, TraceID: res.Header.Get(pkg.HeaderTraceId)}
	var errBody pkg.ErrorResponse
	if b, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10)); json.Unmarshal(b, &errBody) == nil {
		apiErr.Code = errBody.Code
		apiErr.Detail = errBody.Detail
		if apiErr.Detail == "" {
			apiErr.Detail = errBody.Message
		}
		if errBody.TraceID != "" {
			apiErr.TraceID = errBody.TraceID
		}
	}
	return nil, apiErr
}
