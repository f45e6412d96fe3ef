// Package apiclient is a thin, hand-written client for the subset of the
// Thorium HTTP API that the scaler and agent consume: image/pipeline/
// reaction cache warmers, the queue-depth probe, result upload, and
// sample download. The API server itself is out of scope; only its wire
// contract is implemented here, a bare net/http client with explicit
// status checks and a shared bearer-token base client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// Client wraps net/http with the config-driven base-URL + bearer-token
// pattern every Thorium core process authenticates to the API with.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// New builds a Client. A zero Timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build api request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "api request", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out any) error {
	defer io.Copy(io.Discard, resp.Body) //nolint:errcheck
	if resp.StatusCode == http.StatusNotFound {
		return errs.New(errs.NotFound, "api: "+resp.Request.URL.Path)
	}
	if resp.StatusCode >= 500 {
		return errs.New(errs.Unavailable, "api: "+resp.Status)
	}
	if resp.StatusCode >= 400 {
		return errs.New(errs.Validation, "api: "+resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Internal, "decode api response", err)
	}
	return nil
}

// GetImage is the GET /api/images/{group}/{name} cache warmer the scaler
// and agent use to resolve an Image definition.
func (c *Client) GetImage(ctx context.Context, group, name string) (model.Image, error) {
	var img model.Image
	path := fmt.Sprintf("/api/images/%s/%s", url.PathEscape(group), url.PathEscape(name))
	err := c.getJSON(ctx, path, &img)
	return img, err
}

// GetPipeline is the GET /api/pipelines/{group}/{name} cache warmer.
func (c *Client) GetPipeline(ctx context.Context, group, name string) (model.Pipeline, error) {
	var p model.Pipeline
	path := fmt.Sprintf("/api/pipelines/%s/%s", url.PathEscape(group), url.PathEscape(name))
	err := c.getJSON(ctx, path, &p)
	return p, err
}

// UpdateReaction is PATCH /api/reactions/{id}, used by the event handler
// and agent to advance a reaction's status/current_stage.
func (c *Client) UpdateReaction(ctx context.Context, id string, patch map[string]any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal reaction patch", err)
	}
	resp, err := c.do(ctx, http.MethodPatch, "/api/reactions/"+url.PathEscape(id), bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, nil)
}

// DepthWindow is one bucket of the streams/depth range response.
type DepthWindow struct {
	Start time.Time `json:"start"`
	Depth int64     `json:"depth"`
}

// StreamDepth is GET /api/streams/depth/{group}/{ns}/{stream}/{start}/{end}[/{split}],
// the scaler's pool-sizing probe. split == 0 requests the single-window form.
func (c *Client) StreamDepth(ctx context.Context, group, ns, stream string, start, end time.Time, split time.Duration) ([]DepthWindow, error) {
	path := fmt.Sprintf("/api/streams/depth/%s/%s/%s/%d/%d",
		url.PathEscape(group), url.PathEscape(ns), url.PathEscape(stream), start.Unix(), end.Unix())
	if split > 0 {
		path += fmt.Sprintf("/%d", int64(split.Seconds()))
	}

	var single struct {
		Depth int64 `json:"depth"`
	}
	var windows []DepthWindow
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if split <= 0 {
		if err := decodeJSON(resp, &single); err != nil {
			return nil, err
		}
		return []DepthWindow{{Start: start, Depth: single.Depth}}, nil
	}
	if err := decodeJSON(resp, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// DownloadSample is GET /api/files/sample/{sha256}, used by the agent to
// materialise a target's bytes before invoking the underlying tool.
func (c *Client) DownloadSample(ctx context.Context, sha256 string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/files/sample/"+url.PathEscape(sha256), nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errs.New(errs.NotFound, "sample not found: "+sha256)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, errs.New(errs.Unavailable, "download sample: "+resp.Status)
	}
	return resp.Body, nil
}

// TriggerSource is one pipeline-level trigger, as returned in bulk by
// ListTriggers for the event handler's trigger cache.
type TriggerSource struct {
	Group    string        `json:"group"`
	Pipeline string        `json:"pipeline"`
	Trigger  model.Trigger `json:"trigger"`
}

// ListTriggers is GET /api/pipelines/triggers, the bulk read the event
// handler's trigger cache rebuilds from when the cache-status dirty flag
// for the "triggers" domain is set.
func (c *Client) ListTriggers(ctx context.Context) ([]TriggerSource, error) {
	var out []TriggerSource
	err := c.getJSON(ctx, "/api/pipelines/triggers", &out)
	return out, err
}

// CacheStatus is GET /api/events/cache/status[?reset=true], reporting
// which cache domains (e.g. "triggers") have changed since the caller
// last reset them.
func (c *Client) CacheStatus(ctx context.Context, reset bool) (map[string]bool, error) {
	path := "/api/events/cache/status"
	if reset {
		path += "?reset=true"
	}
	var out map[string]bool
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// StreamStatus is the batched progress payload the search-streamer's
// monitor flushes to the API at its send_status cadence.
type StreamStatus struct {
	Kind       string `json:"kind"`
	Successes  int64  `json:"successes"`
	Failures   int64  `json:"failures"`
	TokensLeft int64  `json:"tokens_remaining"`
}

// SendStreamStatus is PATCH /api/search/streams/{kind}/status, the
// search-streamer monitor's periodic progress flush.
func (c *Client) SendStreamStatus(ctx context.Context, status StreamStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal stream status", err)
	}
	path := "/api/search/streams/" + url.PathEscape(status.Kind) + "/status"
	resp, err := c.do(ctx, http.MethodPatch, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, nil)
}

// UploadResult is POST /api/results/{key} multipart, returning the
// (possibly pre-existing) result id. The API is expected to collapse
// duplicate (tool,key,cmd,body-hash) submissions to one logical result;
// this client only relays the response id.
func (c *Client) UploadResult(ctx context.Context, key string, result model.Result, files map[string]io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, err := json.Marshal(result)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "marshal result metadata", err)
	}
	if err := w.WriteField("result", string(meta)); err != nil {
		return "", errs.Wrap(errs.Internal, "write result field", err)
	}
	for name, r := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			return "", errs.Wrap(errs.Internal, "create form file", err)
		}
		if _, err := io.Copy(fw, r); err != nil {
			return "", errs.Wrap(errs.Internal, "copy file part", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", errs.Wrap(errs.Internal, "close multipart writer", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/results/"+url.PathEscape(key), &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
