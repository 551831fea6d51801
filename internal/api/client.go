// Package api talks to a radiata metrics server. It holds the wire types
// shared with the agent, an HTTP client, and a synthetic source for demo
// mode.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prefix is the path every endpoint lives under.
const Prefix = "/api/v1"

// ErrBadURL is returned by NewClient for a base URL that is not absolute http(s).
var ErrBadURL = errors.New("api: server URL must be absolute http or https")

// StatusError reports a non-200 response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s returned %d %s", e.Endpoint, e.Code, http.StatusText(e.Code))
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Source is everything the dashboard reads. *Client and *Mock implement it.
type Source interface {
	Health(ctx context.Context) error

	CPUName(ctx context.Context) (string, error)
	CPUPercent(ctx context.Context) (*float64, error)
	CPUPercents(ctx context.Context) ([]CoreSample, error)
	CPUFrequency(ctx context.Context) (*float64, error)
	CPULoadAvg(ctx context.Context) (LoadAvg, error)
	CPUCounts(ctx context.Context) (logical, physical int, err error)
	CPUTemperature(ctx context.Context) (*float64, error)

	MemoryTotal(ctx context.Context) (*float64, error)
	MemoryAvailable(ctx context.Context) (*float64, error)
	MemoryUsed(ctx context.Context) (*float64, error)
	MemoryPercent(ctx context.Context) (*float64, error)
	MemoryPercents(ctx context.Context) ([]MemorySample, error)

	DiskUsages(ctx context.Context) (DiskUsages, error)
	DiskIORead(ctx context.Context) (*float64, error)
	DiskIOWrite(ctx context.Context) (*float64, error)

	NetworkRecv(ctx context.Context) (*float64, error)
	NetworkSent(ctx context.Context) (*float64, error)
	NetworkInterfaces(ctx context.Context) (map[string]Interface, error)

	GPUInfo(ctx context.Context) (GPUInfo, error)
	GPUMetric(ctx context.Context, metric GPUMetric, index int) (*float64, error)

	Processes(ctx context.Context) ([]Process, error)
}

// Client is a Source backed by a metrics server.
type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the logger used for request failures.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient returns a client for the server at baseURL, e.g.
// "http://localhost:4444". A trailing slash is ignored.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadURL, baseURL)
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		hc:   &http.Client{Timeout: 5 * time.Second},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	endpoint := Prefix + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("api: decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) number(ctx context.Context, path string) (*float64, error) {
	var v *float64
	if err := c.get(ctx, path, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) Health(ctx context.Context) error {
	var msg string
	return c.get(ctx, "/health", &msg)
}

func (c *Client) CPUName(ctx context.Context) (string, error) {
	var name string
	if err := c.get(ctx, "/cpu/"+CPUName, &name); err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

func (c *Client) CPUPercent(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/cpu/"+CPUPercent)
}

func (c *Client) CPUPercents(ctx context.Context) ([]CoreSample, error) {
	var out []CoreSample
	err := c.get(ctx, "/cpu/"+CPUPercents, &out)
	return out, err
}

func (c *Client) CPUFrequency(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/cpu/"+CPUFrequency)
}

func (c *Client) CPULoadAvg(ctx context.Context) (LoadAvg, error) {
	var out LoadAvg
	err := c.get(ctx, "/cpu/"+CPULoadAvg, &out)
	return out, err
}

func (c *Client) CPUCounts(ctx context.Context) (logical, physical int, err error) {
	if err = c.get(ctx, "/cpu/"+CPULogicalCount, &logical); err != nil {
		return 0, 0, err
	}
	if err = c.get(ctx, "/cpu/"+CPUPhysicalCount, &physical); err != nil {
		return 0, 0, err
	}
	return logical, physical, nil
}

func (c *Client) CPUTemperature(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/cpu/"+CPUTemperature)
}

func (c *Client) MemoryTotal(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/memory/total")
}

func (c *Client) MemoryAvailable(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/memory/available")
}

func (c *Client) MemoryUsed(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/memory/used")
}

func (c *Client) MemoryPercent(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/memory/percent")
}

func (c *Client) MemoryPercents(ctx context.Context) ([]MemorySample, error) {
	var out []MemorySample
	err := c.get(ctx, "/memory/percents", &out)
	return out, err
}

func (c *Client) DiskUsages(ctx context.Context) (DiskUsages, error) {
	var out DiskUsages
	err := c.get(ctx, "/disk/usages", &out)
	return out, err
}

func (c *Client) DiskIORead(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/disk/io_read")
}

func (c *Client) DiskIOWrite(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/disk/io_write")
}

func (c *Client) NetworkRecv(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/network/io_recv")
}

func (c *Client) NetworkSent(ctx context.Context) (*float64, error) {
	return c.number(ctx, "/network/io_sent")
}

func (c *Client) NetworkInterfaces(ctx context.Context) (map[string]Interface, error) {
	var out map[string]Interface
	err := c.get(ctx, "/network/interfaces", &out)
	return out, err
}

// GPUInfo reads the static inventory. Names and totals are only requested
// when the server reports a GPU.
func (c *Client) GPUInfo(ctx context.Context) (GPUInfo, error) {
	var info GPUInfo
	if err := c.get(ctx, "/gpu/has_gpu", &info.HasGPU); err != nil {
		return GPUInfo{}, err
	}
	if !info.HasGPU {
		return info, nil
	}
	if err := c.get(ctx, "/gpu/count", &info.Count); err != nil {
		return GPUInfo{}, err
	}
	if err := c.get(ctx, "/gpu/names", &info.Names); err != nil {
		return GPUInfo{}, err
	}
	if err := c.get(ctx, "/gpu/memory_total", &info.MemoryTotal); err != nil {
		return GPUInfo{}, err
	}
	return info, nil
}

func (c *Client) GPUMetric(ctx context.Context, metric GPUMetric, index int) (*float64, error) {
	return c.number(ctx, "/gpu/"+string(metric)+"/"+strconv.Itoa(index))
}

// Processes returns the newest process list. A server that has not sampled
// yet answers null, which comes back as a nil slice.
func (c *Client) Processes(ctx context.Context) ([]Process, error) {
	var out []Process
	err := c.get(ctx, "/process/list", &out)
	return out, err
}
