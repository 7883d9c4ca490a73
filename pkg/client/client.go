package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Client talks to a management endpoint over its HTTP API
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	waiter     *cluster.Waiter
	logger     zerolog.Logger
}

var _ cluster.Client = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithPollInterval sets how often WaitForTasks polls task state
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.waiter = cluster.NewWaiter(d, 0)
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the endpoint at baseURL
func NewClient(baseURL, user, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		waiter: cluster.NewWaiter(2*time.Second, 0),
		logger: log.WithComponent("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConnection creates a client from validated connection settings
func NewFromConnection(conn config.Connection) *Client {
	return NewClient(conn.Endpoint, conn.User, conn.Password,
		WithTimeout(conn.Timeout),
		WithPollInterval(conn.PollInterval),
	)
}

// APIError is a non-success response from the endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) ListHosts(ctx context.Context, clusterName string) ([]string, error) {
	var resp api.HostsResponse
	if err := c.do(ctx, http.MethodGet, api.HostsPath(clusterName), nil, &resp); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return resp.Hosts, nil
}

func (c *Client) GetHostProperties(ctx context.Context, hostIDs []string, fields []string) (map[string]types.HostProperties, error) {
	var resp api.PropertiesResponse
	req := api.PropertiesRequest{HostIDs: hostIDs, Fields: fields}
	if err := c.do(ctx, http.MethodPost, api.HostPropertiesPath(), req, &resp); err != nil {
		return nil, fmt.Errorf("get host properties: %w", err)
	}
	return resp.Properties, nil
}

func (c *Client) QueryDisks(ctx context.Context, hostID string) ([]types.Disk, error) {
	var resp api.DisksResponse
	if err := c.do(ctx, http.MethodGet, api.DisksPath(hostID), nil, &resp); err != nil {
		return nil, fmt.Errorf("query disks: %w", err)
	}
	return resp.Disks, nil
}

func (c *Client) WipeDiskPartitions(ctx context.Context, hostID, diskID string) error {
	if err := c.do(ctx, http.MethodPost, api.WipePath(hostID, diskID), nil, nil); err != nil {
		return fmt.Errorf("wipe disk: %w", err)
	}
	return nil
}

func (c *Client) EnableStorageNetwork(ctx context.Context, hostID string, cfg types.NetworkConfig) (types.DeploymentTask, error) {
	req := api.NetworkRequest{
		Device:              cfg.Device,
		UpstreamIPAddress:   cfg.UpstreamIPAddress,
		DownstreamIPAddress: cfg.DownstreamIPAddress,
	}
	return c.submit(ctx, api.NetworkPath(hostID), req, "enable storage network")
}

func (c *Client) ReconfigureCluster(ctx context.Context, clusterName string, req types.ClusterReconfigRequest) (types.DeploymentTask, error) {
	return c.submit(ctx, api.ReconfigurePath(clusterName), api.ReconfigureRequest{Config: req}, "reconfigure cluster")
}

func (c *Client) CreateDiskGroup(ctx context.Context, spec types.DiskGroupSpec) (types.DeploymentTask, error) {
	req := api.DiskGroupRequest{
		Cache:    spec.Cache,
		Capacity: spec.Capacity,
		Mode:     spec.Mode,
	}
	return c.submit(ctx, api.DiskGroupsPath(spec.HostID), req, "create disk group")
}

func (c *Client) QueryDiskGroups(ctx context.Context, hostID string) ([]types.DiskGroupMapping, error) {
	var resp api.DiskGroupsResponse
	if err := c.do(ctx, http.MethodGet, api.DiskGroupsPath(hostID), nil, &resp); err != nil {
		return nil, fmt.Errorf("query disk groups: %w", err)
	}
	return resp.DiskGroups, nil
}

func (c *Client) EnablePerformanceService(ctx context.Context, clusterName string) (types.DeploymentTask, error) {
	return c.submit(ctx, api.PerformancePath(clusterName), struct{}{}, "enable performance service")
}

// TaskStatus fetches the current state of a task
func (c *Client) TaskStatus(ctx context.Context, taskID string) (types.TaskResult, error) {
	var resp api.TaskResponse
	if err := c.do(ctx, http.MethodGet, api.TaskPath(taskID), nil, &resp); err != nil {
		return types.TaskResult{}, fmt.Errorf("get task: %w", err)
	}
	return types.TaskResult{Task: resp.Task(), State: resp.State, Error: resp.Error}, nil
}

func (c *Client) WaitForTasks(ctx context.Context, tasks []types.DeploymentTask) ([]types.TaskResult, error) {
	c.logger.Debug().Int("tasks", len(tasks)).Msg("Polling tasks")
	return c.waiter.WaitForTasks(ctx, tasks, func(ctx context.Context, task types.DeploymentTask) (types.TaskResult, error) {
		return c.TaskStatus(ctx, task.ID)
	})
}

func (c *Client) AssignLicense(ctx context.Context, clusterName, licenseKey string) error {
	req := api.LicenseRequest{LicenseKey: licenseKey}
	if err := c.do(ctx, http.MethodPut, api.LicensePath(clusterName), req, nil); err != nil {
		return fmt.Errorf("assign license: %w", err)
	}
	return nil
}

// License reads the license key assigned to a cluster
func (c *Client) License(ctx context.Context, clusterName string) (string, error) {
	var resp api.LicenseResponse
	if err := c.do(ctx, http.MethodGet, api.LicensePath(clusterName), nil, &resp); err != nil {
		return "", fmt.Errorf("get license: %w", err)
	}
	return resp.LicenseKey, nil
}

func (c *Client) submit(ctx context.Context, path string, payload any, what string) (types.DeploymentTask, error) {
	var resp api.TaskResponse
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return types.DeploymentTask{}, fmt.Errorf("%s: %w", what, err)
	}
	task := resp.Task()
	c.logger.Debug().
		Str("task_id", task.ID).
		Str("operation", string(task.Operation)).
		Str("target", task.Target).
		Msg("Task submitted")
	return task, nil
}

// do sends one request and decodes the response into out, if given
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError converts an error response. A 404 naming an object becomes
// an object-not-found error and a 409 wraps cluster.ErrRejected.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && body.Object != "":
		return cluster.NewObjectNotFound(body.Object)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", body.Error, cluster.ErrRejected)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}

// IsUnauthorized reports whether err is an authentication failure
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
