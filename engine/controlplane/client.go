package controlplane

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// WorkflowSummary is the listing shape returned by the control plane.
type WorkflowSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Active    bool     `json:"active"`
	Tags      []string `json:"tags,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// Execution is one workflow run record.
type Execution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	Status     string `json:"status"`
	Mode       string `json:"mode,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	StoppedAt  string `json:"stoppedAt,omitempty"`
}

// ListOptions filters ListWorkflows.
type ListOptions struct {
	Active *bool
	Tag    string
	Limit  int
}

// ExecutionOptions filters GetExecutions.
type ExecutionOptions struct {
	Status string
	Limit  int
}

// ControlPlane is the collaborator contract the engine consumes. Every call
// suspends on I/O and honors context cancellation.
type ControlPlane interface {
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, w *workflow.Workflow) (*workflow.Workflow, error)
	CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context, opts ListOptions) ([]WorkflowSummary, error)
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	GetExecutions(ctx context.Context, workflowID string, opts ExecutionOptions) ([]Execution, error)
}

// Config for the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Retry overrides the default backoff policy; nil keeps DefaultPolicy.
	Retry *Policy
}

// Client is the resty-backed ControlPlane implementation. Requests do not
// retry inside resty; the retry policy wraps whole calls so cancellation is
// observed between attempts.
type Client struct {
	http  *resty.Client
	retry Policy
}

// NewClient validates the endpoint and builds the HTTP client.
func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("controlplane: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("controlplane: base URL must be absolute with a host, got %q", cfg.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("controlplane: base URL scheme must be http or https, got %q", parsed.Scheme)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-N8N-API-KEY", cfg.APIKey)
	retry := DefaultPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
		if retry.Base <= 0 {
			retry.Base = DefaultPolicy().Base
		}
		if retry.Cap <= 0 {
			retry.Cap = DefaultPolicy().Cap
		}
	}
	return &Client{http: http, retry: retry}, nil
}

type apiEnvelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var w workflow.Workflow
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).SetResult(&w).Get("/workflows/" + url.PathEscape(id))
		return c.checkResponse(ctx, resp, err, "get workflow "+id)
	})
	if err != nil {
		return nil, err
	}
	normalizeTypes(&w)
	return &w, nil
}

func (c *Client) UpdateWorkflow(ctx context.Context, id string, w *workflow.Workflow) (*workflow.Workflow, error) {
	var updated workflow.Workflow
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).
			SetBody(wireBody(w)).
			SetResult(&updated).
			Put("/workflows/" + url.PathEscape(id))
		return c.checkResponse(ctx, resp, err, "update workflow "+id)
	})
	if err != nil {
		return nil, err
	}
	normalizeTypes(&updated)
	return &updated, nil
}

func (c *Client) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	var created workflow.Workflow
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).
			SetBody(wireBody(w)).
			SetResult(&created).
			Post("/workflows")
		return c.checkResponse(ctx, resp, err, "create workflow")
	})
	if err != nil {
		return nil, err
	}
	normalizeTypes(&created)
	return &created, nil
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).Delete("/workflows/" + url.PathEscape(id))
		return c.checkResponse(ctx, resp, err, "delete workflow "+id)
	})
}

func (c *Client) ListWorkflows(ctx context.Context, opts ListOptions) ([]WorkflowSummary, error) {
	var envelope apiEnvelope[[]WorkflowSummary]
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req := c.http.R().SetContext(ctx).SetResult(&envelope)
		if opts.Active != nil {
			req.SetQueryParam("active", strconv.FormatBool(*opts.Active))
		}
		if opts.Tag != "" {
			req.SetQueryParam("tags", opts.Tag)
		}
		if opts.Limit > 0 {
			req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
		}
		resp, err := req.Get("/workflows")
		return c.checkResponse(ctx, resp, err, "list workflows")
	})
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func (c *Client) Activate(ctx context.Context, id string) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).Post("/workflows/" + url.PathEscape(id) + "/activate")
		return c.checkResponse(ctx, resp, err, "activate workflow "+id)
	})
}

func (c *Client) Deactivate(ctx context.Context, id string) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).Post("/workflows/" + url.PathEscape(id) + "/deactivate")
		return c.checkResponse(ctx, resp, err, "deactivate workflow "+id)
	})
}

func (c *Client) GetExecutions(ctx context.Context, workflowID string, opts ExecutionOptions) ([]Execution, error) {
	var envelope apiEnvelope[[]Execution]
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req := c.http.R().SetContext(ctx).
			SetResult(&envelope).
			SetQueryParam("workflowId", workflowID)
		if opts.Status != "" {
			req.SetQueryParam("status", opts.Status)
		}
		if opts.Limit > 0 {
			req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
		}
		resp, err := req.Get("/executions")
		return c.checkResponse(ctx, resp, err, "list executions")
	})
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// checkResponse turns a transport failure or non-2xx status into a
// classified error.
func (c *Client) checkResponse(ctx context.Context, resp *resty.Response, err error, action string) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Code: CodeConnectionError, Message: action + ": " + err.Error()}
	}
	if resp == nil {
		return &Error{Code: CodeNoResponse, Message: action + ": empty response"}
	}
	if resp.IsSuccess() {
		return nil
	}
	message := strings.TrimSpace(string(resp.Body()))
	if message == "" {
		message = resp.Status()
	}
	cpErr := classifyStatus(resp.StatusCode(), action+": "+message)
	logger.FromContext(ctx).Debug("control plane call failed",
		"action", action, "status", resp.StatusCode(), "code", cpErr.Code)
	return cpErr
}

// wireBody renders node types in the control plane's display form.
// Credentials travel verbatim; resolving or stripping them is the server's
// contract.
func wireBody(w *workflow.Workflow) map[string]any {
	nodes := make([]map[string]any, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		node := map[string]any{
			"name":        n.Name,
			"type":        workflow.DisplayNodeType(n.Type),
			"typeVersion": n.TypeVersion,
			"position":    n.Position,
			"parameters":  n.Parameters,
		}
		if n.ID != "" {
			node["id"] = n.ID
		}
		if n.Credentials != nil {
			node["credentials"] = n.Credentials
		}
		if n.Disabled {
			node["disabled"] = true
		}
		if n.WebhookID != "" {
			node["webhookId"] = n.WebhookID
		}
		if n.OnError != "" {
			node["onError"] = n.OnError
		}
		if n.Notes != "" {
			node["notes"] = n.Notes
		}
		nodes = append(nodes, node)
	}
	body := map[string]any{
		"name":        w.Name,
		"nodes":       nodes,
		"connections": w.Connections,
	}
	if w.Settings != nil {
		body["settings"] = w.Settings
	}
	return body
}

func normalizeTypes(w *workflow.Workflow) {
	for _, n := range w.Nodes {
		n.Type = workflow.NormalizeNodeType(n.Type)
	}
	if w.Connections == nil {
		w.Connections = make(map[string]workflow.ConnectionGroup)
	}
}
