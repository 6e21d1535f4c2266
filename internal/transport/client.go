package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// Client talks to the coordinator at BaseURL and to workers by endpoint.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient creates a client for the coordinator at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	rc := retryablehttp.NewClient()
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

// retryPolicy retries transport errors and responses that signal a
// temporary condition. Other status codes are returned to the caller, since
// repeating a POST the peer already acted on would duplicate work.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return true, nil
	}
	return false, nil
}

// Dispatch sends t to the worker at endpoint.
func (c *Client) Dispatch(ctx context.Context, endpoint string, t model.Task) error {
	target := strings.TrimRight(endpoint, "/") + "/v1/process"
	if err := c.do(ctx, http.MethodPost, target, model.Encode(t), nil); err != nil {
		return fmt.Errorf("dispatch %s: %w", t.TaskID(), err)
	}
	return nil
}

// Register announces a worker to the coordinator.
func (c *Client) Register(ctx context.Context, workerID, workerURL string) error {
	req := RegisterRequest{WorkerID: workerID, WorkerURL: workerURL}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/workers", req, nil); err != nil {
		return fmt.Errorf("register worker %s: %w", workerID, err)
	}
	return nil
}

// ListWorkers returns the workers registered with the coordinator.
func (c *Client) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/workers", nil, &workers); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}

// Submit starts a multiplication and returns its task id.
func (c *Client) Submit(ctx context.Context, a, b matrix.Matrix) (string, error) {
	var accepted TaskAccepted
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/tasks", SubmitRequest{MatrixA: a, MatrixB: b}, &accepted); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	return accepted.TaskID, nil
}

// ReturnSubtask hands one sub-product of parent back to the coordinator.
func (c *Client) ReturnSubtask(ctx context.Context, a, b matrix.Matrix, parent string, slot int) (string, error) {
	var accepted TaskAccepted
	req := SubtaskRequest{MatrixA: a, MatrixB: b, SlotIndex: &slot}
	if err := c.do(ctx, http.MethodPost, c.taskURL(parent, "subtasks"), req, &accepted); err != nil {
		return "", fmt.Errorf("return subtask %d of %s: %w", slot, parent, err)
	}
	return accepted.TaskID, nil
}

// ReportResult sends the product computed for task id.
func (c *Client) ReportResult(ctx context.Context, id string, m matrix.Matrix) error {
	if err := c.do(ctx, http.MethodPost, c.taskURL(id, "result"), ResultRequest{Result: m}, nil); err != nil {
		return fmt.Errorf("report result %s: %w", id, err)
	}
	return nil
}

// ReportFailure tells the coordinator that task id could not be processed.
func (c *Client) ReportFailure(ctx context.Context, id, reason string) error {
	if err := c.do(ctx, http.MethodPost, c.taskURL(id, "failure"), FailureRequest{Error: reason}, nil); err != nil {
		return fmt.Errorf("report failure %s: %w", id, err)
	}
	return nil
}

// GetResult fetches the stored result of a submission.
func (c *Client) GetResult(ctx context.Context, id string) (*model.Result, error) {
	var r model.Result
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/results/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}
	return &r, nil
}

// WaitResult polls GetResult until the submission leaves pending.
func (c *Client) WaitResult(ctx context.Context, id string, interval time.Duration) (*model.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r, err := c.GetResult(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.Status != model.StatusPending {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for result %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) taskURL(id, action string) string {
	return c.baseURL + "/v1/tasks/" + url.PathEscape(id) + "/" + action
}

// do sends body as JSON and decodes a 2xx response into out when out is
// non-nil. Error statuses are mapped to the package's sentinel errors.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, raw)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Unwrap maps the status code to the sentinel the server derived it from.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusBadRequest:
		return model.ErrInvalidTask
	case http.StatusNotFound:
		return model.ErrUnknownTask
	case http.StatusServiceUnavailable:
		return model.ErrNoWorkersAvailable
	case http.StatusBadGateway:
		return model.ErrDispatchFailure
	}
	return nil
}

func statusError(code int, body []byte) error {
	var er ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &StatusError{Code: code, Message: msg}
}

// IsStatus reports whether err carries an HTTP response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
