package payload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minisource/schedulerd/internal/sched"
	"github.com/minisource/schedulerd/internal/sched/job"
)

// EndpointSpec is the HTTP job detail stashed in a job.Record's Opaque
// field by whatever builds the Record (the postgres repository adapter,
// or a test fixture). It is deliberately a plain struct, not a pointer
// into models.JobDefinition, so the scheduler core never sees a
// persistence type.
type EndpointSpec struct {
	TenantID   string
	Endpoint   string
	Method     string
	Headers    json.RawMessage
	Payload    json.RawMessage
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// SubSecondPrecision is set when the job's recurrence expression
	// resolves to a fire instant with a non-zero fractional second (an
	// interval like "0.5", or a one-time/cron instant carrying a
	// fractional second). The scheduler core only tracks whole-second
	// fire instants, so such a job is still queued and keeps advancing,
	// but every fire is reported as ExecUnsupportedPrecision and skipped
	// rather than silently rounded.
	SubSecondPrecision bool
}

// ExecutionResult is the raw outcome of one HTTP call, kept distinct
// from sched.ExecResult so callers that want status code/body detail
// (the fire-history writer) don't have to thread it through the
// scheduler core's narrower adapter contract.
type ExecutionResult struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   int64 // milliseconds
	Error      string
}

// HTTPExecutor executes HTTP-based jobs. It implements sched.PayloadAdapter.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor creates a new HTTP executor.
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{client: client}
}

// Execute implements sched.PayloadAdapter. rec.Opaque must be an
// EndpointSpec; any other shape is reported as a compile error since
// the core has no way to retry it more usefully.
func (e *HTTPExecutor) Execute(ctx context.Context, rec *job.Record) (sched.ExecResult, string, error) {
	spec, ok := rec.Opaque.(EndpointSpec)
	if !ok {
		return sched.ExecCompileError, "job record carries no endpoint spec", nil
	}

	if spec.SubSecondPrecision {
		return sched.ExecUnsupportedPrecision, "job recurrence requests sub-second precision", nil
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	result, err := e.executeOnce(ctx, spec)
	if err != nil {
		return sched.ExecOther, result.Error, err
	}
	return sched.ExecOk, "", nil
}

// ExecuteWithRetry runs the job, retrying retryable failures up to
// spec.MaxRetries times with spec.RetryDelay between attempts.
func (e *HTTPExecutor) ExecuteWithRetry(ctx context.Context, spec EndpointSpec) (*ExecutionResult, error) {
	var lastErr error
	var result *ExecutionResult

	for attempt := 0; attempt <= spec.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(spec.RetryDelay):
			}
		}

		result, lastErr = e.executeOnce(ctx, spec)
		if lastErr == nil {
			return result, nil
		}

		if !isRetryable(result) {
			return result, lastErr
		}
	}

	return result, lastErr
}

func (e *HTTPExecutor) executeOnce(ctx context.Context, spec EndpointSpec) (*ExecutionResult, error) {
	start := time.Now()
	result := &ExecutionResult{}

	req, err := buildRequest(ctx, spec)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start).Milliseconds()
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start).Milliseconds()
		return result, err
	}

	result.StatusCode = resp.StatusCode
	result.Body = body
	result.Headers = resp.Header
	result.Duration = time.Since(start).Milliseconds()

	if resp.StatusCode >= 400 {
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return result, fmt.Errorf("%s", result.Error)
	}

	return result, nil
}

func buildRequest(ctx context.Context, spec EndpointSpec) (*http.Request, error) {
	var body io.Reader
	if len(spec.Payload) > 0 {
		body = bytes.NewReader(spec.Payload)
	}

	method := spec.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "schedulerd/1.0")
	req.Header.Set("X-Scheduler-Tenant-ID", spec.TenantID)

	if len(spec.Payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	if len(spec.Headers) > 0 {
		var headers map[string]string
		if err := json.Unmarshal(spec.Headers, &headers); err == nil {
			for key, value := range headers {
				req.Header.Set(key, value)
			}
		}
	}

	return req, nil
}

func isRetryable(result *ExecutionResult) bool {
	if result == nil {
		return true
	}
	if result.StatusCode >= 500 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return false
}
