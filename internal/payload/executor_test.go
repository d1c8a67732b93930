package payload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/minisource/schedulerd/internal/sched"
	"github.com/minisource/schedulerd/internal/sched/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecutorSkipsSubSecondPrecisionJobs(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := NewHTTPExecutor(nil)
	rec := &job.Record{
		Opaque: EndpointSpec{
			Endpoint:           server.URL,
			Method:             http.MethodPost,
			SubSecondPrecision: true,
		},
	}

	result, msg, err := executor.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, sched.ExecUnsupportedPrecision, result)
	assert.NotEmpty(t, msg)
	assert.False(t, called, "endpoint must not be called for a sub-second-precision job")
}

func TestHTTPExecutorRunsWholeSecondJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := NewHTTPExecutor(nil)
	rec := &job.Record{
		Opaque: EndpointSpec{
			Endpoint: server.URL,
			Method:   http.MethodPost,
		},
	}

	result, _, err := executor.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, sched.ExecOk, result)
}

func TestHTTPExecutorRejectsMissingEndpointSpec(t *testing.T) {
	executor := NewHTTPExecutor(nil)
	rec := &job.Record{Opaque: "not an endpoint spec"}

	result, msg, err := executor.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, sched.ExecCompileError, result)
	assert.NotEmpty(t, msg)
}
