package publish

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinilabs/cococi/pkg/central"
	"github.com/infinilabs/cococi/pkg/central/centraltest"
	transport "github.com/infinilabs/cococi/pkg/http"
)

func created(id string) centraltest.Response {
	return centraltest.Response{Status: http.StatusCreated, Body: id}
}

func state(s string) centraltest.Response {
	return centraltest.Response{Status: http.StatusOK, Body: `{"deploymentState":"` + s + `"}`}
}

var (
	networkError = centraltest.Response{Err: errors.New("connection reset by peer")}
	serverError  = centraltest.Response{Status: http.StatusInternalServerError, Body: "oops"}
	dropped      = centraltest.Response{Status: http.StatusNoContent}
)

func setup(t *testing.T, trip *centraltest.Transport, cfg Config) (*Publisher, string) {
	t.Helper()
	bundle := filepath.Join(t.TempDir(), "central-bundle.zip")
	require.NoError(t, ioutil.WriteFile(bundle, []byte("bundle"), 0644))
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	cfg.BaseURL = "http://central.test"
	return New(cfg, trip.Client(), transport.UserToken{Username: "u", Password: "p"}, log.NewNopLogger()), bundle
}

func TestPublishScenarioPublished(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created(`"abc123"`)).
		On(transport.DeploymentStatus, state("VALIDATING"), state("PUBLISHING"), state("PUBLISHED"))
	p, bundle := setup(t, trip, Config{})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, Published, out.Phase)
	assert.NoError(t, out.Err)
	assert.Equal(t, central.DeploymentID("abc123"), out.ID)
	assert.Equal(t, 3, out.Polls)
	assert.Len(t, trip.Calls(transport.DeploymentStatus), 3)
	assert.Empty(t, trip.Calls(transport.DropDeployment))
	assert.False(t, out.Dropped)
}

func TestPublishScenarioFailed(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("xyz")).
		On(transport.DeploymentStatus, centraltest.Response{Status: http.StatusOK, Body: `{"deploymentState":"FAILED","errors":["bad pom"]}`}).
		On(transport.DropDeployment, dropped)
	p, bundle := setup(t, trip, Config{})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, Failed, out.Phase)
	failed, ok := out.Err.(*DeploymentFailedError)
	require.True(t, ok, "expected *DeploymentFailedError, got %T", out.Err)
	assert.Equal(t, central.DeploymentErrors{"bad pom"}, failed.Errors)

	drops := trip.Calls(transport.DropDeployment)
	require.Len(t, drops, 1)
	assert.Equal(t, "xyz", drops[0].Vars["id"])
	assert.True(t, out.Dropped)
	assert.NoError(t, out.Cleanup)
}

func TestPublishUploadRejected(t *testing.T) {
	for _, resp := range []centraltest.Response{
		{Status: http.StatusOK, Body: "abc"},
		{Status: http.StatusBadRequest, Body: "invalid bundle"},
		{Status: http.StatusUnauthorized},
		networkError,
	} {
		trip := centraltest.New().On(transport.Upload, resp)
		p, bundle := setup(t, trip, Config{})

		out := p.Run(context.Background(), bundle)
		assert.Equal(t, 1, out.ExitCode())
		assert.Equal(t, UploadFailed, out.Phase)
		_, ok := out.Err.(*UploadError)
		assert.True(t, ok, "expected *UploadError, got %T", out.Err)
		assert.Empty(t, trip.Calls(transport.DeploymentStatus))
		assert.Empty(t, trip.Calls(transport.DropDeployment))
	}
}

func TestPublishTooManyTransientErrors(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("abc")).
		On(transport.DeploymentStatus, serverError, networkError, serverError, networkError, serverError).
		On(transport.DropDeployment, dropped)
	p, bundle := setup(t, trip, Config{Timeout: time.Hour, MaxConsecutiveErrors: 5})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, TooManyErrors, out.Phase)
	tooMany, ok := out.Err.(*TooManyErrorsError)
	require.True(t, ok, "expected *TooManyErrorsError, got %T", out.Err)
	assert.Equal(t, 5, tooMany.Count)
	_, ok = tooMany.Last.(*TransientStatusError)
	assert.True(t, ok)
	assert.Equal(t, 5, out.Polls)
	assert.Len(t, trip.Calls(transport.DropDeployment), 1)
}

func TestPublishErrorStreakResets(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("abc")).
		On(transport.DeploymentStatus,
			serverError, serverError, serverError, serverError, state("VALIDATING"),
			networkError, networkError, networkError, networkError, state("PUBLISHED"))
	p, bundle := setup(t, trip, Config{Timeout: time.Hour, MaxConsecutiveErrors: 5})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, 10, out.Polls)
	assert.Empty(t, trip.Calls(transport.DropDeployment))
}

func TestPublishTimeout(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("slow")).
		On(transport.DeploymentStatus, state("VALIDATING"), state("PUBLISHING")).
		On(transport.DropDeployment, dropped)
	p, bundle := setup(t, trip, Config{PollInterval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, TimedOut, out.Phase)
	timeout, ok := out.Err.(*TimeoutError)
	require.True(t, ok, "expected *TimeoutError, got %T", out.Err)
	assert.Equal(t, central.StatePublishing, timeout.State)
	assert.True(t, timeout.Elapsed >= 30*time.Millisecond)
	drops := trip.Calls(transport.DropDeployment)
	require.Len(t, drops, 1)
	assert.Equal(t, "slow", drops[0].Vars["id"])
}

// stallingClient never answers a status check before the caller gives
// up on it.
type stallingClient struct {
	mu       sync.Mutex
	dropErrs []error
}

func (c *stallingClient) Upload(context.Context, string) (central.DeploymentID, error) {
	return "stuck", nil
}

func (c *stallingClient) Status(ctx context.Context, id central.DeploymentID) (central.DeploymentStatus, error) {
	select {
	case <-ctx.Done():
		return central.DeploymentStatus{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return central.DeploymentStatus{ID: id, State: central.StateValidating}, nil
	}
}

func (c *stallingClient) Drop(ctx context.Context, id central.DeploymentID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropErrs = append(c.dropErrs, ctx.Err())
	return nil
}

func (c *stallingClient) List(context.Context) ([]central.DeploymentStatus, error) {
	return nil, nil
}

func TestPublishTimeoutBoundsStatusCheck(t *testing.T) {
	client := &stallingClient{}
	p := NewWithClient(client, Config{PollInterval: time.Millisecond, Timeout: 50 * time.Millisecond}, nil)
	bundle := filepath.Join(t.TempDir(), "central-bundle.zip")
	require.NoError(t, ioutil.WriteFile(bundle, []byte("bundle"), 0644))

	began := time.Now()
	out := p.Run(context.Background(), bundle)
	assert.True(t, time.Since(began) < 2*time.Second, "run took %s", time.Since(began))
	assert.Equal(t, TimedOut, out.Phase)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, 1, out.Polls)
	_, ok := out.Err.(*TimeoutError)
	assert.True(t, ok, "expected *TimeoutError, got %T", out.Err)
	assert.True(t, out.Dropped)
	assert.NoError(t, out.Cleanup)
	require.Len(t, client.dropErrs, 1)
	assert.NoError(t, client.dropErrs[0], "drop must not inherit the expired deadline")
}

func TestPublishDropFailureKeepsOutcome(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("xyz")).
		On(transport.DeploymentStatus, state("FAILED")).
		On(transport.DropDeployment, serverError)
	p, bundle := setup(t, trip, Config{})

	out := p.Run(context.Background(), bundle)
	assert.Equal(t, 1, out.ExitCode())
	assert.Equal(t, Failed, out.Phase)
	_, ok := out.Err.(*DeploymentFailedError)
	assert.True(t, ok, "expected the failure to stay the reason, got %T", out.Err)
	assert.True(t, out.Dropped)
	_, ok = out.Cleanup.(*CleanupError)
	assert.True(t, ok, "expected *CleanupError, got %T", out.Cleanup)
}

func TestPublishCancelledDropsDeployment(t *testing.T) {
	trip := centraltest.New().
		On(transport.Upload, created("abc")).
		On(transport.DeploymentStatus, state("VALIDATING")).
		On(transport.DropDeployment, dropped)
	p, bundle := setup(t, trip, Config{PollInterval: time.Hour, Timeout: 2 * time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	out := p.Run(ctx, bundle)
	assert.Equal(t, TimedOut, out.Phase)
	assert.Equal(t, 1, out.Polls)
	assert.Len(t, trip.Calls(transport.DropDeployment), 1)
}

func TestDropIsBestEffort(t *testing.T) {
	trip := centraltest.New().On(transport.DropDeployment, centraltest.Response{Status: http.StatusNotFound})
	p, _ := setup(t, trip, Config{})

	err := p.Drop(context.Background(), "gone")
	cleanup, ok := err.(*CleanupError)
	require.True(t, ok)
	assert.Equal(t, central.DeploymentID("gone"), cleanup.ID)

	// dropping again is just as harmless
	assert.Error(t, p.Drop(context.Background(), "gone"))
	assert.Len(t, trip.Calls(transport.DropDeployment), 2)
}

func TestConfigDefaults(t *testing.T) {
	p := NewWithClient(central.New(nil, "", nil), Config{Timeout: 5 * time.Minute}, nil)
	cfg := p.Config()
	assert.Equal(t, central.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxConsecutiveErrors)
}
