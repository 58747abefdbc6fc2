package publish

import (
	"context"
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/imdario/mergo"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/infinilabs/cococi/pkg/central"
	transport "github.com/infinilabs/cococi/pkg/http"
	cocometrics "github.com/infinilabs/cococi/pkg/metrics"
)

// dropTimeout bounds a cleanup drop, which runs even when the run's
// own context is already done.
const dropTimeout = 30 * time.Second

type Config struct {
	BaseURL              string
	PollInterval         time.Duration
	Timeout              time.Duration
	MaxConsecutiveErrors int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:              central.DefaultBaseURL,
		PollInterval:         10 * time.Second,
		Timeout:              10 * time.Minute,
		MaxConsecutiveErrors: 5,
	}
}

func (c Config) withDefaults() Config {
	if err := mergo.Merge(&c, DefaultConfig()); err != nil {
		// both sides are the same struct type, so this cannot happen
		panic(err)
	}
	return c
}

func (c Config) Policy() Policy {
	return Policy{Timeout: c.Timeout, MaxConsecutiveErrors: c.MaxConsecutiveErrors}
}

// Client is the part of the Central API a Publisher drives;
// *central.Client implements it.
type Client interface {
	Upload(ctx context.Context, bundlePath string) (central.DeploymentID, error)
	Status(ctx context.Context, id central.DeploymentID) (central.DeploymentStatus, error)
	Drop(ctx context.Context, id central.DeploymentID) error
	List(ctx context.Context) ([]central.DeploymentStatus, error)
}

var _ Client = &central.Client{}

type Publisher struct {
	client Client
	config Config
	logger log.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New returns a Publisher talking to Central at cfg.BaseURL. Zero
// fields in cfg take their value from DefaultConfig.
func New(cfg Config, httpClient *http.Client, creds transport.Credentials, logger log.Logger) *Publisher {
	cfg = cfg.withDefaults()
	return NewWithClient(central.New(httpClient, cfg.BaseURL, creds), cfg, logger)
}

func NewWithClient(client Client, cfg Config, logger log.Logger) *Publisher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Publisher{
		client: client,
		config: cfg.withDefaults(),
		logger: log.With(logger, "component", "publish"),
		now:    time.Now,
		sleep:  sleep,
	}
}

func (p *Publisher) Config() Config {
	return p.config
}

// Outcome is how a publish run ended.
type Outcome struct {
	ID     central.DeploymentID
	Phase  Phase
	Polls  int
	Status central.DeploymentStatus
	// Err says why the run failed; nil when published.
	Err error
	// Dropped is set when the run tried to drop the deployment, and
	// Cleanup when that drop did not succeed.
	Dropped bool
	Cleanup error
}

func (o Outcome) ExitCode() int {
	return o.Phase.ExitCode()
}

// Run uploads the bundle and polls until the deployment is published,
// fails, or the run gives up; deployments that don't get published
// are dropped. It blocks for the whole of that time.
func (p *Publisher) Run(ctx context.Context, bundlePath string) Outcome {
	start := p.now()
	policy := p.config.Policy()

	if d, err := digestFile(bundlePath); err != nil {
		p.logger.Log("warning", "could not digest bundle", "bundle", bundlePath, "err", err)
	} else {
		p.logger.Log("info", "uploading bundle", "bundle", bundlePath, "digest", d)
	}

	id, err := p.client.Upload(ctx, bundlePath)
	loop, action := policy.Uploaded(err)
	if err != nil {
		p.logger.Log("err", err, "phase", loop.Phase)
		out := Outcome{Phase: loop.Phase, Err: &UploadError{Err: err}}
		p.observe(out, start)
		return out
	}
	p.logger.Log("info", "upload successful", "deployment", id)

	// Status checks and sleeps share the run's deadline, so a hung
	// request cannot hold the run past its timeout.
	pollCtx, cancel := context.WithDeadline(ctx, start.Add(p.config.Timeout))
	defer cancel()

	out := Outcome{ID: id}
	var lastErr error
	var elapsed time.Duration
	for action == Poll || action == Wait {
		if action == Wait {
			if err := p.sleep(pollCtx, p.config.PollInterval); err != nil {
				// Treated like running out of time; the deployment
				// is still there and gets dropped.
				elapsed = p.now().Sub(start)
				loop.Phase, action = TimedOut, Drop
				break
			}
		}

		st, err := p.client.Status(pollCtx, id)
		out.Polls++
		elapsed = p.now().Sub(start)
		if err != nil && pollCtx.Err() != nil {
			p.logger.Log("warning", "status check cut short", "deployment", id, "err", err)
			loop.Phase, action = TimedOut, Drop
			break
		}
		res := PollResult{Elapsed: elapsed}
		if err != nil {
			lastErr = &TransientStatusError{ID: id, Err: err}
			res.Err = lastErr
			p.logger.Log("warning", "status check failed, retrying", "deployment", id, "err", err, "consecutive", loop.ConsecutiveErrors+1)
		} else {
			out.Status = st
			res.State = st.State
			pollsTotal.With(cocometrics.LabelState, string(st.State)).Add(1)
			p.logger.Log("deployment", id, "state", st.State, "elapsed", elapsed.Round(time.Second))
		}
		loop, action = policy.Next(loop, res)
	}

	out.Phase = loop.Phase
	switch loop.Phase {
	case Published:
		p.logger.Log("info", "deployment published", "deployment", id, "polls", out.Polls)
	case Failed:
		out.Err = &DeploymentFailedError{ID: id, Errors: out.Status.Errors}
		p.logger.Log("err", "deployment failed", "deployment", id, "errors", len(out.Status.Errors))
		for _, e := range out.Status.Errors {
			p.logger.Log("deployment", id, "validation", e)
		}
	case TimedOut:
		out.Err = &TimeoutError{ID: id, Elapsed: elapsed, Timeout: p.config.Timeout, State: out.Status.State}
		p.logger.Log("err", out.Err)
	case TooManyErrors:
		out.Err = &TooManyErrorsError{ID: id, Count: loop.ConsecutiveErrors, Last: lastErr}
		p.logger.Log("err", out.Err)
	}

	if action == Drop {
		out.Dropped = true
		dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dropTimeout)
		if err := p.Drop(dropCtx, id); err != nil {
			out.Cleanup = err
		}
		cancel()
	}

	p.observe(out, start)
	return out
}

// Drop removes a deployment from Central. It is safe to call for
// deployments that are already gone: failure is logged and returned
// as a *CleanupError, for the caller to report and otherwise ignore.
func (p *Publisher) Drop(ctx context.Context, id central.DeploymentID) error {
	p.logger.Log("info", "dropping deployment", "deployment", id)
	err := p.client.Drop(ctx, id)
	dropsTotal.With(cocometrics.LabelSuccess, fmt.Sprint(err == nil)).Add(1)
	if err != nil {
		p.logger.Log("warning", "drop failed", "deployment", id, "err", err)
		return &CleanupError{ID: id, Err: err}
	}
	p.logger.Log("info", "dropped deployment", "deployment", id)
	return nil
}

func (p *Publisher) observe(out Outcome, start time.Time) {
	publishDuration.With(cocometrics.LabelOutcome, out.Phase.String()).Observe(p.now().Sub(start).Seconds())
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening bundle")
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
