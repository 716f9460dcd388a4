// Package liveness periodically checks that the robot controller's HTTP
// server answers and reports the outcome to the bus, which uses it to decide
// when to reconnect or to drop a connection that died silently.
package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Target receives the outcome of every check.
type Target interface {
	OnLivenessSuccess()
	OnLivenessFailure()
}

// Pinger GETs a URL on a cron schedule.
type Pinger struct {
	url      string
	schedule robfigcron.Schedule
	client   *http.Client
	target   Target
}

// NewPinger parses schedule (standard cron syntax or a descriptor such as
// "@every 1s"). timeout defaults to two seconds if zero.
func NewPinger(url, schedule string, timeout time.Duration, target Target) (*Pinger, error) {
	sched, err := robfigcron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("liveness schedule %q: %w", schedule, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Pinger{
		url:      url,
		schedule: sched,
		client:   &http.Client{Timeout: timeout},
		target:   target,
	}, nil
}

// Start runs checks until ctx is cancelled. A check that is still running
// when the next one is due causes that run to be skipped.
func (p *Pinger) Start(ctx context.Context) error {
	c := robfigcron.New(robfigcron.WithChain(robfigcron.SkipIfStillRunning(robfigcron.DiscardLogger)))
	c.Schedule(p.schedule, robfigcron.FuncJob(func() { p.Check(ctx) }))
	c.Start()
	slog.Info("liveness: started", "url", p.url)

	// First check immediately rather than waiting a full interval.
	p.Check(ctx)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("liveness: stopped")
	return ctx.Err()
}

// Check performs one ping and notifies the target. It reports whether the
// server answered with a 2xx status.
func (p *Pinger) Check(ctx context.Context) bool {
	ok := p.ping(ctx)
	if ctx.Err() != nil {
		return ok
	}
	if ok {
		p.target.OnLivenessSuccess()
	} else {
		p.target.OnLivenessFailure()
	}
	return ok
}

func (p *Pinger) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		slog.Error("liveness: build request", "url", p.url, "err", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		slog.Debug("liveness: ping failed", "url", p.url, "err", err)
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("liveness: ping rejected", "url", p.url, "status", resp.StatusCode)
		return false
	}
	return true
}
