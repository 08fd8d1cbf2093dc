package remote

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
)

// Target describes a resource to drive to a terminal state. Any observed
// state that is neither Success nor one of Failure means "still in progress".
type Target struct {
	Kind     string
	ID       string
	Fetch    func(ctx context.Context) (*Result, error)
	Success  string
	Failure  []string
	Interval time.Duration

	// DryRunAttributes are returned as the result attributes in dry-run mode.
	DryRunAttributes map[string]string
}

// Poller waits for resources to reach a terminal state.
type Poller struct {
	dryRun bool
	log    *logger.Logger
	clock  clock.Clock
}

// NewPoller creates a Poller. A nil clock means the wall clock.
func NewPoller(dryRun bool, log *logger.Logger, clk clock.Clock) *Poller {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Poller{dryRun: dryRun, log: log, clock: clk}
}

// Wait polls t until it reaches its success state and returns the last
// fetched result. A failure state ends the wait immediately with a
// *ResourceFailedError. Transient fetch errors are logged and polling
// continues; the loop has no attempt limit and stops early only when ctx is
// done or a fetch fails fatally.
func (p *Poller) Wait(ctx context.Context, t Target) (*Result, error) {
	if p.dryRun {
		p.log.Infof("[DRY_RUN] Skipping wait for %s %s to reach %s", t.Kind, t.ID, t.Success)
		return &Result{
			ID:         t.ID,
			State:      t.Success,
			DryRun:     true,
			Attributes: maps.Clone(t.DryRunAttributes),
		}, nil
	}

	p.log.Infof("Waiting for %s %s to reach state %s...", t.Kind, t.ID, t.Success)
	for {
		result, err := t.Fetch(ctx)
		outcome := Classify(err)
		switch outcome.Kind {
		case Fatal:
			return nil, fmt.Errorf("failed to poll %s %s: %w", t.Kind, t.ID, err)
		case Retryable:
			p.log.Warningf("Transient error polling %s %s, retrying in %s: %v", t.Kind, t.ID, t.Interval, err)
		case Success:
			if result == nil {
				return nil, &ProtocolError{
					Operation: "get " + t.Kind,
					Detail:    "empty response while polling " + t.ID,
				}
			}
			if result.State == t.Success {
				p.log.Successf("%s %s is %s", t.Kind, t.ID, result.State)
				return result, nil
			}
			if slices.Contains(t.Failure, result.State) {
				p.log.Errorf("%s %s entered failure state %s", t.Kind, t.ID, result.State)
				return nil, &ResourceFailedError{Kind: t.Kind, ID: t.ID, State: result.State}
			}
			if result.PercentComplete != nil {
				p.log.Infof("%s %s is %s (%.0f%% complete), checking again in %s",
					t.Kind, t.ID, result.State, *result.PercentComplete, t.Interval)
			} else {
				p.log.Infof("%s %s is %s, checking again in %s", t.Kind, t.ID, result.State, t.Interval)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for %s %s: %w", t.Kind, t.ID, ctx.Err())
		case <-p.clock.After(t.Interval):
		}
	}
}
