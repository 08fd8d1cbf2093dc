package remote

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
)

// Policy is a bounded exponential backoff.
type Policy struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultPolicy returns the policy NewInvoker falls back to when the given
// one is not valid: five attempts, waiting 5s, 10s, 20s and 40s between them.
func DefaultPolicy() Policy {
	return Policy{
		MinDelay:    5 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// Valid reports whether p can drive a retry loop.
func (p Policy) Valid() bool {
	return p.MaxAttempts >= 1 && p.MinDelay > 0 && p.MaxDelay >= p.MinDelay && p.Multiplier >= 1
}

// Delay returns the wait before retry n (n >= 1): MinDelay*Multiplier^(n-1)
// clamped to [MinDelay, MaxDelay].
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.MinDelay) * math.Pow(p.Multiplier, float64(n-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaxDelay
	}
	if d < float64(p.MinDelay) {
		return p.MinDelay
	}
	return time.Duration(d)
}

// Call runs fn until it succeeds, classify reports a non-retryable outcome,
// MaxAttempts is reached or ctx is done. notify, if set, is called before
// each retry with the failed attempt number and the upcoming wait. The error
// of the last attempt is returned as is. An invalid policy fails with a
// FatalError before fn is called.
func (p Policy) Call(
	ctx context.Context,
	clk clock.Clock,
	fn func() error,
	classify func(error) Outcome,
	notify func(err error, attempt int, next time.Duration),
) error {
	if !p.Valid() {
		return &FatalError{Operation: "retry", Err: fmt.Errorf("invalid retry policy %+v", p)}
	}
	err := retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return classify(err).Kind != Retryable
		},
		NotifyFunc: func(err error, attempt int) {
			if notify != nil && attempt < p.MaxAttempts {
				notify(err, attempt, p.Delay(attempt))
			}
		},
		Attempts: p.MaxAttempts,
		Delay:    p.MinDelay,
		MaxDelay: p.MaxDelay,
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration {
			return p.Delay(attempt)
		},
		Clock: clk,
		Stop:  ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), lastError(err))
	}
	return lastError(err)
}

func lastError(err error) error {
	if retry.IsAttemptsExceeded(err) {
		if last := retry.LastError(err); last != nil {
			return last
		}
	}
	return err
}

// Operation is one remote call. Name and Args only describe the call for
// logging; Call performs it.
type Operation struct {
	Name string
	Args []string
	Call func(ctx context.Context) (*Result, error)
}

func (o Operation) String() string {
	if len(o.Args) == 0 {
		return o.Name
	}
	return o.Name + " " + strings.Join(o.Args, " ")
}

// Invoker executes operations against a single region with retry.
type Invoker struct {
	region string
	policy Policy
	dryRun bool
	log    *logger.Logger
	clock  clock.Clock
}

// NewInvoker creates an Invoker bound to region. A nil clock means the wall
// clock; an invalid policy (the zero Policy included) means DefaultPolicy.
func NewInvoker(region string, policy Policy, dryRun bool, log *logger.Logger, clk clock.Clock) *Invoker {
	if clk == nil {
		clk = clock.WallClock
	}
	if !policy.Valid() {
		policy = DefaultPolicy()
	}
	return &Invoker{
		region: region,
		policy: policy,
		dryRun: dryRun,
		log:    log,
		clock:  clk,
	}
}

// Region returns the region this invoker is bound to.
func (i *Invoker) Region() string {
	return i.region
}

// DryRun reports whether operations are simulated.
func (i *Invoker) DryRun() bool {
	return i.dryRun
}

// Invoke runs op. In dry-run mode nothing is executed and a placeholder
// result is returned. A nil result with a nil error means the operation
// produced no payload.
func (i *Invoker) Invoke(ctx context.Context, op Operation) (*Result, error) {
	command := fmt.Sprintf("%s --region %s", op, i.region)
	if i.dryRun {
		i.log.Infof("[DRY_RUN] Would execute: %s", command)
		return &Result{ID: DryRunID, DryRun: true}, nil
	}

	var result *Result
	attempts := 0
	err := i.policy.Call(ctx, i.clock,
		func() error {
			attempts++
			i.log.Debugf("[EXEC] %s", command)
			r, err := op.Call(ctx)
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		Classify,
		func(err error, attempt int, next time.Duration) {
			i.log.Warningf("%s failed (attempt %d/%d), retrying in %s: %v",
				op.Name, attempt, i.policy.MaxAttempts, next, err)
		},
	)
	if err != nil {
		i.log.Errorf("Command failed in region %s after %d attempt(s): %s", i.region, attempts, command)
		i.log.Errorf("Detail: %v", err)
		return nil, err
	}
	return result, nil
}
