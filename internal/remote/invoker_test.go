package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 60 * time.Second},
		{12, 60 * time.Second},
		{5000, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.retry), "retry %d", tt.retry)
	}
}

func TestPolicyDelayNonDecreasingAndCapped(t *testing.T) {
	policies := []Policy{
		DefaultPolicy(),
		{MinDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 1.5, MaxAttempts: 10},
		{MinDelay: time.Second, MaxDelay: time.Second, Multiplier: 3, MaxAttempts: 3},
		{MinDelay: 2 * time.Second, MaxDelay: time.Minute, Multiplier: 1, MaxAttempts: 4},
	}
	for _, p := range policies {
		prev := time.Duration(0)
		for n := 1; n <= 64; n++ {
			d := p.Delay(n)
			assert.GreaterOrEqual(t, d, prev, "%+v retry %d", p, n)
			assert.LessOrEqual(t, d, p.MaxDelay, "%+v retry %d", p, n)
			assert.GreaterOrEqual(t, d, p.MinDelay, "%+v retry %d", p, n)
			prev = d
		}
	}
}

func TestInvokeSuccess(t *testing.T) {
	log, buf := testLogger()
	inv := NewInvoker("us-ashburn-1", testPolicy(), false, log, newFakeClock())

	calls := 0
	result, err := inv.Invoke(context.Background(), Operation{
		Name: "compute image create",
		Args: []string{"--instance-id", "ocid1.instance.src"},
		Call: func(context.Context) (*Result, error) {
			calls++
			return &Result{ID: "ocid1.image.src"}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ocid1.image.src", result.ID)
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "[EXEC] compute image create --instance-id ocid1.instance.src --region us-ashburn-1")
	assert.Equal(t, "us-ashburn-1", inv.Region())
}

func TestInvokeNoPayload(t *testing.T) {
	log, _ := testLogger()
	inv := NewInvoker("us-ashburn-1", testPolicy(), false, log, newFakeClock())

	result, err := inv.Invoke(context.Background(), Operation{
		Name: "os object put",
		Call: func(context.Context) (*Result, error) { return nil, nil },
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestInvokeRetryBound(t *testing.T) {
	log, buf := testLogger()
	clk := newFakeClock()
	inv := NewInvoker("us-ashburn-1", testPolicy(), false, log, clk)

	calls := 0
	_, err := inv.Invoke(context.Background(), Operation{
		Name: "compute image get",
		Call: func(context.Context) (*Result, error) {
			calls++
			return nil, serviceError{status: 503}
		},
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, serviceError{status: 503}, err, "the last underlying error is returned unchanged")
	assert.Equal(t, Retryable, Classify(err).Kind)

	waits := clk.Waits()
	require.NotEmpty(t, waits)
	assert.LessOrEqual(t, len(waits), 4, "no wait after the final attempt")
	for i, w := range waits {
		assert.LessOrEqual(t, w, testPolicy().MaxDelay, "wait %d", i)
		assert.GreaterOrEqual(t, w, testPolicy().MinDelay, "wait %d", i)
	}
	assert.Contains(t, buf.String(), "(attempt 4/5)")
	assert.NotContains(t, buf.String(), "(attempt 5/5)")
	assert.Contains(t, buf.String(), "Command failed in region us-ashburn-1 after 5 attempt(s)")
}

func TestInvokeRecoversAfterTransientFailures(t *testing.T) {
	log, _ := testLogger()
	inv := NewInvoker("sa-bogota-1", testPolicy(), false, log, newFakeClock())

	calls := 0
	result, err := inv.Invoke(context.Background(), Operation{
		Name: "compute instance get",
		Call: func(context.Context) (*Result, error) {
			calls++
			if calls < 3 {
				return nil, errTransport
			}
			return &Result{ID: "ocid1.instance.dst", State: "RUNNING"}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "RUNNING", result.State)
}

func TestInvokeFatalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"protocol error", &ProtocolError{Operation: "compute image create", Detail: "missing id"}},
		{"fatal error", &FatalError{Operation: "compute client", Err: errors.New("no config file")}},
		{"resource failed", &ResourceFailedError{Kind: "image", ID: "x", State: "FAULTED"}},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := testLogger()
			clk := newFakeClock()
			inv := NewInvoker("us-ashburn-1", testPolicy(), false, log, clk)

			calls := 0
			_, err := inv.Invoke(context.Background(), Operation{
				Name: "op",
				Call: func(context.Context) (*Result, error) {
					calls++
					return nil, tt.err
				},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, clk.Waits())
		})
	}
}

func TestInvokeZeroPolicyFallsBackToDefault(t *testing.T) {
	log, buf := testLogger()
	clk := newFakeClock()
	inv := NewInvoker("us-ashburn-1", Policy{}, false, log, clk)

	calls := 0
	result, err := inv.Invoke(context.Background(), Operation{
		Name: "compute image get",
		Call: func(context.Context) (*Result, error) {
			calls++
			if calls < 2 {
				return nil, errTransport
			}
			return &Result{ID: "ocid1.image.src"}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ocid1.image.src", result.ID)
	assert.Equal(t, 2, calls)
	require.NotEmpty(t, clk.Waits())
	assert.Equal(t, DefaultPolicy().MinDelay, clk.Waits()[0])
	assert.Contains(t, buf.String(), "(attempt 1/5)")
}

func TestPolicyCallRejectsInvalidPolicy(t *testing.T) {
	policies := []Policy{
		{},
		{MinDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2},
		{MinDelay: time.Minute, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 3},
		{MinDelay: time.Second, MaxDelay: time.Minute, Multiplier: 0.5, MaxAttempts: 3},
	}
	for _, p := range policies {
		assert.False(t, p.Valid(), "%+v", p)
		calls := 0
		err := p.Call(context.Background(), newFakeClock(), func() error {
			calls++
			return nil
		}, Classify, nil)
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal, "%+v", p)
		assert.Equal(t, Fatal, Classify(err).Kind)
		assert.Zero(t, calls)
	}
	assert.True(t, DefaultPolicy().Valid())
	assert.True(t, testPolicy().Valid())
}

func TestInvokeStopsWhenContextDone(t *testing.T) {
	log, _ := testLogger()
	inv := NewInvoker("us-ashburn-1", testPolicy(), false, log, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := inv.Invoke(ctx, Operation{
		Name: "op",
		Call: func(context.Context) (*Result, error) {
			calls++
			cancel()
			return nil, errTransport
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 5)
}

func TestInvokeDryRun(t *testing.T) {
	log, buf := testLogger()
	inv := NewInvoker("us-ashburn-1", testPolicy(), true, log, newFakeClock())

	result, err := inv.Invoke(context.Background(), Operation{
		Name: "compute image create",
		Args: []string{"--display-name", "migrated"},
		Call: func(context.Context) (*Result, error) {
			t.Fatal("dry run must not execute the call")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, DryRunID, result.ID)
	assert.True(t, result.DryRun)
	assert.True(t, inv.DryRun())
	assert.Contains(t, buf.String(), "[DRY_RUN] Would execute: compute image create --display-name migrated --region us-ashburn-1")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil", nil, Success},
		{"transport", errTransport, Retryable},
		{"service 404", serviceError{status: 404}, Retryable},
		{"service 500", serviceError{status: 500}, Retryable},
		{"protocol", &ProtocolError{Operation: "x", Detail: "y"}, Fatal},
		{"wrapped protocol", errors.Join(errors.New("ctx"), &ProtocolError{Operation: "x"}), Fatal},
		{"fatal", &FatalError{Operation: "x", Err: errTransport}, Fatal},
		{"resource failed", &ResourceFailedError{Kind: "image", ID: "x", State: "DELETED"}, Fatal},
		{"deadline", context.DeadlineExceeded, Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.err, got.Err)
		})
	}
}

func TestResourceFailedError(t *testing.T) {
	err := error(&ResourceFailedError{Kind: "work request", ID: "ocid1.wr", State: "CANCELED"})
	assert.ErrorIs(t, err, ErrResourceFailed)
	assert.Equal(t, "work request ocid1.wr entered failure state CANCELED", err.Error())

	var rf *ResourceFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "CANCELED", rf.State)
}
