package remote

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
)

// fakeClock fires every After immediately and records the requested waits.
type fakeClock struct {
	clock.Clock

	mu    sync.Mutex
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{Clock: clock.WallClock}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.Clock.Now()
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func testLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(true, &buf), &buf
}

func testPolicy() Policy {
	return Policy{
		MinDelay:    5 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// serviceError mimics a non-2xx response from the control plane.
type serviceError struct {
	status int
}

func (e serviceError) Error() string {
	return fmt.Sprintf("service error: status %d", e.status)
}

var errTransport = errors.New("connection reset by peer")
