package typer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eitype/internal/ei"
	"eitype/internal/logging"
)

// Backoff defaults for flushing a full socket buffer.
const (
	DefaultMaxRetries   = 50
	DefaultInitialDelay = time.Millisecond
	DefaultMaxDelay     = 100 * time.Millisecond
)

// FlowController retries flushes that fail because the transport's
// outbound buffer is full.
type FlowController struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewFlowController returns a controller with the default policy.
func NewFlowController() *FlowController {
	return &FlowController{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		sleep:        time.Sleep,
		logger:       slog.Default().With("component", "flow"),
	}
}

// NextDelay doubles d, capped at limit.
func NextDelay(d, limit time.Duration) time.Duration {
	return min(d*2, limit)
}

// Flush calls flush until it succeeds, backing off while it reports
// would-block. Any other error fails immediately.
func (f *FlowController) Flush(flush func() error) error {
	delay := f.InitialDelay
	for retries := 0; ; retries++ {
		err := flush()
		if err == nil {
			return nil
		}
		if !ei.IsWouldBlock(err) {
			return fmt.Errorf("%w: flush: %w", ErrTyping, err)
		}
		if retries >= f.MaxRetries {
			return fmt.Errorf("%w: socket buffer full after %d retries: %w", ErrTyping, f.MaxRetries, err)
		}

		f.logger.Log(context.Background(), logging.LevelTrace, "socket buffer full, backing off",
			"delay", delay, "retry", retries+1, "max_retries", f.MaxRetries)
		f.sleep(delay)
		delay = NextDelay(delay, f.MaxDelay)
	}
}
