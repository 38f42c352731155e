// Package pollers runs the background loops of the bridge: the chat
// transport poller, the mailbox poller and the retention cleanup.
//
// Every loop is driven by RunPeriodic. A loop stops when its context is
// cancelled; the tick already running is not interrupted and finishes or
// times out on its own.
package pollers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/inbound-bridge/internal/clock"
)

// TickFunc is one iteration of a periodic task.
type TickFunc func(ctx context.Context)

// RunPeriodic calls tick immediately and then again interval after each
// previous call returned, until ctx is cancelled. Ticks never overlap. A
// panicking tick is logged and the loop keeps going.
func RunPeriodic(ctx context.Context, clk clock.Clock, name string, interval time.Duration, tick TickFunc) error {
	if interval <= 0 {
		return fmt.Errorf("pollers: %s: interval must be positive, got %s", name, interval)
	}
	if clk == nil {
		clk = clock.Real()
	}
	logger := log.With().Str("poller", name).Logger()
	logger.Info().Dur("interval", interval).Msg("poller started")

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("poller stopped")
			return nil
		}
		runTick(context.WithoutCancel(ctx), clk, name, tick)

		select {
		case <-ctx.Done():
			logger.Info().Msg("poller stopped")
			return nil
		case <-clk.After(interval):
		}
	}
}

func runTick(ctx context.Context, clk clock.Clock, name string, tick TickFunc) {
	start := clk.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("poller", name).Interface("panic", rec).Msg("poller tick panicked")
		}
		pollerTicks.WithLabelValues(name).Inc()
		pollerTickDuration.WithLabelValues(name).Observe(clk.Now().Sub(start).Seconds())
	}()
	tick(ctx)
}
