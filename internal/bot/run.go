package bot

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// shutdownGrace bounds how long Run waits for an in-flight cycle after the
// stop signal before giving up on it.
const shutdownGrace = 5 * time.Minute

// Run executes one cycle immediately, then repeats on the configured
// interval until ctx is cancelled. It returns nil on graceful shutdown and
// the fatal error when a cycle hits an unrecoverable condition.
func (b *Bot) Run(ctx context.Context) error {
	fatalCh := make(chan error, 1)

	runOnce := func() {
		// Cycles are never cancelled mid-flight; shutdown waits for them
		// instead, so a half-written record can't be left behind.
		cycleCtx := context.Background()
		cycleID := uuid.NewString()[:8]
		start := time.Now()

		result, err := b.RunCycle(cycleCtx)
		duration := time.Since(start).Round(time.Millisecond)
		if err != nil {
			if IsFatal(err) {
				log.Printf("[bot] cycle %s result=%s duration=%s fatal: %v", cycleID, result, duration, err)
				select {
				case fatalCh <- err:
				default:
				}
				return
			}
			log.Printf("[bot] cycle %s result=%s duration=%s error: %v", cycleID, result, duration, err)
			return
		}
		log.Printf("[bot] cycle %s result=%s duration=%s", cycleID, result, duration)
	}

	log.Printf("[bot] starting, interval %s", b.cfg.Interval)
	runOnce()
	select {
	case err := <-fatalCh:
		return err
	default:
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(cron.Every(b.cfg.Interval), cron.FuncJob(runOnce))
	c.Start()

	select {
	case err := <-fatalCh:
		<-c.Stop().Done()
		return err
	case <-ctx.Done():
		log.Printf("[bot] shutdown requested, waiting for in-flight cycle")
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
			log.Printf("[bot] stopped cleanly")
		case <-time.After(shutdownGrace):
			log.Printf("[bot] timed out after %s waiting for in-flight cycle", shutdownGrace)
		}
		return nil
	}
}
