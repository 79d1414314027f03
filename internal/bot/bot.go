// Package bot drives the poll -> filter -> generate -> reply -> record cycle
// and owns the repeating schedule, failure classification and graceful
// shutdown. Cycles are strictly serialized: a new tick is skipped while a
// previous cycle is still running.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/recapbot/recapbot/internal/breaker"
	"github.com/recapbot/recapbot/internal/filter"
	"github.com/recapbot/recapbot/internal/retry"
	"github.com/recapbot/recapbot/internal/store"
	"github.com/recapbot/recapbot/internal/types"
)

// Result is the terminal outcome of one cycle.
type Result string

const (
	ResultProcessed  Result = "processed"
	ResultNoEligible Result = "no_eligible"
	ResultError      Result = "error"
)

// Store is the slice of the persistent store the orchestrator writes.
type Store interface {
	RecordReply(ctx context.Context, r store.ReplyRecord) error
	IncrementDailyCount(ctx context.Context) error
	UpdateLastReplyAt(ctx context.Context, ts time.Time) error
}

// Config holds the orchestrator's own knobs. Filter and breaker thresholds
// live with their components.
type Config struct {
	Query       string
	SearchCount int
	Interval    time.Duration
	SearchRetry retry.Policy
}

// Bot wires the capabilities and the resilience layer into one cycle.
type Bot struct {
	poller    types.Poller
	generator types.Generator
	responder types.Responder
	pipeline  *filter.Pipeline
	breaker   *breaker.Breaker
	store     Store
	cfg       Config
}

// New creates a bot.
func New(poller types.Poller, generator types.Generator, responder types.Responder,
	pipeline *filter.Pipeline, brk *breaker.Breaker, st Store, cfg Config) *Bot {
	return &Bot{
		poller:    poller,
		generator: generator,
		responder: responder,
		pipeline:  pipeline,
		breaker:   brk,
		store:     st,
		cfg:       cfg,
	}
}

// RunCycle executes one full cycle. A non-nil error always accompanies
// ResultError; the caller checks IsFatal to decide between logging and
// exiting.
func (b *Bot) RunCycle(ctx context.Context) (Result, error) {
	// Step 1: search, with bounded retry. Search failures are expected to
	// be transient, unlike generation failures, which the breaker handles.
	candidates, err := retry.Do(ctx, b.cfg.SearchRetry, "search",
		func(ctx context.Context) ([]types.Candidate, error) {
			return b.poller.Search(ctx, b.cfg.Query, b.cfg.SearchCount)
		})
	if err != nil {
		if errors.Is(err, types.ErrUnauthorized) {
			return ResultError, fatal(fmt.Errorf("search credentials rejected: %w", err))
		}
		return ResultError, fmt.Errorf("search: %w", err)
	}
	log.Printf("[bot] search returned %d candidates", len(candidates))

	// Step 2: filter down to at most one eligible candidate.
	candidate, stats, err := b.pipeline.Select(ctx, candidates)
	if err != nil {
		return ResultError, fatal(fmt.Errorf("filter pipeline store failure: %w", err))
	}
	log.Printf("[bot] filter: %s", stats)
	if candidate == nil {
		return ResultNoEligible, nil
	}
	log.Printf("[bot] eligible candidate %s by @%s", candidate.ID, candidate.AuthorHandle)

	// Step 3: generate the summary artifact through the circuit breaker.
	var gen *types.GenerationResult
	genErr := b.breaker.Execute(ctx, func(ctx context.Context) error {
		g, err := b.generator.Generate(ctx, *candidate)
		if err != nil {
			return err
		}
		if g == nil || len(g.Artifact) == 0 {
			return errors.New("generation returned no usable artifact")
		}
		gen = g
		return nil
	})
	if errors.Is(genErr, breaker.ErrOpen) {
		// No attempt was made, so no record is written.
		return ResultError, fmt.Errorf("generation skipped: %w", genErr)
	}
	if genErr != nil {
		rec := b.failedRecord(*candidate, "Generation failed: "+genErr.Error())
		if err := b.store.RecordReply(ctx, rec); err != nil {
			return ResultError, classifyRecordErr(err)
		}
		return ResultError, fmt.Errorf("generation: %w", genErr)
	}

	// Step 4: post the reply.
	reply, replyErr := b.responder.Reply(ctx, *candidate, gen.Artifact)
	if replyErr != nil {
		rec := b.failedRecord(*candidate, "Reply failed: "+replyErr.Error())
		rec.TaskID = gen.TaskID
		rec.GenerationMs = gen.Duration.Milliseconds()
		rec.ArtifactSize = len(gen.Artifact)
		if err := b.store.RecordReply(ctx, rec); err != nil {
			return ResultError, classifyRecordErr(err)
		}
		if errors.Is(replyErr, types.ErrUnauthorized) {
			return ResultError, fatal(fmt.Errorf("reply credentials rejected: %w", replyErr))
		}
		return ResultError, fmt.Errorf("reply: %w", replyErr)
	}

	// Step 5: record the success and advance the rate-limiter state.
	rec := store.ReplyRecord{
		CandidateID:        candidate.ID,
		AuthorID:           candidate.AuthorID,
		AuthorHandle:       candidate.AuthorHandle,
		Text:               candidate.Text,
		CandidateCreatedAt: candidate.CreatedAt,
		ReplyID:            reply.ReplyID,
		Success:            true,
		TaskID:             gen.TaskID,
		GenerationMs:       gen.Duration.Milliseconds(),
		ArtifactSize:       len(gen.Artifact),
		TemplateIndex:      reply.TemplateIndex,
	}
	if err := b.store.RecordReply(ctx, rec); err != nil {
		return ResultError, classifyRecordErr(err)
	}
	if err := b.store.IncrementDailyCount(ctx); err != nil {
		return ResultError, fatal(fmt.Errorf("increment daily count: %w", err))
	}
	if err := b.store.UpdateLastReplyAt(ctx, time.Now()); err != nil {
		return ResultError, fatal(fmt.Errorf("update last reply time: %w", err))
	}

	log.Printf("[bot] replied to %s with %s (task %s, %d bytes)",
		candidate.ID, reply.ReplyID, gen.TaskID, len(gen.Artifact))
	return ResultProcessed, nil
}

// failedRecord builds the reply record for a failed attempt.
func (b *Bot) failedRecord(c types.Candidate, msg string) store.ReplyRecord {
	return store.ReplyRecord{
		CandidateID:        c.ID,
		AuthorID:           c.AuthorID,
		AuthorHandle:       c.AuthorHandle,
		Text:               c.Text,
		CandidateCreatedAt: c.CreatedAt,
		Success:            false,
		Error:              msg,
	}
}

// classifyRecordErr maps RecordReply failures. A duplicate means the dedup
// filter let a candidate through twice: surfaced as a cycle error, never
// swallowed, but the loop keeps running. Anything else means the store is
// unhealthy.
func classifyRecordErr(err error) error {
	if errors.Is(err, store.ErrDuplicateReply) {
		return fmt.Errorf("record reply: %w", err)
	}
	return fatal(fmt.Errorf("record reply: %w", err))
}
