// Package poller drives dispatched calls to a terminal status by querying the
// voice-agent provider on a fixed backoff schedule.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"collections-platform/internal/calls"
	"collections-platform/internal/voiceagent"
)

// defaultSchedule covers roughly five and a half minutes. Calls that have not
// resolved by then are finalized as failed.
var defaultSchedule = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	15 * time.Second,
	30 * time.Second,
	30 * time.Second,
	60 * time.Second,
	60 * time.Second,
	120 * time.Second,
}

// CallFinalizer applies terminal transitions to a call record.
// Implemented by calls.Service.
type CallFinalizer interface {
	CompleteCall(ctx context.Context, callID string, res calls.CallCompletion) error
	FailCall(ctx context.Context, callID string) error
	FailCallIfUnresolved(ctx context.Context, callID string) (bool, error)
}

// CompletionHook runs after a call completes with transcript data, e.g. to
// kick off extraction. Hooks own their error handling.
type CompletionHook func(ctx context.Context, callID string, res calls.CallCompletion)

// Poller watches conversations until they resolve. One goroutine per watched
// call; goroutines share no mutable state with each other.
type Poller struct {
	source    voiceagent.StatusSource
	finalizer CallFinalizer
	gate      Gate
	log       *slog.Logger

	hook CompletionHook

	schedule []time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(source voiceagent.StatusSource, finalizer CallFinalizer, gate Gate, log *slog.Logger) *Poller {
	p := &Poller{
		source:    source,
		finalizer: finalizer,
		gate:      gate,
		log:       log,
		schedule:  defaultSchedule,
		quit:      make(chan struct{}),
	}
	p.sleep = p.wait
	return p
}

// OnComplete registers a hook invoked after every successful completion.
// Must be called before the first Watch.
func (p *Poller) OnComplete(fn CompletionHook) {
	p.hook = fn
}

// Watch starts a background poll for one call. It returns immediately.
// A second Watch for the same call id while one is active is a no-op.
func (p *Poller) Watch(ctx context.Context, conversationID, callID string) {
	ok, err := p.gate.Acquire(ctx, callID)
	if err != nil {
		p.log.Error("poller gate acquire failed", "call_id", callID, "error", err)
		return
	}
	if !ok {
		p.log.Warn("poll already active for call", "call_id", callID)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if err := p.gate.Release(context.WithoutCancel(ctx), callID); err != nil {
				p.log.Error("poller gate release failed", "call_id", callID, "error", err)
			}
		}()
		p.run(ctx, conversationID, callID)
	}()
}

// Close stops issuing new waits and blocks until in-flight polls return.
// Records mid-poll are left exactly as last written.
func (p *Poller) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, conversationID, callID string) {
	log := p.log.With("call_id", callID, "conversation_id", conversationID)

	for attempt, delay := range p.schedule {
		if err := p.sleep(ctx, delay); err != nil {
			log.Warn("poll interrupted before completion", "attempt", attempt+1)
			return
		}

		conv, err := p.source.GetConversation(ctx, conversationID)
		if err != nil {
			// Transient read failures are retried on the next scheduled
			// attempt; only a terminal status or schedule exhaustion
			// ends the loop.
			log.Warn("conversation status query failed", "attempt", attempt+1, "error", err)
			continue
		}

		switch conv.Status {
		case voiceagent.ConversationDone:
			res := calls.CallCompletion{
				DurationSeconds: conv.DurationSeconds,
				Transcript:      voiceagent.ReadableTranscript(conv.Transcript),
				AISummary:       conv.Summary,
			}
			if raw, err := json.Marshal(conv.Transcript); err == nil && len(conv.Transcript) > 0 {
				res.TranscriptJSON = string(raw)
			}
			if err := p.finalizer.CompleteCall(ctx, callID, res); err != nil {
				log.Error("finalize completed call failed", "error", err)
				return
			}
			log.Info("call completed", "attempts", attempt+1, "duration_seconds", res.DurationSeconds)
			if p.hook != nil {
				p.hook(ctx, callID, res)
			}
			return

		case voiceagent.ConversationFailed:
			if err := p.finalizer.FailCall(ctx, callID); err != nil {
				log.Error("finalize failed call failed", "error", err)
				return
			}
			log.Info("call failed at provider", "attempts", attempt+1)
			return
		}
	}

	changed, err := p.finalizer.FailCallIfUnresolved(ctx, callID)
	if err != nil {
		log.Error("finalize timed-out call failed", "error", err)
		return
	}
	if changed {
		log.Warn("polling schedule exhausted, call marked failed", "attempts", len(p.schedule))
	}
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return context.Canceled
	}
}
