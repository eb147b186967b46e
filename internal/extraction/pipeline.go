package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"collections-platform/internal/calls"
	"collections-platform/internal/voiceagent"
)

// CallStore is the slice of the call service the pipeline needs.
type CallStore interface {
	GetByID(ctx context.Context, callID string) (calls.Call, error)
	AttachExtraction(ctx context.Context, callID string, ext calls.CallExtraction) error
}

// PromiseRecorder persists a payment promise derived from an extraction.
type PromiseRecorder interface {
	RecordFromExtraction(ctx context.Context, call calls.Call, ext calls.CallExtraction) error
}

// AuditRecorder records extraction rejections for manual review.
type AuditRecorder interface {
	RecordExtractionRejected(ctx context.Context, clientID, callID, reason string)
}

// Pipeline runs produce-validate-persist for one completed call. A rejected
// extraction is re-requested once; if the second attempt is also rejected the
// call keeps "completed but no usable extraction" and the rejection is
// audited.
type Pipeline struct {
	producer  Producer
	validator *calls.ExtractionValidator
	store     CallStore
	promises  PromiseRecorder
	audit     AuditRecorder
	log       *slog.Logger
}

func NewPipeline(producer Producer, validator *calls.ExtractionValidator, store CallStore, promises PromiseRecorder, audit AuditRecorder, log *slog.Logger) *Pipeline {
	return &Pipeline{
		producer:  producer,
		validator: validator,
		store:     store,
		promises:  promises,
		audit:     audit,
		log:       log,
	}
}

// Run is wired as the poller's completion hook.
func (p *Pipeline) Run(ctx context.Context, callID string, res calls.CallCompletion) {
	log := p.log.With("call_id", callID)
	if res.Transcript == "" {
		log.Info("no transcript, skipping extraction")
		return
	}

	call, err := p.store.GetByID(ctx, callID)
	if err != nil {
		log.Error("load call for extraction", "error", err)
		return
	}

	req := ExtractRequest{Transcript: res.Transcript, Summary: res.AISummary}

	var ext calls.CallExtraction
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := p.producer.Extract(ctx, req)
		if err != nil {
			log.Error("extraction producer failed", "attempt", attempt, "error", err)
			return
		}

		ext, lastErr = p.validator.Validate(raw)
		if lastErr == nil {
			break
		}

		var verr *calls.ValidationError
		if !errors.As(lastErr, &verr) {
			log.Error("extraction validation failed", "attempt", attempt, "error", lastErr)
			return
		}
		log.Warn("extraction rejected", "attempt", attempt, "violations", len(verr.Violations), "error", verr)
	}
	if lastErr != nil {
		if p.audit != nil {
			p.audit.RecordExtractionRejected(ctx, call.ClientID, callID, lastErr.Error())
		}
		return
	}

	if err := p.store.AttachExtraction(ctx, callID, ext); err != nil {
		log.Error("attach extraction", "error", err)
		return
	}
	log.Info("extraction attached", "outcome", ext.Outcome, "final_state", ext.FinalState)

	if ext.PromiseMade && ext.Promise != nil && p.promises != nil {
		if err := p.promises.RecordFromExtraction(ctx, call, ext); err != nil {
			log.Error("record payment promise", "error", err)
		}
	}
}

// RunFromConversation fetches a conversation's transcript and runs the
// pipeline with it. Used to reprocess a call whose hook never fired, e.g.
// after a process restart.
func (p *Pipeline) RunFromConversation(ctx context.Context, source voiceagent.StatusSource, callID, conversationID string) error {
	conv, err := source.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("fetch conversation: %w", err)
	}
	res := calls.CallCompletion{
		DurationSeconds: conv.DurationSeconds,
		Transcript:      voiceagent.ReadableTranscript(conv.Transcript),
		AISummary:       conv.Summary,
	}
	if raw, err := json.Marshal(conv.Transcript); err == nil {
		res.TranscriptJSON = string(raw)
	}
	p.Run(ctx, callID, res)
	return nil
}
