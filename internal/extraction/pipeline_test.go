package extraction

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"collections-platform/internal/calls"
	"collections-platform/internal/voiceagent"
)

type fakeProducer struct {
	outputs [][]byte
	n       int
}

func (p *fakeProducer) Extract(_ context.Context, _ ExtractRequest) ([]byte, error) {
	out := p.outputs[p.n]
	if p.n < len(p.outputs)-1 {
		p.n++
	}
	return out, nil
}

type fakeStore struct {
	call     calls.Call
	attached []calls.CallExtraction
}

func (s *fakeStore) GetByID(_ context.Context, _ string) (calls.Call, error) {
	return s.call, nil
}

func (s *fakeStore) AttachExtraction(_ context.Context, _ string, ext calls.CallExtraction) error {
	s.attached = append(s.attached, ext)
	return nil
}

type fakePromises struct {
	recorded []calls.CallExtraction
}

func (p *fakePromises) RecordFromExtraction(_ context.Context, _ calls.Call, ext calls.CallExtraction) error {
	p.recorded = append(p.recorded, ext)
	return nil
}

type fakeAudit struct {
	rejected []string
}

func (a *fakeAudit) RecordExtractionRejected(_ context.Context, _, callID, _ string) {
	a.rejected = append(a.rejected, callID)
}

func validRaw(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	m := map[string]any{
		"confirmed_identity":   true,
		"speaking_with_debtor": true,
		"wrong_number":         false,
		"outcome":              "promised_to_pay",
		"promise_made":         true,
		"promise":              map[string]any{"amount": 250.0, "promise_date": "2099-01-15"},
		"callback_requested":   false,
		"requested_no_calls":   false,
		"debtor_sentiment":     4,
		"call_summary":         "Debtor confirmed identity and promised payment in full.",
		"final_state":          "commitment",
	}
	for k, v := range overrides {
		m[k] = v
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newTestPipeline(producer Producer) (*Pipeline, *fakeStore, *fakePromises, *fakeAudit) {
	store := &fakeStore{call: calls.Call{ID: "call-1", ClientID: "client-1", Status: calls.CallStatusCompleted}}
	promises := &fakePromises{}
	audit := &fakeAudit{}
	validator := calls.NewExtractionValidator().WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(producer, validator, store, promises, audit, log), store, promises, audit
}

func TestPipelineAttachesValidExtractionAndRecordsPromise(t *testing.T) {
	producer := &fakeProducer{outputs: [][]byte{validRaw(t, nil)}}
	p, store, promises, audit := newTestPipeline(producer)

	p.Run(context.Background(), "call-1", calls.CallCompletion{Transcript: "Agent: Hello\nUser: Hi"})

	if len(store.attached) != 1 {
		t.Fatalf("attached %d extractions, want 1", len(store.attached))
	}
	if store.attached[0].Outcome != calls.OutcomePromisedToPay {
		t.Fatalf("outcome = %q", store.attached[0].Outcome)
	}
	if len(promises.recorded) != 1 {
		t.Fatalf("promises recorded = %d, want 1", len(promises.recorded))
	}
	if len(audit.rejected) != 0 {
		t.Fatalf("unexpected rejection audit: %v", audit.rejected)
	}
}

func TestPipelineRetriesOnceThenAuditsRejection(t *testing.T) {
	bad := validRaw(t, map[string]any{"promise": nil})
	producer := &fakeProducer{outputs: [][]byte{bad, bad}}
	p, store, promises, audit := newTestPipeline(producer)

	p.Run(context.Background(), "call-1", calls.CallCompletion{Transcript: "Agent: Hello"})

	if producer.n != 1 {
		t.Fatalf("producer asked %d extra times, want exactly one retry", producer.n)
	}
	if len(store.attached) != 0 {
		t.Fatal("rejected extraction must never be attached")
	}
	if len(promises.recorded) != 0 {
		t.Fatal("rejected extraction must never record a promise")
	}
	if len(audit.rejected) != 1 || audit.rejected[0] != "call-1" {
		t.Fatalf("rejection audit = %v", audit.rejected)
	}
}

func TestPipelineRecoversWhenRetrySucceeds(t *testing.T) {
	bad := validRaw(t, map[string]any{"debtor_sentiment": 9})
	producer := &fakeProducer{outputs: [][]byte{bad, validRaw(t, nil)}}
	p, store, _, audit := newTestPipeline(producer)

	p.Run(context.Background(), "call-1", calls.CallCompletion{Transcript: "Agent: Hello"})

	if len(store.attached) != 1 {
		t.Fatalf("attached %d, want 1 after successful retry", len(store.attached))
	}
	if len(audit.rejected) != 0 {
		t.Fatalf("no audit expected when retry succeeds: %v", audit.rejected)
	}
}

func TestPipelineSkipsEmptyTranscript(t *testing.T) {
	producer := &fakeProducer{outputs: [][]byte{validRaw(t, nil)}}
	p, store, _, _ := newTestPipeline(producer)

	p.Run(context.Background(), "call-1", calls.CallCompletion{})

	if len(store.attached) != 0 {
		t.Fatal("no extraction should run without a transcript")
	}
}

type fakeStatusSource struct {
	conv voiceagent.Conversation
}

func (s *fakeStatusSource) GetConversation(_ context.Context, _ string) (voiceagent.Conversation, error) {
	return s.conv, nil
}

func TestRunFromConversationFetchesTranscript(t *testing.T) {
	producer := &fakeProducer{outputs: [][]byte{validRaw(t, nil)}}
	p, store, _, _ := newTestPipeline(producer)
	source := &fakeStatusSource{conv: voiceagent.Conversation{
		ID:     "conv-1",
		Status: voiceagent.ConversationDone,
		Transcript: []voiceagent.Turn{
			{Role: "agent", Message: "Hello"},
			{Role: "user", Message: "Hi"},
		},
		DurationSeconds: 30,
	}}

	if err := p.RunFromConversation(context.Background(), source, "call-1", "conv-1"); err != nil {
		t.Fatalf("RunFromConversation: %v", err)
	}
	if len(store.attached) != 1 {
		t.Fatalf("attached %d extractions, want 1", len(store.attached))
	}
}

func TestExtractJSONObjectHandlesFencedOutput(t *testing.T) {
	in := "```json\n{\"a\": {\"b\": \"}\"}}\ntrailing\n```"
	got := extractJSONObject(in)
	if got != `{"a": {"b": "}"}}` {
		t.Fatalf("extractJSONObject = %q", got)
	}
	if extractJSONObject("no object here") != "" {
		t.Fatal("expected empty result without an object")
	}
}
