package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"collections-platform/internal/calls"
	"collections-platform/internal/voiceagent"
)

// scriptedSource returns one scripted answer per query, in order. Queries past
// the end of the script fail the test.
type scriptedSource struct {
	t       *testing.T
	mu      sync.Mutex
	script  []func() (voiceagent.Conversation, error)
	queries int
}

func (s *scriptedSource) GetConversation(_ context.Context, _ string) (voiceagent.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queries >= len(s.script) {
		s.t.Errorf("unexpected query %d, script has %d entries", s.queries+1, len(s.script))
		return voiceagent.Conversation{}, errors.New("script exhausted")
	}
	step := s.script[s.queries]
	s.queries++
	return step()
}

func (s *scriptedSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

type recordingFinalizer struct {
	mu          sync.Mutex
	completed   []calls.CallCompletion
	failed      int
	finalized   int
	wasTerminal bool
}

func (f *recordingFinalizer) CompleteCall(_ context.Context, _ string, res calls.CallCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, res)
	return nil
}

func (f *recordingFinalizer) FailCall(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed++
	return nil
}

func (f *recordingFinalizer) FailCallIfUnresolved(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized++
	return !f.wasTerminal, nil
}

func inFlight() (voiceagent.Conversation, error) {
	return voiceagent.Conversation{Status: voiceagent.ConversationInProgress}, nil
}

// newTestPoller wires a poller whose waits record the requested delay and
// return instantly.
func newTestPoller(source voiceagent.StatusSource, fin CallFinalizer) (*Poller, *[]time.Duration) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(source, fin, NewMemoryGate(), log)
	waits := &[]time.Duration{}
	var mu sync.Mutex
	p.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return nil
	}
	return p, waits
}

func TestExhaustedScheduleMarksFailedAfterExactlyEightQueries(t *testing.T) {
	src := &scriptedSource{t: t}
	for i := 0; i < 8; i++ {
		src.script = append(src.script, inFlight)
	}
	fin := &recordingFinalizer{}
	p, waits := newTestPoller(src, fin)

	p.Watch(context.Background(), "conv-1", "call-1")
	p.Close()

	if got := src.count(); got != 8 {
		t.Fatalf("queries = %d, want exactly 8", got)
	}
	if fin.finalized != 1 {
		t.Fatalf("FailCallIfUnresolved called %d times, want 1", fin.finalized)
	}
	if fin.failed != 0 || len(fin.completed) != 0 {
		t.Fatalf("unexpected terminal transitions: failed=%d completed=%d", fin.failed, len(fin.completed))
	}

	want := []time.Duration{
		5 * time.Second, 10 * time.Second, 15 * time.Second, 30 * time.Second,
		30 * time.Second, 60 * time.Second, 60 * time.Second, 120 * time.Second,
	}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v", *waits)
	}
	for i, d := range want {
		if (*waits)[i] != d {
			t.Fatalf("wait %d = %v, want %v", i+1, (*waits)[i], d)
		}
	}
}

func TestDoneOnThirdAttemptStopsAndRendersTranscript(t *testing.T) {
	done := func() (voiceagent.Conversation, error) {
		return voiceagent.Conversation{
			Status:          voiceagent.ConversationDone,
			DurationSeconds: 61,
			Transcript: []voiceagent.Turn{
				{Role: "agent", Message: "Hello"},
				{Role: "user", Message: "Hi"},
			},
			Summary: "Short greeting.",
		}, nil
	}
	src := &scriptedSource{t: t, script: []func() (voiceagent.Conversation, error){inFlight, inFlight, done}}
	fin := &recordingFinalizer{}
	p, _ := newTestPoller(src, fin)

	p.Watch(context.Background(), "conv-1", "call-1")
	p.Close()

	if got := src.count(); got != 3 {
		t.Fatalf("queries = %d, want exactly 3", got)
	}
	if len(fin.completed) != 1 {
		t.Fatalf("completed %d times, want 1", len(fin.completed))
	}
	res := fin.completed[0]
	if res.Transcript != "Agent: Hello\nUser: Hi" {
		t.Fatalf("transcript = %q", res.Transcript)
	}
	if res.DurationSeconds != 61 || res.AISummary != "Short greeting." {
		t.Fatalf("completion = %+v", res)
	}
	if !strings.Contains(res.TranscriptJSON, `"Hello"`) {
		t.Fatalf("transcript json = %q", res.TranscriptJSON)
	}
	if fin.finalized != 0 {
		t.Fatal("timeout finalization must not run after completion")
	}
}

func TestTransientErrorsDoNotCountAsTerminal(t *testing.T) {
	boom := func() (voiceagent.Conversation, error) {
		return voiceagent.Conversation{}, errors.New("connection reset")
	}
	failed := func() (voiceagent.Conversation, error) {
		return voiceagent.Conversation{Status: voiceagent.ConversationFailed}, nil
	}
	src := &scriptedSource{t: t, script: []func() (voiceagent.Conversation, error){boom, boom, failed}}
	fin := &recordingFinalizer{}
	p, _ := newTestPoller(src, fin)

	p.Watch(context.Background(), "conv-1", "call-1")
	p.Close()

	if got := src.count(); got != 3 {
		t.Fatalf("queries = %d, want exactly 3", got)
	}
	if fin.failed != 1 {
		t.Fatalf("FailCall called %d times, want 1", fin.failed)
	}
	if len(fin.completed) != 0 || fin.finalized != 0 {
		t.Fatalf("unexpected transitions: completed=%d finalized=%d", len(fin.completed), fin.finalized)
	}
}

func TestWatchIsAtMostOncePerCall(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{t: t, script: []func() (voiceagent.Conversation, error){
		func() (voiceagent.Conversation, error) {
			<-release
			return voiceagent.Conversation{Status: voiceagent.ConversationDone}, nil
		},
	}}
	fin := &recordingFinalizer{}
	p, _ := newTestPoller(src, fin)
	p.schedule = []time.Duration{time.Millisecond}

	p.Watch(context.Background(), "conv-1", "call-1")
	// Second watch for the same call while the first is active must not
	// start another poll.
	p.Watch(context.Background(), "conv-1", "call-1")
	close(release)
	p.Close()

	if got := src.count(); got != 1 {
		t.Fatalf("queries = %d, want 1", got)
	}
	if len(fin.completed) != 1 {
		t.Fatalf("completed %d times, want 1", len(fin.completed))
	}
}

func TestCompletionHookRunsWithTranscript(t *testing.T) {
	done := func() (voiceagent.Conversation, error) {
		return voiceagent.Conversation{
			Status:     voiceagent.ConversationDone,
			Transcript: []voiceagent.Turn{{Role: "agent", Message: "Hello"}},
		}, nil
	}
	src := &scriptedSource{t: t, script: []func() (voiceagent.Conversation, error){done}}
	fin := &recordingFinalizer{}
	p, _ := newTestPoller(src, fin)

	var mu sync.Mutex
	var hooked []string
	p.OnComplete(func(_ context.Context, callID string, res calls.CallCompletion) {
		mu.Lock()
		hooked = append(hooked, callID+": "+res.Transcript)
		mu.Unlock()
	})

	p.Watch(context.Background(), "conv-1", "call-1")
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 1 || hooked[0] != "call-1: Agent: Hello" {
		t.Fatalf("hook calls = %v", hooked)
	}
}

func TestIdempotentFinalizationSkipsTerminalRecords(t *testing.T) {
	src := &scriptedSource{t: t}
	for i := 0; i < 8; i++ {
		src.script = append(src.script, inFlight)
	}
	fin := &recordingFinalizer{wasTerminal: true}
	p, _ := newTestPoller(src, fin)

	p.Watch(context.Background(), "conv-1", "call-1")
	p.Close()

	// The conditional finalize ran but reported no transition; the poller
	// must not force a Fail on top of it.
	if fin.finalized != 1 || fin.failed != 0 {
		t.Fatalf("finalized=%d failed=%d", fin.finalized, fin.failed)
	}
}
