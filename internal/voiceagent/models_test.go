package voiceagent

import "testing"

func TestMapConversationStatus(t *testing.T) {
	cases := []struct {
		token string
		want  ConversationStatus
	}{
		{"initiated", ConversationInitiated},
		{"in-progress", ConversationInProgress},
		{"in_progress", ConversationInProgress},
		{"processing", ConversationProcessing},
		{"done", ConversationDone},
		{"DONE", ConversationDone},
		{"failed", ConversationFailed},
		{"", ConversationInitiated},
		{"queued", ConversationInitiated},
		{"something_new", ConversationInitiated},
	}

	for _, tc := range cases {
		got := MapConversationStatus(tc.token)
		if got != tc.want {
			t.Fatalf("MapConversationStatus(%q) = %q, want %q", tc.token, got, tc.want)
		}
		if tc.want != ConversationDone && tc.want != ConversationFailed && got.IsTerminal() {
			t.Fatalf("MapConversationStatus(%q) mapped to terminal %q", tc.token, got)
		}
	}
}

func TestReadableTranscript(t *testing.T) {
	turns := []Turn{
		{Role: "agent", Message: "Hello"},
		{Role: "user", Message: "Hi"},
	}
	if got := ReadableTranscript(turns); got != "Agent: Hello\nUser: Hi" {
		t.Fatalf("ReadableTranscript = %q", got)
	}

	if got := ReadableTranscript(nil); got != "" {
		t.Fatalf("ReadableTranscript(nil) = %q, want empty", got)
	}

	// Any non-agent role is rendered as the user side.
	mixed := []Turn{
		{Role: "Agent", Message: "Can you confirm your name?"},
		{Role: "customer", Message: "Yes, this is Ana."},
	}
	want := "Agent: Can you confirm your name?\nUser: Yes, this is Ana."
	if got := ReadableTranscript(mixed); got != want {
		t.Fatalf("ReadableTranscript = %q, want %q", got, want)
	}
}
