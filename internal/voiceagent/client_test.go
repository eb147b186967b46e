package voiceagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"collections-platform/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.VoiceAgentConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		AgentID:       "agent_1",
		PhoneNumberID: "pn_1",
	})
}

func TestStartOutboundCallSendsAgentAndVariables(t *testing.T) {
	var got outboundCallBody
	var gotKey string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/convai/twilio/outbound-call" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"conversation_id": "conv_1",
			"callSid":         "CA123",
		})
	})

	res, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{
		ToNumber:         "+15550001111",
		DynamicVariables: map[string]string{"debtor_name": "Jane Doe"},
	})
	if err != nil {
		t.Fatalf("StartOutboundCall: %v", err)
	}
	if res.ConversationID != "conv_1" || res.CallSID != "CA123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if got.AgentID != "agent_1" || got.AgentPhoneNumberID != "pn_1" || got.ToNumber != "+15550001111" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if got.InitiationData == nil || got.InitiationData.DynamicVariables["debtor_name"] != "Jane Doe" {
		t.Fatalf("dynamic variables not forwarded: %+v", got.InitiationData)
	}
}

func TestStartOutboundCallRejectsMissingConversationID(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "agent busy"})
	})

	_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+15550001111"})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("want ErrProvider, got %v", err)
	}
}

func TestGetConversationNormalizesProviderShape(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversations/conv_1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"conversation_id": "conv_1",
			"status":          "done",
			"transcript": []map[string]string{
				{"role": "agent", "message": "Hello"},
				{"role": "user", "message": "Hi"},
			},
			"metadata": map[string]any{"call_duration_secs": 42},
			"analysis": map[string]any{"transcript_summary": "short call"},
		})
	})

	conv, err := c.GetConversation(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Status != ConversationDone {
		t.Fatalf("status = %q", conv.Status)
	}
	if conv.DurationSeconds != 42 || conv.Summary != "short call" {
		t.Fatalf("metadata not mapped: %+v", conv)
	}
	if got := ReadableTranscript(conv.Transcript); got != "Agent: Hello\nUser: Hi" {
		t.Fatalf("transcript = %q", got)
	}
}

func TestGetConversationMapsNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetConversation(context.Background(), "missing")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("want ErrConversationNotFound, got %v", err)
	}
}

func TestSubmitBatchReturnsProviderBatchID(t *testing.T) {
	var got batchSubmitBody
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/batch-calling/submit" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "batch_9"})
	})

	id, err := c.SubmitBatch(context.Background(), "april-wave", []BatchRecipient{
		{ToNumber: "+15550001111", DynamicVariables: map[string]string{"first_name": "Jane"}},
		{ToNumber: "+15550002222"},
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if id != "batch_9" {
		t.Fatalf("batch id = %q", id)
	}
	if got.CallName != "april-wave" || len(got.Recipients) != 2 {
		t.Fatalf("unexpected body: %+v", got)
	}
	if got.Recipients[1].InitiationData != nil {
		t.Fatalf("empty variables should omit initiation data")
	}
}
