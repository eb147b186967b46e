package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"collections-platform/internal/config"
)

var (
	ErrConversationNotFound = errors.New("voiceagent: conversation not found")
	ErrProvider             = errors.New("voiceagent: provider error")
)

// StatusSource answers status queries for a conversation. It must tolerate
// being queried many times for the same identifier.
type StatusSource interface {
	GetConversation(ctx context.Context, conversationID string) (Conversation, error)
}

// Dialer places outbound calls through the hosted agent.
type Dialer interface {
	StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
}

// OutboundCallRequest carries everything the agent needs to open one call.
// DynamicVariables are substituted into the agent's script (debtor name,
// amount owed, company name).
type OutboundCallRequest struct {
	ToNumber         string
	DynamicVariables map[string]string
}

type OutboundCallResult struct {
	ConversationID string
	CallSID        string
}

// BatchRecipient is one entry of a batch-calling submission.
type BatchRecipient struct {
	ToNumber         string
	DynamicVariables map[string]string
}

// Client talks to the conversational-voice provider's REST API.
// One instance per process; safe for concurrent use.
type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	agentID       string
	phoneNumberID string
}

func NewClient(cfg config.VoiceAgentConfig) *Client {
	return &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		agentID:       cfg.AgentID,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

type outboundCallBody struct {
	AgentID            string          `json:"agent_id"`
	AgentPhoneNumberID string          `json:"agent_phone_number_id"`
	ToNumber           string          `json:"to_number"`
	InitiationData     *initiationData `json:"conversation_initiation_client_data,omitempty"`
}

type initiationData struct {
	DynamicVariables map[string]string `json:"dynamic_variables,omitempty"`
}

type outboundCallResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
	Message        string `json:"message"`
}

func (c *Client) StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	body := outboundCallBody{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.phoneNumberID,
		ToNumber:           req.ToNumber,
	}
	if len(req.DynamicVariables) > 0 {
		body.InitiationData = &initiationData{DynamicVariables: req.DynamicVariables}
	}

	var resp outboundCallResponse
	if err := c.do(ctx, http.MethodPost, "/v1/convai/twilio/outbound-call", body, &resp); err != nil {
		return OutboundCallResult{}, err
	}
	if resp.ConversationID == "" {
		return OutboundCallResult{}, fmt.Errorf("%w: outbound call accepted without conversation id: %s", ErrProvider, resp.Message)
	}
	return OutboundCallResult{ConversationID: resp.ConversationID, CallSID: resp.CallSID}, nil
}

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Transcript     []struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	} `json:"transcript"`
	Metadata struct {
		CallDurationSecs int `json:"call_duration_secs"`
	} `json:"metadata"`
	Analysis struct {
		TranscriptSummary string `json:"transcript_summary"`
	} `json:"analysis"`
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var resp conversationResponse
	path := "/v1/convai/conversations/" + conversationID
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Conversation{}, err
	}

	conv := Conversation{
		ID:              resp.ConversationID,
		Status:          MapConversationStatus(resp.Status),
		DurationSeconds: resp.Metadata.CallDurationSecs,
		Summary:         resp.Analysis.TranscriptSummary,
	}
	for _, t := range resp.Transcript {
		conv.Transcript = append(conv.Transcript, Turn{Role: t.Role, Message: t.Message})
	}
	return conv, nil
}

type batchSubmitBody struct {
	CallName           string           `json:"call_name"`
	AgentID            string           `json:"agent_id"`
	AgentPhoneNumberID string           `json:"agent_phone_number_id"`
	Recipients         []batchRecipient `json:"recipients"`
}

type batchRecipient struct {
	PhoneNumber    string          `json:"phone_number"`
	InitiationData *initiationData `json:"conversation_initiation_client_data,omitempty"`
}

type batchSubmitResponse struct {
	ID string `json:"id"`
}

// SubmitBatch hands a named list of recipients to the provider's batch-calling
// service and returns the provider batch id.
func (c *Client) SubmitBatch(ctx context.Context, name string, recipients []BatchRecipient) (string, error) {
	body := batchSubmitBody{
		CallName:           name,
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.phoneNumberID,
	}
	for _, r := range recipients {
		br := batchRecipient{PhoneNumber: r.ToNumber}
		if len(r.DynamicVariables) > 0 {
			br.InitiationData = &initiationData{DynamicVariables: r.DynamicVariables}
		}
		body.Recipients = append(body.Recipients, br)
	}

	var resp batchSubmitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/convai/batch-calling/submit", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("voiceagent: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("voiceagent: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voiceagent: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrConversationNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrProvider, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("voiceagent: decode response: %w", err)
	}
	return nil
}
