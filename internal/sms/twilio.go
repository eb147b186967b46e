package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collections-platform/internal/config"
)

// Sender submits one SMS to the telephony provider and returns the provider
// message id and its initial status.
type Sender interface {
	Send(ctx context.Context, to, body string) (SendResult, error)
}

type SendResult struct {
	ProviderSID string
	Status      MessageStatus
}

// TwilioSender sends through the Twilio Messages REST API.
type TwilioSender struct {
	http       *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	return &TwilioSender{
		http:       &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.twilio.com",
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
	}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (SendResult, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("sms: build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return SendResult{}, fmt.Errorf("sms: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SendResult{}, fmt.Errorf("sms: decode response: %w", err)
	}
	return SendResult{ProviderSID: payload.SID, Status: MapMessageStatus(payload.Status)}, nil
}
