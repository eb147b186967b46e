package sms

import (
	"strings"
	"time"
)

// Message is one outbound SMS, logged whether or not the provider accepted it.
type Message struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	DebtorID string `json:"debtor_id" db:"debtor_id"`
	CallID   string `json:"call_id,omitempty" db:"call_id"`

	ToNumber   string `json:"to_number" db:"to_number"`
	FromNumber string `json:"from_number" db:"from_number"`
	Body       string `json:"body" db:"body"`
	Template   string `json:"template,omitempty" db:"template"`

	Status      MessageStatus `json:"status" db:"status"`
	ProviderSID string        `json:"provider_sid,omitempty" db:"provider_sid"`
	Error       string        `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type MessageStatus string

const (
	MessageQueued      MessageStatus = "queued"
	MessageSending     MessageStatus = "sending"
	MessageSent        MessageStatus = "sent"
	MessageDelivered   MessageStatus = "delivered"
	MessageFailed      MessageStatus = "failed"
	MessageUndelivered MessageStatus = "undelivered"
)

// MapMessageStatus normalizes a provider status token. Unknown tokens map to
// queued, the least-resolved status, never to a terminal one.
func MapMessageStatus(token string) MessageStatus {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "queued", "accepted":
		return MessageQueued
	case "sending":
		return MessageSending
	case "sent":
		return MessageSent
	case "delivered":
		return MessageDelivered
	case "failed":
		return MessageFailed
	case "undelivered":
		return MessageUndelivered
	default:
		return MessageQueued
	}
}
