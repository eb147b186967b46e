package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collections-platform/internal/debtors"
)

var (
	ErrNotFound        = errors.New("sms: not found")
	ErrInvalidArgument = errors.New("sms: invalid argument")
	ErrDebtorOptedOut  = errors.New("sms: debtor has opted out of messages")
)

type ListFilter struct {
	DebtorID string
	Status   MessageStatus

	Limit  int
	Offset int
}

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Limit <= 0 || out.Limit > 100 {
		out.Limit = 20
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

type Repository interface {
	Create(ctx context.Context, m Message) error
	Update(ctx context.Context, m Message) error
	GetByProviderSID(ctx context.Context, providerSID string) (Message, error)
	List(ctx context.Context, clientID string, f ListFilter) ([]Message, int, error)
}

// Service renders and sends follow-up messages, logging every attempt.
type Service struct {
	repo    Repository
	sender  Sender
	debtors debtors.Repository

	fromNumber  string
	companyName string

	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, sender Sender, debtorRepo debtors.Repository, fromNumber, companyName string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		sender:      sender,
		debtors:     debtorRepo,
		fromNumber:  fromNumber,
		companyName: companyName,
		log:         log,
		clock:       time.Now,
	}
}

type SendRequest struct {
	DebtorID string            `json:"debtor_id"`
	CallID   string            `json:"call_id,omitempty"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// SendTemplated renders the named template for a debtor and sends it. The
// message row is written before the provider call so a transport failure
// still leaves an auditable failed row.
func (s *Service) SendTemplated(ctx context.Context, clientID string, req SendRequest) (Message, error) {
	if req.DebtorID == "" || req.Template == "" {
		return Message{}, ErrInvalidArgument
	}
	d, err := s.debtors.Get(ctx, clientID, req.DebtorID)
	if err != nil {
		return Message{}, fmt.Errorf("load debtor: %w", err)
	}
	if d.OptedOut {
		return Message{}, ErrDebtorOptedOut
	}

	vars := map[string]string{
		"first_name":   d.FirstName,
		"company_name": s.companyName,
		"from_number":  s.fromNumber,
		"amount":       "$" + debtors.FormatAmountMinor(d.AmountOwedMinor),
	}
	if d.DueDate != nil {
		vars["due_date"] = debtors.FormatDueDate(d.DueDate)
	}
	for k, v := range req.Vars {
		vars[k] = v
	}
	body, err := RenderTemplate(req.Template, vars)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := s.clock().UTC()
	m := Message{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		DebtorID:   d.ID,
		CallID:     req.CallID,
		ToNumber:   d.Phone,
		FromNumber: s.fromNumber,
		Body:       body,
		Template:   req.Template,
		Status:     MessageQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Message{}, fmt.Errorf("log message: %w", err)
	}

	res, err := s.sender.Send(ctx, d.Phone, body)
	m.UpdatedAt = s.clock().UTC()
	if err != nil {
		m.Status = MessageFailed
		m.Error = err.Error()
		if uerr := s.repo.Update(ctx, m); uerr != nil {
			s.log.Error("update failed message", "message_id", m.ID, "error", uerr)
		}
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	m.ProviderSID = res.ProviderSID
	m.Status = res.Status
	if err := s.repo.Update(ctx, m); err != nil {
		return Message{}, fmt.Errorf("update message: %w", err)
	}

	s.log.Info("sms sent", "message_id", m.ID, "debtor_id", d.ID, "template", req.Template, "status", m.Status)
	return m, nil
}

// ApplyProviderStatus handles a delivery-status callback. Unknown tokens are
// kept non-terminal by MapMessageStatus.
func (s *Service) ApplyProviderStatus(ctx context.Context, providerSID, token string) (Message, error) {
	if providerSID == "" {
		return Message{}, ErrInvalidArgument
	}
	m, err := s.repo.GetByProviderSID(ctx, providerSID)
	if err != nil {
		return Message{}, err
	}
	m.Status = MapMessageStatus(token)
	m.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, clientID string, f ListFilter) ([]Message, int, error) {
	if clientID == "" {
		return nil, 0, ErrInvalidArgument
	}
	return s.repo.List(ctx, clientID, f.withDefaults())
}
