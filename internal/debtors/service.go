package debtors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("debtors: not found")
	ErrInvalidArgument = errors.New("debtors: invalid argument")
)

// Repository abstracts debtor persistence.
// Implementations must enforce client_id scoping on every query.
type Repository interface {
	Create(ctx context.Context, d Debtor) error
	Get(ctx context.Context, clientID, debtorID string) (Debtor, error)
	Update(ctx context.Context, d Debtor) error
	List(ctx context.Context, clientID string, f ListFilter) ([]Debtor, int, error)
}

type ListFilter struct {
	Stage    DelinquencyStage
	OptedOut *bool

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

// Service provides debtor account operations.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type CreateRequest struct {
	ExternalID      string           `json:"external_id,omitempty"`
	FirstName       string           `json:"first_name,omitempty"`
	LastName        string           `json:"last_name,omitempty"`
	Phone           string           `json:"phone"`
	Email           string           `json:"email,omitempty"`
	Timezone        string           `json:"timezone,omitempty"`
	AmountOwedMinor int64            `json:"amount_owed_minor"`
	Currency        string           `json:"currency,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Stage           DelinquencyStage `json:"stage,omitempty"`
	AccountLast4    string           `json:"account_last4,omitempty"`
}

func (s *Service) Create(ctx context.Context, clientID string, req CreateRequest) (Debtor, error) {
	if clientID == "" {
		return Debtor{}, ErrInvalidArgument
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return Debtor{}, err
	}
	if req.AmountOwedMinor < 0 {
		return Debtor{}, ErrInvalidArgument
	}

	stage := req.Stage
	if stage == "" {
		stage = StagePreDelinquency
	}
	if !ValidStage(stage) {
		return Debtor{}, ErrInvalidArgument
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock().UTC()
	d := Debtor{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		ExternalID:      strings.TrimSpace(req.ExternalID),
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Phone:           phone,
		Email:           strings.TrimSpace(req.Email),
		Timezone:        strings.TrimSpace(req.Timezone),
		AmountOwedMinor: req.AmountOwedMinor,
		Currency:        currency,
		DueDate:         req.DueDate,
		Stage:           stage,
		AccountLast4:    strings.TrimSpace(req.AccountLast4),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return Debtor{}, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, clientID, debtorID string) (Debtor, error) {
	if clientID == "" || debtorID == "" {
		return Debtor{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, clientID, debtorID)
}

func (s *Service) List(ctx context.Context, clientID string, f ListFilter) ([]Debtor, int, error) {
	if clientID == "" {
		return nil, 0, ErrInvalidArgument
	}
	return s.repo.List(ctx, clientID, f.withDefaults())
}

type UpdateRequest struct {
	FirstName       *string           `json:"first_name,omitempty"`
	LastName        *string           `json:"last_name,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
	Email           *string           `json:"email,omitempty"`
	AmountOwedMinor *int64            `json:"amount_owed_minor,omitempty"`
	DueDate         *time.Time        `json:"due_date,omitempty"`
	Stage           *DelinquencyStage `json:"stage,omitempty"`
}

func (s *Service) Update(ctx context.Context, clientID, debtorID string, req UpdateRequest) (Debtor, error) {
	d, err := s.Get(ctx, clientID, debtorID)
	if err != nil {
		return Debtor{}, err
	}

	if req.FirstName != nil {
		d.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		d.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		phone, err := NormalizePhone(*req.Phone)
		if err != nil {
			return Debtor{}, err
		}
		d.Phone = phone
	}
	if req.Email != nil {
		d.Email = strings.TrimSpace(*req.Email)
	}
	if req.AmountOwedMinor != nil {
		if *req.AmountOwedMinor < 0 {
			return Debtor{}, ErrInvalidArgument
		}
		d.AmountOwedMinor = *req.AmountOwedMinor
	}
	if req.DueDate != nil {
		d.DueDate = req.DueDate
	}
	if req.Stage != nil {
		if !ValidStage(*req.Stage) {
			return Debtor{}, ErrInvalidArgument
		}
		d.Stage = *req.Stage
	}

	d.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, d); err != nil {
		return Debtor{}, err
	}
	return d, nil
}

// OptOut records a do-not-call request. The timestamp is kept for compliance
// reporting; opt-outs are never silently reversed by this service.
func (s *Service) OptOut(ctx context.Context, clientID, debtorID string) (Debtor, error) {
	d, err := s.Get(ctx, clientID, debtorID)
	if err != nil {
		return Debtor{}, err
	}
	if d.OptedOut {
		return d, nil
	}

	now := s.clock().UTC()
	d.OptedOut = true
	d.OptedOutAt = &now
	d.UpdatedAt = now
	if err := s.repo.Update(ctx, d); err != nil {
		return Debtor{}, err
	}
	return d, nil
}

// NormalizePhone validates E.164 shape: leading +, 10-15 characters total.
func NormalizePhone(v string) (string, error) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "+") {
		return "", ErrInvalidArgument
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting only
		default:
			return "", ErrInvalidArgument
		}
	}
	out := b.String()
	if len(out) < 10 || len(out) > 16 {
		return "", ErrInvalidArgument
	}
	return out, nil
}
