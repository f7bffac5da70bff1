package grpc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 金額一律以十進位字串傳輸，避免 JSON number 轉 float64 失去精度

type ApplyTransactionRequest struct {
	// RequestID: 呼叫端產生的 UUID，空字串代表不做冪等檢查
	RequestID string `json:"request_id,omitempty"`
	TaxID     string `json:"tax_id"`
	// Kind: deposit | withdraw | withdrawal
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
}

type ApplyTransactionResponse struct {
	Balance string `json:"balance"`
}

type TaxIDRequest struct {
	TaxID string `json:"tax_id"`
}

type BalanceResponse struct {
	TaxID   string `json:"tax_id"`
	Balance string `json:"balance"`
}

type MovementMessage struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	TaxID        string    `json:"tax_id"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	RequestID    string    `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListMovementsResponse struct {
	Movements []MovementMessage `json:"movements"`
}

// PersonMessage 生日格式為 DD-MM-YYYY
type PersonMessage struct {
	TaxID     string    `json:"tax_id"`
	Name      string    `json:"name"`
	IDNumber  string    `json:"id_number,omitempty"`
	BirthDate string    `json:"birth_date"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// UpdatePersonRequest nil 欄位不變更
type UpdatePersonRequest struct {
	TaxID     string  `json:"tax_id"`
	Name      *string `json:"name,omitempty"`
	IDNumber  *string `json:"id_number,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type AccountMessage struct {
	ID        int64      `json:"id"`
	TaxID     string     `json:"tax_id"`
	Balance   string     `json:"balance"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type Empty struct{}

func movementToMessage(mv domain.Movement) MovementMessage {
	msg := MovementMessage{
		ID:           mv.ID,
		AccountID:    mv.AccountID,
		TaxID:        mv.TaxID,
		Kind:         mv.Kind.String(),
		Amount:       mv.Amount.String(),
		BalanceAfter: mv.BalanceAfter.String(),
		CreatedAt:    mv.CreatedAt,
	}
	if mv.RequestID != uuid.Nil {
		msg.RequestID = mv.RequestID.String()
	}
	return msg
}

func (m MovementMessage) toDomain() (domain.Movement, error) {
	mv := domain.Movement{
		ID:        m.ID,
		AccountID: m.AccountID,
		TaxID:     m.TaxID,
		Kind:      domain.TransactionKind(m.Kind),
		CreatedAt: m.CreatedAt,
	}
	var err error
	if mv.Amount, err = decimal.NewFromString(m.Amount); err != nil {
		return mv, err
	}
	if mv.BalanceAfter, err = decimal.NewFromString(m.BalanceAfter); err != nil {
		return mv, err
	}
	if m.RequestID != "" {
		if mv.RequestID, err = uuid.Parse(m.RequestID); err != nil {
			return mv, err
		}
	}
	return mv, nil
}

func personToMessage(p *domain.Person) *PersonMessage {
	msg := &PersonMessage{
		TaxID:     p.TaxID,
		Name:      p.Name,
		IDNumber:  p.IDNumber,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if !p.BirthDate.IsZero() {
		msg.BirthDate = p.BirthDate.Format(domain.BirthDateLayout)
	}
	return msg
}

func (m *PersonMessage) toDomain() (domain.Person, error) {
	p := domain.Person{
		TaxID:     m.TaxID,
		Name:      m.Name,
		IDNumber:  m.IDNumber,
		Email:     m.Email,
		Phone:     m.Phone,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.BirthDate != "" {
		born, err := domain.ParseBirthDate(m.BirthDate)
		if err != nil {
			return p, err
		}
		p.BirthDate = born
	}
	return p, nil
}

func (m *UpdatePersonRequest) patch() (domain.PersonPatch, error) {
	patch := domain.PersonPatch{
		Name:     m.Name,
		IDNumber: m.IDNumber,
		Email:    m.Email,
		Phone:    m.Phone,
	}
	if m.BirthDate != nil {
		born, err := domain.ParseBirthDate(*m.BirthDate)
		if err != nil {
			return patch, err
		}
		patch.BirthDate = &born
	}
	return patch, nil
}

func accountToMessage(a *domain.Account) *AccountMessage {
	return &AccountMessage{
		ID:        a.ID,
		TaxID:     a.TaxID,
		Balance:   a.Balance.String(),
		CreatedAt: a.CreatedAt,
		ClosedAt:  a.ClosedAt,
	}
}

func (m *AccountMessage) toDomain() (*domain.Account, error) {
	balance, err := decimal.NewFromString(m.Balance)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:        m.ID,
		TaxID:     m.TaxID,
		Balance:   balance,
		CreatedAt: m.CreatedAt,
		ClosedAt:  m.ClosedAt,
	}, nil
}
