package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// sqlPerson 對應資料庫的 persons 表
type sqlPerson struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TaxID     string    `gorm:"column:tax_id;type:varchar(32);uniqueIndex;not null"`
	Name      string    `gorm:"type:varchar(255);not null"`
	IDNumber  string    `gorm:"column:id_number;type:varchar(32)"`
	BirthDate time.Time `gorm:"type:date"`
	Email     string    `gorm:"type:varchar(255)"`
	Phone     string    `gorm:"type:varchar(32)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*sqlPerson) TableName() string {
	return "persons"
}

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	TaxID     string          `gorm:"column:tax_id;type:varchar(32);uniqueIndex;not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	CreatedAt time.Time       `gorm:"precision:6"`
	UpdatedAt time.Time       `gorm:"precision:6"`
	ClosedAt  *time.Time      `gorm:"precision:6"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlMovement 對應資料庫的 movements 表，只新增不修改
type sqlMovement struct {
	ID           int64           `gorm:"primaryKey;autoIncrement;index:idx_movements_account_seq,priority:2"`
	AccountID    int64           `gorm:"index:idx_movements_account_seq,priority:1;not null"`
	TaxID        string          `gorm:"column:tax_id;type:varchar(32);not null"`
	Kind         string          `gorm:"type:varchar(16);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	RequestID    []byte          `gorm:"column:request_id;type:binary(16);uniqueIndex"` // 對應 domain.Movement.RequestID
	CreatedAt    time.Time       `gorm:"precision:6"`
}

func (*sqlMovement) TableName() string {
	return "movements"
}

// Models 回傳所有需要 migrate 的 model
func Models() []any {
	return []any{&sqlPerson{}, &sqlAccount{}, &sqlMovement{}}
}

func (p *sqlPerson) toDomain() *domain.Person {
	return &domain.Person{
		TaxID:     p.TaxID,
		Name:      p.Name,
		IDNumber:  p.IDNumber,
		BirthDate: p.BirthDate,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:        a.ID,
		TaxID:     a.TaxID,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		ClosedAt:  a.ClosedAt,
	}
}

func (m *sqlMovement) toDomain() domain.Movement {
	var requestID uuid.UUID
	if len(m.RequestID) == len(requestID) {
		copy(requestID[:], m.RequestID)
	}
	return domain.Movement{
		ID:           m.ID,
		AccountID:    m.AccountID,
		TaxID:        m.TaxID,
		Kind:         domain.TransactionKind(m.Kind),
		Amount:       m.Amount,
		BalanceAfter: m.BalanceAfter,
		RequestID:    requestID,
		CreatedAt:    m.CreatedAt,
	}
}

func requestIDBytes(id uuid.UUID) []byte {
	if id == uuid.Nil {
		return nil
	}
	return id[:]
}
