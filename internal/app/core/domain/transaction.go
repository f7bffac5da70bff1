package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind 交易類型
type TransactionKind string

const (
	// 存款
	TransactionKindDeposit TransactionKind = "deposit"
	// 提款
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// Valid 是否為支援的交易類型
func (k TransactionKind) Valid() bool {
	return k == TransactionKindDeposit || k == TransactionKindWithdrawal
}

func (k TransactionKind) String() string {
	return string(k)
}

// ParseTransactionKind 解析使用者輸入的交易類型 (不分大小寫)
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return TransactionKindDeposit, nil
	case "withdraw", "withdrawal":
		return TransactionKindWithdrawal, nil
	}
	return "", ErrInvalidTransactionKind
}

// ParseAmount 以完整精度解析金額，非數字或非正數都回傳 ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// TransactionRequest 一筆單一帳戶的交易請求
type TransactionRequest struct {
	// RequestID: 呼叫端提供的追蹤號，uuid.Nil 代表不做冪等檢查
	RequestID uuid.UUID
	TaxID     string
	Amount    decimal.Decimal
	Kind      TransactionKind
}

// Validate 在碰觸儲存層之前檢查交易類型與金額
func (r *TransactionRequest) Validate() error {
	if !r.Kind.Valid() {
		return ErrInvalidTransactionKind
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Movement 帳務異動紀錄，只能新增不能修改
type Movement struct {
	ID           int64
	AccountID    int64
	TaxID        string
	Kind         TransactionKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	RequestID    uuid.UUID
	CreatedAt    time.Time
}

// Signed 依交易類型回傳帶正負號的金額
func (m *Movement) Signed() decimal.Decimal {
	if m.Kind == TransactionKindWithdrawal {
		return m.Amount.Neg()
	}
	return m.Amount
}

// Matches 判斷重送的請求是否與已記錄的異動相同
func (m *Movement) Matches(accountID int64, req *TransactionRequest) bool {
	return m.AccountID == accountID && m.Kind == req.Kind && m.Amount.Equal(req.Amount)
}

// SumMovements 由異動紀錄重算餘額
func SumMovements(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for i := range movements {
		total = total.Add(movements[i].Signed())
	}
	return total
}
