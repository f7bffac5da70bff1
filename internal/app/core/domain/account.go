package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶，TaxID 為正規化後的身分證號
type Account struct {
	ID        int64
	TaxID     string
	Balance   decimal.Decimal
	CreatedAt time.Time
	ClosedAt  *time.Time
}

func NewAccount(id int64, taxID string) *Account {
	return &Account{
		ID:      id,
		TaxID:   taxID,
		Balance: decimal.Zero,
	}
}

// Closed 帳戶是否已關閉
func (a *Account) Closed() bool {
	return a.ClosedAt != nil
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Apply 依交易類型更新餘額
func (a *Account) Apply(kind TransactionKind, amount decimal.Decimal) error {
	switch kind {
	case TransactionKindDeposit:
		return a.Deposit(amount)
	case TransactionKindWithdrawal:
		return a.Withdraw(amount)
	}
	return ErrInvalidTransactionKind
}
