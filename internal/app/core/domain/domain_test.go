package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTaxID(t *testing.T) {
	inputs := []string{
		"111.222.333-44",
		"11122233344",
		" 111 222 333 44 ",
		"abc",
		"",
		"１２３", // 全形數字不是 ASCII 數字
		"12-ab-34",
	}
	for _, in := range inputs {
		once := NormalizeTaxID(in)
		assert.Equal(t, once, NormalizeTaxID(once), "normalize must be idempotent for %q", in)
		for _, r := range once {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
	assert.Equal(t, NormalizeTaxID("111.222.333-44"), NormalizeTaxID("11122233344"))
	assert.Equal(t, "1234", NormalizeTaxID("12-ab-34"))
	assert.Equal(t, "", NormalizeTaxID("１２３"))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 30.00 ")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(30)))

	amount, err = ParseAmount("0.0000001")
	require.NoError(t, err)
	assert.Equal(t, "0.0000001", amount.String())

	for _, bad := range []string{"", "abc", "-5.00", "0", "1,50", "NaN"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestParseTransactionKind(t *testing.T) {
	kind, err := ParseTransactionKind("Deposit")
	require.NoError(t, err)
	assert.Equal(t, TransactionKindDeposit, kind)

	kind, err = ParseTransactionKind("withdraw")
	require.NoError(t, err)
	assert.Equal(t, TransactionKindWithdrawal, kind)

	_, err = ParseTransactionKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidTransactionKind)
}

func TestAccount_Apply(t *testing.T) {
	acc := NewAccount(1, "1")
	require.NoError(t, acc.Apply(TransactionKindDeposit, decimal.RequireFromString("0.1")))
	require.NoError(t, acc.Apply(TransactionKindDeposit, decimal.RequireFromString("0.2")))
	assert.Equal(t, "0.3", acc.Balance.String())

	assert.ErrorIs(t, acc.Apply(TransactionKindWithdrawal, decimal.RequireFromString("0.31")), ErrInsufficientFunds)
	assert.Equal(t, "0.3", acc.Balance.String())

	assert.ErrorIs(t, acc.Apply(TransactionKind("x"), decimal.NewFromInt(1)), ErrInvalidTransactionKind)
	assert.ErrorIs(t, acc.Withdraw(decimal.NewFromInt(-1)), ErrInvalidAmount)

	require.NoError(t, acc.Apply(TransactionKindWithdrawal, decimal.RequireFromString("0.3")))
	assert.True(t, acc.Balance.IsZero())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", ErrInsufficientFunds)
	assert.Equal(t, KindInsufficientFunds, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))

	persisted := WrapPersistence(errors.New("connection reset"))
	assert.Equal(t, KindPersistence, KindOf(persisted))
	assert.ErrorIs(t, persisted, ErrPersistence)

	// 領域錯誤不會被包裝成 persistence
	assert.Same(t, ErrAccountNotFound, WrapPersistence(ErrAccountNotFound))
	assert.Nil(t, WrapPersistence(nil))

	for _, kind := range []ErrorKind{KindAccountNotFound, KindInvalidAmount, KindPersistence, KindDuplicateRequest} {
		assert.Equal(t, kind, ParseErrorKind(kind.String()))
		assert.Equal(t, kind, KindOf(ErrorFor(kind)))
	}
	assert.Equal(t, KindUnknown, ParseErrorKind("nope"))
}

func TestPersonPatch(t *testing.T) {
	p := &Person{TaxID: "1", Name: "A", Email: "a@example.com", BirthDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, PersonPatch{}.IsEmpty())

	name := "B"
	born, err := ParseBirthDate("31-12-1999")
	require.NoError(t, err)
	PersonPatch{Name: &name, BirthDate: &born}.ApplyTo(p)
	assert.Equal(t, "B", p.Name)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, 1999, p.BirthDate.Year())
	require.NoError(t, p.Validate())

	_, err = ParseBirthDate("1999-12-31")
	assert.ErrorIs(t, err, ErrInvalidPerson)
}
