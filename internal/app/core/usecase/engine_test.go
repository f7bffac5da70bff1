package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const (
	rawTaxID = "111.222.333-44"
	taxID    = "11122233344"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newLedger 建立一個已有客戶與帳戶的記憶體帳本
func newLedger(t *testing.T) *memory.MutexLedger {
	t.Helper()
	l, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.CreatePerson(ctx, &domain.Person{
		TaxID:     taxID,
		Name:      "Ana",
		BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
	}))
	_, err = l.CreateAccount(ctx, taxID)
	require.NoError(t, err)
	return l
}

func fund(t *testing.T, e *usecase.BalanceEngine, amount string) {
	t.Helper()
	_, err := e.Apply(context.Background(), taxID, dec(amount), domain.TransactionKindDeposit)
	require.NoError(t, err)
}

// assertInvariant 餘額必須等於異動加總
func assertInvariant(t *testing.T, store usecase.LedgerStore) {
	t.Helper()
	q := usecase.NewQueryService(store)
	balance, err := q.GetBalance(context.Background(), taxID)
	require.NoError(t, err)
	movements, err := q.ListMovements(context.Background(), taxID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(domain.SumMovements(movements)),
		"balance %s != sum of movements %s", balance, domain.SumMovements(movements))
}

func TestApplyTransaction_DepositThenOverdraft(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)
	fund(t, e, "100.00")

	balance, err := e.Apply(ctx, rawTaxID, dec("30.00"), domain.TransactionKindDeposit)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("130.00")))

	_, err = e.Apply(ctx, taxID, dec("200.00"), domain.TransactionKindWithdrawal)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	got, err := usecase.NewQueryService(l).GetBalance(ctx, taxID)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("130.00")))
	assertInvariant(t, l)
}

func TestApplyTransaction_ExactWithdrawalLeavesZero(t *testing.T) {
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)
	fund(t, e, "0.30")

	balance, err := e.Apply(context.Background(), taxID, dec("0.1"), domain.TransactionKindWithdrawal)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("0.2")))
	balance, err = e.Apply(context.Background(), taxID, dec("0.2"), domain.TransactionKindWithdrawal)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assertInvariant(t, l)
}

func TestApplyTransaction_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		taxID  string
		amount decimal.Decimal
		kind   domain.TransactionKind
		want   error
	}{
		{"unknown account", "unknown", dec("10.00"), domain.TransactionKindDeposit, domain.ErrAccountNotFound},
		{"missing account", "999", dec("10.00"), domain.TransactionKindDeposit, domain.ErrAccountNotFound},
		{"negative amount", taxID, dec("-5.00"), domain.TransactionKindDeposit, domain.ErrInvalidAmount},
		{"zero amount", taxID, decimal.Zero, domain.TransactionKindWithdrawal, domain.ErrInvalidAmount},
		{"invalid kind", taxID, dec("1"), domain.TransactionKind("transfer"), domain.ErrInvalidTransactionKind},
		{"empty kind", taxID, dec("1"), domain.TransactionKind(""), domain.ErrInvalidTransactionKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			e := usecase.NewBalanceEngine(l)
			fund(t, e, "50")

			_, err := e.Apply(context.Background(), tt.taxID, tt.amount, tt.kind)
			require.ErrorIs(t, err, tt.want)

			movements, err := usecase.NewQueryService(l).ListMovements(context.Background(), taxID)
			require.NoError(t, err)
			assert.Len(t, movements, 1, "store must be unchanged")
			assertInvariant(t, l)
		})
	}
}

func TestApplyTransaction_NoDoubleSpend(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		amount   string
		callers  int
		expected int
	}{
		{"B=100 A=30", "100", "30", 20, 3},
		{"B=100 A=25", "100", "25", 50, 4},
		{"B=10.50 A=0.75", "10.50", "0.75", 40, 14},
		{"B=5 A=10", "5", "10", 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			e := usecase.NewBalanceEngine(l)
			fund(t, e, tt.balance)

			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				successes    int
				insufficient int
			)
			wg.Add(tt.callers)
			for i := 0; i < tt.callers; i++ {
				go func() {
					defer wg.Done()
					_, err := e.Apply(context.Background(), taxID, dec(tt.amount), domain.TransactionKindWithdrawal)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, domain.ErrInsufficientFunds):
						insufficient++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			floor := dec(tt.balance).Div(dec(tt.amount)).Floor().IntPart()
			assert.Equal(t, tt.expected, int(floor))
			assert.Equal(t, tt.expected, successes)
			assert.Equal(t, tt.callers-tt.expected, insufficient)

			balance, err := usecase.NewQueryService(l).GetBalance(context.Background(), taxID)
			require.NoError(t, err)
			want := dec(tt.balance).Sub(dec(tt.amount).Mul(decimal.NewFromInt(int64(successes))))
			assert.True(t, balance.Equal(want), "balance %s want %s", balance, want)
			assertInvariant(t, l)
		})
	}
}

func TestApplyTransaction_ConcurrentDeposits(t *testing.T) {
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := e.Apply(context.Background(), taxID, dec("50.00"), domain.TransactionKindDeposit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	q := usecase.NewQueryService(l)
	balance, err := q.GetBalance(context.Background(), taxID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100.00")))

	movements, err := q.ListMovements(context.Background(), taxID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.False(t, movements[0].CreatedAt.Equal(movements[1].CreatedAt))
	assertInvariant(t, l)
}

// faultyStore 在 AppendMovement 時注入錯誤
type faultyStore struct {
	usecase.Store
	appendErr error
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(tx usecase.LedgerTx) error) error {
	return s.Store.WithinTx(ctx, func(tx usecase.LedgerTx) error {
		return fn(&faultyTx{LedgerTx: tx, appendErr: s.appendErr})
	})
}

type faultyTx struct {
	usecase.LedgerTx
	appendErr  error
	wroteFirst bool
}

func (t *faultyTx) WriteBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	t.wroteFirst = true
	return t.LedgerTx.WriteBalance(ctx, accountID, balance)
}

func (t *faultyTx) AppendMovement(ctx context.Context, movement *domain.Movement) error {
	if !t.wroteFirst {
		return errors.New("balance must be written before the movement")
	}
	return t.appendErr
}

func TestApplyTransaction_AppendFailureRollsBackBalance(t *testing.T) {
	l := newLedger(t)
	fund(t, usecase.NewBalanceEngine(l), "100.00")

	diskFull := errors.New("disk full")
	e := usecase.NewBalanceEngine(&faultyStore{Store: l, appendErr: diskFull})
	_, err := e.Apply(context.Background(), taxID, dec("40"), domain.TransactionKindWithdrawal)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	balance, err := usecase.NewQueryService(l).GetBalance(context.Background(), taxID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("100.00")))
	assertInvariant(t, l)
}

func TestApplyTransaction_ClosedAccount(t *testing.T) {
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)
	fund(t, e, "10")
	require.NoError(t, l.CloseAccount(context.Background(), taxID))

	_, err := e.Apply(context.Background(), taxID, dec("1"), domain.TransactionKindDeposit)
	require.ErrorIs(t, err, domain.ErrAccountClosed)
	assertInvariant(t, l)
}

func TestApplyTransaction_ReplayAfterCloseReturnsRecordedBalance(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)
	fund(t, e, "20")

	req := domain.TransactionRequest{
		RequestID: uuid.New(),
		TaxID:     taxID,
		Amount:    dec("5"),
		Kind:      domain.TransactionKindWithdrawal,
	}
	first, err := e.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	require.NoError(t, l.CloseAccount(ctx, taxID))

	replay, err := e.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Equal(first))

	req.RequestID = uuid.New()
	_, err = e.ApplyTransaction(ctx, req)
	require.ErrorIs(t, err, domain.ErrAccountClosed)
	assertInvariant(t, l)
}

func TestApplyTransaction_RequestIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)
	fund(t, e, "100")

	req := domain.TransactionRequest{
		RequestID: uuid.New(),
		TaxID:     taxID,
		Amount:    dec("30"),
		Kind:      domain.TransactionKindWithdrawal,
	}
	first, err := e.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.Equal(dec("70")))

	// 期間有其他交易，重送仍回傳當時的餘額且不重複扣款
	fund(t, e, "5")
	replay, err := e.ApplyTransaction(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Equal(dec("70")))

	balance, err := usecase.NewQueryService(l).GetBalance(ctx, taxID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("75")))

	conflict := req
	conflict.Amount = dec("31")
	_, err = e.ApplyTransaction(ctx, conflict)
	require.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assertInvariant(t, l)
}

func TestApplyTransaction_CancelledBeforeStart(t *testing.T) {
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Apply(ctx, taxID, dec("1"), domain.TransactionKindDeposit)
	require.ErrorIs(t, err, context.Canceled)

	movements, err := usecase.NewQueryService(l).ListMovements(context.Background(), taxID)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestApplyTransaction_LockTimeoutIsPersistenceError(t *testing.T) {
	l := newLedger(t)
	e := usecase.NewBalanceEngine(l, usecase.WithTxTimeout(50*time.Millisecond))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.WithinTx(context.Background(), func(tx usecase.LedgerTx) error {
			_, err := tx.LockAndReadAccount(context.Background(), taxID)
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	_, err := e.Apply(context.Background(), taxID, dec("1"), domain.TransactionKindDeposit)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	<-done

	assertInvariant(t, l)
}
