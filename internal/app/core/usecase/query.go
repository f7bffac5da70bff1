package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// QueryService 唯讀的餘額與異動查詢
type QueryService struct {
	store LedgerStore
}

func NewQueryService(store LedgerStore) *QueryService {
	return &QueryService{store: store}
}

// GetBalance 取得帳戶餘額
func (q *QueryService) GetBalance(ctx context.Context, taxID string) (decimal.Decimal, error) {
	account, err := q.account(ctx, taxID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetAccount 取得帳戶 (包含已關閉的帳戶)
func (q *QueryService) GetAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	return q.account(ctx, taxID)
}

// ListMovements 依時間先後列出帳戶的異動，沒有異動時回傳空 slice
func (q *QueryService) ListMovements(ctx context.Context, taxID string) ([]domain.Movement, error) {
	account, err := q.account(ctx, taxID)
	if err != nil {
		return nil, err
	}
	movements, err := q.store.ReadMovements(ctx, account.ID)
	if err != nil {
		return nil, domain.WrapPersistence(err)
	}
	if movements == nil {
		movements = []domain.Movement{}
	}
	return movements, nil
}

func (q *QueryService) account(ctx context.Context, taxID string) (*domain.Account, error) {
	key := domain.NormalizeTaxID(taxID)
	if key == "" {
		return nil, domain.ErrAccountNotFound
	}
	account, err := q.store.ReadAccount(ctx, key)
	if err != nil {
		return nil, domain.WrapPersistence(err)
	}
	return account, nil
}
