package usecase

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Store 同時提供帳務與客戶資料的儲存層
type Store interface {
	LedgerStore
	Directory
}

// CoreUseCase 是核心業務邏輯層，給 driving adapter 使用
type CoreUseCase struct {
	engine   *BalanceEngine
	query    *QueryService
	registry *Registry
}

func NewCoreUseCase(store Store, logger *slog.Logger, opts ...EngineOption) *CoreUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]EngineOption{WithLogger(logger)}, opts...)
	return &CoreUseCase{
		engine:   NewBalanceEngine(store, opts...),
		query:    NewQueryService(store),
		registry: NewRegistry(store, logger),
	}
}

// ApplyTransaction 處理交易
func (c *CoreUseCase) ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (decimal.Decimal, error) {
	return c.engine.ApplyTransaction(ctx, req)
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, taxID string) (decimal.Decimal, error) {
	return c.query.GetBalance(ctx, taxID)
}

// GetAccount 取得帳戶，已關閉的帳戶也查得到
func (c *CoreUseCase) GetAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	return c.query.GetAccount(ctx, taxID)
}

// ListMovements 列出帳戶異動
func (c *CoreUseCase) ListMovements(ctx context.Context, taxID string) ([]domain.Movement, error) {
	return c.query.ListMovements(ctx, taxID)
}

func (c *CoreUseCase) CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error) {
	return c.registry.CreatePerson(ctx, person)
}

func (c *CoreUseCase) GetPerson(ctx context.Context, taxID string) (*domain.Person, error) {
	return c.registry.GetPerson(ctx, taxID)
}

func (c *CoreUseCase) UpdatePerson(ctx context.Context, taxID string, patch domain.PersonPatch) (*domain.Person, error) {
	return c.registry.UpdatePerson(ctx, taxID, patch)
}

func (c *CoreUseCase) OpenAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	return c.registry.OpenAccount(ctx, taxID)
}

func (c *CoreUseCase) CloseAccount(ctx context.Context, taxID string) error {
	return c.registry.CloseAccount(ctx, taxID)
}
