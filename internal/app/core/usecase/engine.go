package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// DefaultTxTimeout 交易在儲存層的最長執行時間
const DefaultTxTimeout = 5 * time.Second

// BalanceEngine 唯一可以變更餘額與新增異動紀錄的元件
// 本身無狀態，可被任意數量的呼叫端並發使用
type BalanceEngine struct {
	store     LedgerStore
	logger    *slog.Logger
	txTimeout time.Duration
}

// EngineOption 定義 BalanceEngine 的配置選項函數
type EngineOption func(*BalanceEngine)

// WithTxTimeout 設定交易逾時，逾時後 rollback 並回傳 ErrPersistence
func WithTxTimeout(d time.Duration) EngineOption {
	return func(e *BalanceEngine) {
		if d > 0 {
			e.txTimeout = d
		}
	}
}

// WithLogger 設定 logger
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *BalanceEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewBalanceEngine(store LedgerStore, opts ...EngineOption) *BalanceEngine {
	e := &BalanceEngine{
		store:     store,
		logger:    slog.Default(),
		txTimeout: DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply 不帶 request id 的 ApplyTransaction
func (e *BalanceEngine) Apply(ctx context.Context, taxID string, amount decimal.Decimal, kind domain.TransactionKind) (decimal.Decimal, error) {
	return e.ApplyTransaction(ctx, domain.TransactionRequest{
		TaxID:  taxID,
		Amount: amount,
		Kind:   kind,
	})
}

// ApplyTransaction 驗證並套用一筆存款或提款，回傳新餘額
//
// 參數:
//
//	ctx: 上下文，只在交易開始前有效；交易開始後由 txTimeout 控制
//	req: 交易請求
//
// 回傳:
//
//	decimal.Decimal: 交易後餘額
//	error: domain 定義的錯誤，發生錯誤時儲存層狀態不變
func (e *BalanceEngine) ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (decimal.Decimal, error) {
	// 1. 先驗證，不碰儲存層
	if err := req.Validate(); err != nil {
		return decimal.Zero, err
	}
	req.TaxID = domain.NormalizeTaxID(req.TaxID)
	if req.TaxID == "" {
		return decimal.Zero, domain.ErrAccountNotFound
	}

	// 2. 呼叫端在交易開始前放棄
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	// 3. 交易開始後不受外部取消影響，只受 txTimeout 限制，避免鎖被無限期持有
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.txTimeout)
	defer cancel()

	var newBalance decimal.Decimal
	err := e.store.WithinTx(txCtx, func(tx LedgerTx) error {
		account, err := tx.LockAndReadAccount(txCtx, req.TaxID)
		if err != nil {
			return err
		}
		// 冪等檢查放在取得鎖之後，同一帳戶的重送會被序列化；
		// 已寫入的請求即使帳戶之後被關閉，重送仍回傳當時的餘額
		if req.RequestID != uuid.Nil {
			done, err := tx.FindMovementByRequest(txCtx, req.RequestID)
			if err != nil {
				return err
			}
			if done != nil {
				if !done.Matches(account.ID, &req) {
					return domain.ErrDuplicateRequest
				}
				newBalance = done.BalanceAfter
				return nil
			}
		}
		if account.Closed() {
			return domain.ErrAccountClosed
		}

		if err := account.Apply(req.Kind, req.Amount); err != nil {
			return err
		}
		if err := tx.WriteBalance(txCtx, account.ID, account.Balance); err != nil {
			return err
		}
		movement := &domain.Movement{
			AccountID:    account.ID,
			TaxID:        account.TaxID,
			Kind:         req.Kind,
			Amount:       req.Amount,
			BalanceAfter: account.Balance,
			RequestID:    req.RequestID,
		}
		if err := tx.AppendMovement(txCtx, movement); err != nil {
			return err
		}
		newBalance = account.Balance
		return nil
	})
	if err != nil {
		err = domain.WrapPersistence(err)
		if domain.KindOf(err) == domain.KindPersistence {
			e.logger.Error("transaction failed", "tax_id", req.TaxID, "kind", req.Kind, "amount", req.Amount, "error", err)
		} else {
			e.logger.Warn("transaction rejected", "tax_id", req.TaxID, "kind", req.Kind, "amount", req.Amount, "error", err)
		}
		return decimal.Zero, err
	}

	e.logger.Debug("transaction committed", "tax_id", req.TaxID, "kind", req.Kind, "amount", req.Amount, "balance", newBalance)
	return newBalance, nil
}
