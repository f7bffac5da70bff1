package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// LedgerStore 是帳務儲存層的介面
type LedgerStore interface {
	// WithinTx 在一個交易中執行 fn，fn 回傳 nil 時 commit，否則 rollback
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// ReadAccount 不加鎖讀取帳戶 (查詢用)
	ReadAccount(ctx context.Context, taxID string) (*domain.Account, error)
	// ReadMovements 依時間先後回傳帳戶的所有異動
	ReadMovements(ctx context.Context, accountID int64) ([]domain.Movement, error)
}

// LedgerTx 交易中可用的操作，鎖會持有到交易結束
type LedgerTx interface {
	// LockAndReadAccount 鎖定帳戶並讀取，帳戶不存在回傳 domain.ErrAccountNotFound
	LockAndReadAccount(ctx context.Context, taxID string) (*domain.Account, error)
	// WriteBalance 更新已鎖定帳戶的餘額
	WriteBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	// AppendMovement 新增異動紀錄，由儲存層填入 ID 與 CreatedAt
	AppendMovement(ctx context.Context, movement *domain.Movement) error
	// FindMovementByRequest 以 request id 查詢異動，沒有時回傳 nil, nil
	FindMovementByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Movement, error)
}

// Directory 客戶與帳戶生命週期的儲存介面
type Directory interface {
	CreatePerson(ctx context.Context, person *domain.Person) error
	GetPerson(ctx context.Context, taxID string) (*domain.Person, error)
	// UpdatePerson 在同一個鎖/交易內讀取客戶、交給 apply 修改後寫回 (TaxID 不變)
	// apply 回傳錯誤時不寫入
	UpdatePerson(ctx context.Context, taxID string, apply func(person *domain.Person) error) (*domain.Person, error)
	// CreateAccount 為客戶開立餘額為零的帳戶，已關閉的帳戶會重新啟用
	CreateAccount(ctx context.Context, taxID string) (*domain.Account, error)
	// CloseAccount 軟關閉帳戶，保留所有異動紀錄
	CloseAccount(ctx context.Context, taxID string) error
}
