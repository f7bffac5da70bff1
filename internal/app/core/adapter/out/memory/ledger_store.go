package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// WAL 紀錄類型
const (
	opPerson  = "person"
	opAccount = "account"
	opCommit  = "commit"
)

// walRecord 一筆 WAL 紀錄，commit 紀錄包含整個交易的所有寫入
type walRecord struct {
	Op        string                    `json:"op"`
	Person    *domain.Person            `json:"person,omitempty"`
	Account   *domain.Account           `json:"account,omitempty"`
	Balances  map[int64]decimal.Decimal `json:"balances,omitempty"`
	Movements []domain.Movement         `json:"movements,omitempty"`
}

// accountRow 單一帳戶的狀態與列鎖
type accountRow struct {
	id int64
	// lock 容量為 1 的 channel 當作列鎖，取得時可以被 context 中斷
	lock      chan struct{}
	account   domain.Account
	movements []domain.Movement
}

func newAccountRow(account domain.Account) *accountRow {
	return &accountRow{
		id:      account.ID,
		lock:    make(chan struct{}, 1),
		account: account,
	}
}

// MutexLedger 是一個使用 Mutex 與每帳戶列鎖實現的帳本
//
// 結構:
//
//	mu: 保護所有 map 與帳戶欄位，只在讀寫瞬間持有
//	accounts: 以 TaxID 為 key 的帳戶
//	requests: 已處理過的 request id
//	wal: Write-Ahead Log 實例 (可為 nil)
type MutexLedger struct {
	mu             sync.RWMutex
	persons        map[string]*domain.Person
	accounts       map[string]*accountRow
	byID           map[int64]*accountRow
	requests       map[uuid.UUID]domain.Movement
	nextAccountID  int64
	nextMovementID int64
	lastStamp      time.Time
	// Write-Ahead Logging
	wal *wal.WAL
	now func() time.Time
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 代表純記憶體
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		persons:  make(map[string]*domain.Person),
		accounts: make(map[string]*accountRow),
		byID:     make(map[int64]*accountRow),
		requests: make(map[uuid.UUID]domain.Movement),
		wal:      w,
		now:      time.Now,
	}
	if w != nil {
		if err := ledger.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return fmt.Errorf("decode wal record: %w", err)
		}
		m.applyRecord(&rec)
		return nil
	})
}

// applyRecord 將一筆紀錄套用到記憶體狀態，呼叫端需持有寫鎖或處於恢復階段
func (m *MutexLedger) applyRecord(rec *walRecord) {
	switch rec.Op {
	case opPerson:
		p := *rec.Person
		m.persons[p.TaxID] = &p
		m.touch(p.UpdatedAt)
	case opAccount:
		acc := *rec.Account
		if row, ok := m.byID[acc.ID]; ok {
			row.account = acc
		} else {
			row := newAccountRow(acc)
			m.accounts[acc.TaxID] = row
			m.byID[acc.ID] = row
		}
		if acc.ID > m.nextAccountID {
			m.nextAccountID = acc.ID
		}
		m.touch(acc.CreatedAt)
		if acc.ClosedAt != nil {
			m.touch(*acc.ClosedAt)
		}
	case opCommit:
		for id, balance := range rec.Balances {
			if row, ok := m.byID[id]; ok {
				row.account.Balance = balance
			}
		}
		for _, mv := range rec.Movements {
			if row, ok := m.byID[mv.AccountID]; ok {
				row.movements = append(row.movements, mv)
			}
			if mv.RequestID != uuid.Nil {
				m.requests[mv.RequestID] = mv
			}
			if mv.ID > m.nextMovementID {
				m.nextMovementID = mv.ID
			}
			m.touch(mv.CreatedAt)
		}
	}
}

func (m *MutexLedger) touch(t time.Time) {
	if t.After(m.lastStamp) {
		m.lastStamp = t
	}
}

// stamp 產生嚴格遞增的時間戳記，呼叫端需持有寫鎖
func (m *MutexLedger) stamp() time.Time {
	t := m.now().UTC()
	if !t.After(m.lastStamp) {
		t = m.lastStamp.Add(time.Microsecond)
	}
	m.lastStamp = t
	return t
}

// persist 先寫 WAL 再更新記憶體，呼叫端需持有寫鎖
func (m *MutexLedger) persist(rec *walRecord) error {
	if m.wal != nil {
		if err := m.wal.Write(rec); err != nil {
			return fmt.Errorf("wal write: %w", err)
		}
	}
	m.applyRecord(rec)
	return nil
}

// WithinTx 執行一個記憶體交易：寫入先暫存，fn 成功後一次套用
//
// 參數:
//
//	ctx: 上下文，逾時會中斷等鎖並讓交易 rollback
//	fn: 交易內容
//
// 回傳:
//
//	error: fn 的錯誤、等鎖/逾時錯誤或 WAL 寫入錯誤
func (m *MutexLedger) WithinTx(ctx context.Context, fn func(tx usecase.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		ledger:   m,
		held:     make(map[int64]*accountRow),
		balances: make(map[int64]decimal.Decimal),
	}
	// 不論 commit、rollback 或 panic 都要釋放列鎖
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// ReadAccount 取得帳戶快照
func (m *MutexLedger) ReadAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.accounts[taxID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc := row.account
	return &acc, nil
}

// ReadMovements 回傳帳戶異動的複本
func (m *MutexLedger) ReadMovements(ctx context.Context, accountID int64) ([]domain.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.byID[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := make([]domain.Movement, len(row.movements))
	copy(out, row.movements)
	return out, nil
}

// CreatePerson 新增客戶資料
func (m *MutexLedger) CreatePerson(ctx context.Context, person *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.persons[person.TaxID]; ok {
		return domain.ErrPersonAlreadyExists
	}
	p := *person
	p.CreatedAt = m.stamp()
	p.UpdatedAt = p.CreatedAt
	if err := m.persist(&walRecord{Op: opPerson, Person: &p}); err != nil {
		return err
	}
	person.CreatedAt, person.UpdatedAt = p.CreatedAt, p.UpdatedAt
	return nil
}

// GetPerson 取得客戶資料
func (m *MutexLedger) GetPerson(ctx context.Context, taxID string) (*domain.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[taxID]
	if !ok {
		return nil, domain.ErrPersonNotFound
	}
	cp := *p
	return &cp, nil
}

// UpdatePerson 持有寫鎖讀取、修改並寫回客戶資料
func (m *MutexLedger) UpdatePerson(ctx context.Context, taxID string, apply func(person *domain.Person) error) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.persons[taxID]
	if !ok {
		return nil, domain.ErrPersonNotFound
	}
	p := *current
	if err := apply(&p); err != nil {
		return nil, err
	}
	p.TaxID = current.TaxID
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = m.stamp()
	if err := m.persist(&walRecord{Op: opPerson, Person: &p}); err != nil {
		return nil, err
	}
	out := p
	return &out, nil
}

// CreateAccount 開戶，已關閉的帳戶重新啟用
func (m *MutexLedger) CreateAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.persons[taxID]; !ok {
		return nil, domain.ErrPersonNotFound
	}

	var acc domain.Account
	if row, ok := m.accounts[taxID]; ok {
		if !row.account.Closed() {
			return nil, domain.ErrAccountAlreadyExists
		}
		acc = row.account
		acc.ClosedAt = nil
	} else {
		acc = *domain.NewAccount(m.nextAccountID+1, taxID)
		acc.CreatedAt = m.stamp()
	}
	if err := m.persist(&walRecord{Op: opAccount, Account: &acc}); err != nil {
		return nil, err
	}
	return &acc, nil
}

// CloseAccount 軟關閉帳戶，需要先取得列鎖避免與進行中的交易交錯
func (m *MutexLedger) CloseAccount(ctx context.Context, taxID string) error {
	m.mu.RLock()
	row, ok := m.accounts[taxID]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrAccountNotFound
	}

	select {
	case row.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-row.lock }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if row.account.Closed() {
		return domain.ErrAccountClosed
	}
	acc := row.account
	closedAt := m.stamp()
	acc.ClosedAt = &closedAt
	return m.persist(&walRecord{Op: opAccount, Account: &acc})
}

// memTx 記憶體交易，持有的列鎖在 release 時釋放
type memTx struct {
	ledger    *MutexLedger
	held      map[int64]*accountRow
	balances  map[int64]decimal.Decimal
	movements []domain.Movement
}

// LockAndReadAccount 取得列鎖並讀取帳戶 (包含本交易暫存的餘額)
func (t *memTx) LockAndReadAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	t.ledger.mu.RLock()
	row, ok := t.ledger.accounts[taxID]
	t.ledger.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	if _, held := t.held[row.id]; !held {
		select {
		case row.lock <- struct{}{}:
			t.held[row.id] = row
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.ledger.mu.RLock()
	acc := row.account
	t.ledger.mu.RUnlock()
	if staged, ok := t.balances[row.id]; ok {
		acc.Balance = staged
	}
	return &acc, nil
}

func (t *memTx) WriteBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	if _, held := t.held[accountID]; !held {
		return fmt.Errorf("account %d is not locked by this transaction", accountID)
	}
	t.balances[accountID] = balance
	return nil
}

func (t *memTx) AppendMovement(ctx context.Context, movement *domain.Movement) error {
	if _, held := t.held[movement.AccountID]; !held {
		return fmt.Errorf("account %d is not locked by this transaction", movement.AccountID)
	}
	t.ledger.mu.Lock()
	t.ledger.nextMovementID++
	movement.ID = t.ledger.nextMovementID
	movement.CreatedAt = t.ledger.stamp()
	t.ledger.mu.Unlock()

	t.movements = append(t.movements, *movement)
	return nil
}

func (t *memTx) FindMovementByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Movement, error) {
	for i := range t.movements {
		if t.movements[i].RequestID == requestID {
			mv := t.movements[i]
			return &mv, nil
		}
	}
	t.ledger.mu.RLock()
	defer t.ledger.mu.RUnlock()
	if mv, ok := t.ledger.requests[requestID]; ok {
		return &mv, nil
	}
	return nil, nil
}

// commit 寫 WAL 後套用暫存的寫入
func (t *memTx) commit() error {
	if len(t.balances) == 0 && len(t.movements) == 0 {
		return nil
	}
	t.ledger.mu.Lock()
	defer t.ledger.mu.Unlock()
	return t.ledger.persist(&walRecord{
		Op:        opCommit,
		Balances:  t.balances,
		Movements: t.movements,
	})
}

func (t *memTx) release() {
	for id, row := range t.held {
		<-row.lock
		delete(t.held, id)
	}
}

var (
	_ usecase.LedgerStore = (*MutexLedger)(nil)
	_ usecase.Directory   = (*MutexLedger)(nil)
	_ usecase.LedgerTx    = (*memTx)(nil)
)
