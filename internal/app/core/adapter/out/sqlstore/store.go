package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// Store 以 GORM 實作的帳務儲存層 (MySQL / SQLite)
type Store struct {
	client *database.Client
}

func NewStore(client *database.Client) *Store {
	return &Store{
		client: client,
	}
}

// Migrate 建立資料表
func (s *Store) Migrate() error {
	return s.client.AutoMigrate(Models()...)
}

// WithinTx 以資料庫交易執行 fn，fn 回傳錯誤或 panic 時 rollback
func (s *Store) WithinTx(ctx context.Context, fn func(tx usecase.LedgerTx) error) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx})
	})
}

// ReadAccount 不加鎖讀取帳戶
func (s *Store) ReadAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("tax_id = ?", taxID).First(&row).Error
	if err != nil {
		return nil, mapError(err, domain.ErrAccountNotFound)
	}
	return row.toDomain(), nil
}

// ReadMovements 依寫入順序回傳帳戶異動
func (s *Store) ReadMovements(ctx context.Context, accountID int64) ([]domain.Movement, error) {
	var rows []sqlMovement
	err := s.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	movements := make([]domain.Movement, 0, len(rows))
	for i := range rows {
		movements = append(movements, rows[i].toDomain())
	}
	return movements, nil
}

// ledgerTx 綁定在單一資料庫交易上
type ledgerTx struct {
	db *gorm.DB
}

// LockAndReadAccount 以 SELECT ... FOR UPDATE 取得悲觀鎖 (SQLite 不支援列鎖，由單一連線序列化)
func (t *ledgerTx) LockAndReadAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	var row sqlAccount
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tax_id = ?", taxID).
		First(&row).Error
	if err != nil {
		return nil, mapError(err, domain.ErrAccountNotFound)
	}
	return row.toDomain(), nil
}

func (t *ledgerTx) WriteBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	res := t.db.WithContext(ctx).
		Model(&sqlAccount{}).
		Where("id = ?", accountID).
		Update("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// AppendMovement 新增異動，CreatedAt 保證晚於同帳戶上一筆 (呼叫端已持有列鎖)
func (t *ledgerTx) AppendMovement(ctx context.Context, movement *domain.Movement) error {
	createdAt, err := t.nextStamp(ctx, movement.AccountID)
	if err != nil {
		return err
	}
	row := sqlMovement{
		AccountID:    movement.AccountID,
		TaxID:        movement.TaxID,
		Kind:         string(movement.Kind),
		Amount:       movement.Amount,
		BalanceAfter: movement.BalanceAfter,
		RequestID:    requestIDBytes(movement.RequestID),
		CreatedAt:    createdAt,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	movement.ID = row.ID
	movement.CreatedAt = row.CreatedAt
	return nil
}

// nextStamp 回傳微秒精度的時間，同一微秒內的第二筆往後推一微秒
func (t *ledgerTx) nextStamp(ctx context.Context, accountID int64) (time.Time, error) {
	now := t.db.NowFunc().UTC().Truncate(time.Microsecond)
	var last []time.Time
	err := t.db.WithContext(ctx).
		Model(&sqlMovement{}).
		Where("account_id = ?", accountID).
		Order("id DESC").
		Limit(1).
		Pluck("created_at", &last).Error
	if err != nil {
		return time.Time{}, err
	}
	if len(last) > 0 && !now.After(last[0]) {
		now = last[0].UTC().Add(time.Microsecond)
	}
	return now, nil
}

func (t *ledgerTx) FindMovementByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Movement, error) {
	var rows []sqlMovement
	err := t.db.WithContext(ctx).
		Where("request_id = ?", requestID[:]).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	movement := rows[0].toDomain()
	return &movement, nil
}

// CreatePerson 新增客戶資料
func (s *Store) CreatePerson(ctx context.Context, person *domain.Person) error {
	row := sqlPerson{
		TaxID:     person.TaxID,
		Name:      person.Name,
		IDNumber:  person.IDNumber,
		BirthDate: person.BirthDate,
		Email:     person.Email,
		Phone:     person.Phone,
	}
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&sqlPerson{}).Where("tax_id = ?", person.TaxID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrPersonAlreadyExists
		}
		if err := tx.Create(&row).Error; err != nil {
			return mapError(err, domain.ErrPersonNotFound, domain.ErrPersonAlreadyExists)
		}
		person.CreatedAt = row.CreatedAt
		person.UpdatedAt = row.UpdatedAt
		return nil
	})
}

// GetPerson 取得客戶資料
func (s *Store) GetPerson(ctx context.Context, taxID string) (*domain.Person, error) {
	var row sqlPerson
	if err := s.client.DB().WithContext(ctx).Where("tax_id = ?", taxID).First(&row).Error; err != nil {
		return nil, mapError(err, domain.ErrPersonNotFound)
	}
	return row.toDomain(), nil
}

// UpdatePerson 以 SELECT ... FOR UPDATE 鎖定客戶列後修改，TaxID 不會被變更
func (s *Store) UpdatePerson(ctx context.Context, taxID string, apply func(person *domain.Person) error) (*domain.Person, error) {
	var updated *domain.Person
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlPerson
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tax_id = ?", taxID).
			First(&row).Error
		if err != nil {
			return mapError(err, domain.ErrPersonNotFound)
		}
		person := row.toDomain()
		if err := apply(person); err != nil {
			return err
		}
		now := tx.NowFunc()
		err = tx.Model(&row).Updates(map[string]any{
			"name":       person.Name,
			"id_number":  person.IDNumber,
			"birth_date": person.BirthDate,
			"email":      person.Email,
			"phone":      person.Phone,
			"updated_at": now,
		}).Error
		if err != nil {
			return err
		}
		person.TaxID = row.TaxID
		person.UpdatedAt = now
		updated = person
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreateAccount 開戶；已關閉的帳戶重新啟用並保留原餘額與異動
func (s *Store) CreateAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	var account *domain.Account
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var persons int64
		if err := tx.Model(&sqlPerson{}).Where("tax_id = ?", taxID).Count(&persons).Error; err != nil {
			return err
		}
		if persons == 0 {
			return domain.ErrPersonNotFound
		}

		var rows []sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tax_id = ?", taxID).
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			row := rows[0]
			if row.ClosedAt == nil {
				return domain.ErrAccountAlreadyExists
			}
			if err := tx.Model(&row).Update("closed_at", nil).Error; err != nil {
				return err
			}
			row.ClosedAt = nil
			account = row.toDomain()
			return nil
		}

		row := sqlAccount{TaxID: taxID, Balance: decimal.Zero}
		if err := tx.Create(&row).Error; err != nil {
			return mapError(err, domain.ErrAccountNotFound, domain.ErrAccountAlreadyExists)
		}
		account = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CloseAccount 軟關閉帳戶，不刪除任何異動紀錄
func (s *Store) CloseAccount(ctx context.Context, taxID string) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tax_id = ?", taxID).
			First(&row).Error
		if err != nil {
			return mapError(err, domain.ErrAccountNotFound)
		}
		if row.ClosedAt != nil {
			return domain.ErrAccountClosed
		}
		return tx.Model(&row).Update("closed_at", time.Now().UTC()).Error
	})
}

// mapError 將 GORM 錯誤轉成 domain 錯誤，其他錯誤原樣回傳由上層包裝成 ErrPersistence
func mapError(err error, notFound error, duplicated ...error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey) && len(duplicated) > 0:
		return duplicated[0]
	}
	return err
}

var (
	_ usecase.LedgerStore = (*Store)(nil)
	_ usecase.Directory   = (*Store)(nil)
	_ usecase.LedgerTx    = (*ledgerTx)(nil)
)
