package usecase

import (
	"context"
	"log/slog"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Registry 客戶資料與帳戶開關戶
type Registry struct {
	dir    Directory
	logger *slog.Logger
}

func NewRegistry(dir Directory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{dir: dir, logger: logger}
}

// CreatePerson 建立客戶資料
func (r *Registry) CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error) {
	person.TaxID = domain.NormalizeTaxID(person.TaxID)
	if err := person.Validate(); err != nil {
		return nil, err
	}
	if err := r.dir.CreatePerson(ctx, &person); err != nil {
		return nil, domain.WrapPersistence(err)
	}
	r.logger.Info("person created", "tax_id", person.TaxID)
	return &person, nil
}

// GetPerson 取得客戶資料
func (r *Registry) GetPerson(ctx context.Context, taxID string) (*domain.Person, error) {
	key := domain.NormalizeTaxID(taxID)
	if key == "" {
		return nil, domain.ErrPersonNotFound
	}
	person, err := r.dir.GetPerson(ctx, key)
	if err != nil {
		return nil, domain.WrapPersistence(err)
	}
	return person, nil
}

// UpdatePerson 只更新 patch 中有值的欄位，空 patch 直接回傳目前資料
func (r *Registry) UpdatePerson(ctx context.Context, taxID string, patch domain.PersonPatch) (*domain.Person, error) {
	if patch.IsEmpty() {
		return r.GetPerson(ctx, taxID)
	}
	key := domain.NormalizeTaxID(taxID)
	if key == "" {
		return nil, domain.ErrPersonNotFound
	}
	person, err := r.dir.UpdatePerson(ctx, key, func(p *domain.Person) error {
		patch.ApplyTo(p)
		return p.Validate()
	})
	if err != nil {
		return nil, domain.WrapPersistence(err)
	}
	r.logger.Info("person updated", "tax_id", person.TaxID)
	return person, nil
}

// OpenAccount 為已存在的客戶開立帳戶
func (r *Registry) OpenAccount(ctx context.Context, taxID string) (*domain.Account, error) {
	key := domain.NormalizeTaxID(taxID)
	if key == "" {
		return nil, domain.ErrPersonNotFound
	}
	account, err := r.dir.CreateAccount(ctx, key)
	if err != nil {
		return nil, domain.WrapPersistence(err)
	}
	r.logger.Info("account opened", "tax_id", key, "account_id", account.ID)
	return account, nil
}

// CloseAccount 關閉帳戶，異動紀錄永久保留
func (r *Registry) CloseAccount(ctx context.Context, taxID string) error {
	key := domain.NormalizeTaxID(taxID)
	if key == "" {
		return domain.ErrAccountNotFound
	}
	if err := r.dir.CloseAccount(ctx, key); err != nil {
		return domain.WrapPersistence(err)
	}
	r.logger.Info("account closed", "tax_id", key)
	return nil
}
