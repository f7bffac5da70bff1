package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BirthDateLayout 使用者輸入的生日格式 (DD-MM-YYYY)
const BirthDateLayout = "02-01-2006"

var validate = validator.New()

// Person 客戶資料，TaxID 為帳戶的外鍵，建立後不可變更
type Person struct {
	TaxID     string    `validate:"required,numeric"`
	Name      string    `validate:"required,max=255"`
	IDNumber  string    `validate:"max=32"`
	BirthDate time.Time `validate:"required"`
	Email     string    `validate:"omitempty,email,max=255"`
	Phone     string    `validate:"max=32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate 檢查欄位，失敗時回傳包裝 ErrInvalidPerson 的錯誤
func (p *Person) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPerson, err)
	}
	return nil
}

// PersonPatch 部分更新，nil 代表欄位不變更
type PersonPatch struct {
	Name      *string
	IDNumber  *string
	BirthDate *time.Time
	Email     *string
	Phone     *string
}

// IsEmpty 沒有任何欄位需要更新
func (p PersonPatch) IsEmpty() bool {
	return p.Name == nil && p.IDNumber == nil && p.BirthDate == nil && p.Email == nil && p.Phone == nil
}

// ApplyTo 將有值的欄位套用到 person
func (p PersonPatch) ApplyTo(person *Person) {
	if p.Name != nil {
		person.Name = *p.Name
	}
	if p.IDNumber != nil {
		person.IDNumber = *p.IDNumber
	}
	if p.BirthDate != nil {
		person.BirthDate = *p.BirthDate
	}
	if p.Email != nil {
		person.Email = *p.Email
	}
	if p.Phone != nil {
		person.Phone = *p.Phone
	}
}

// ParseBirthDate 解析 DD-MM-YYYY 格式的日期
func ParseBirthDate(s string) (time.Time, error) {
	t, err := time.Parse(BirthDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: birth date must be DD-MM-YYYY", ErrInvalidPerson)
	}
	return t, nil
}
