package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 錯誤分類，讓呼叫端能以程式判斷而非比對字串
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindAccountNotFound
	KindInsufficientFunds
	KindInvalidTransactionKind
	KindInvalidAmount
	KindPersistence
	KindAccountClosed
	KindAccountAlreadyExists
	KindPersonNotFound
	KindPersonAlreadyExists
	KindInvalidPerson
	KindDuplicateRequest
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                "Unknown",
	KindAccountNotFound:        "AccountNotFound",
	KindInsufficientFunds:      "InsufficientFunds",
	KindInvalidTransactionKind: "InvalidTransactionKind",
	KindInvalidAmount:          "InvalidAmount",
	KindPersistence:            "PersistenceError",
	KindAccountClosed:          "AccountClosed",
	KindAccountAlreadyExists:   "AccountAlreadyExists",
	KindPersonNotFound:         "PersonNotFound",
	KindPersonAlreadyExists:    "PersonAlreadyExists",
	KindInvalidPerson:          "InvalidPerson",
	KindDuplicateRequest:       "DuplicateRequest",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// ParseErrorKind 由名稱還原 ErrorKind，未知名稱回傳 KindUnknown
func ParseErrorKind(name string) ErrorKind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransactionKind 交易類型錯誤
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")

	// ErrInvalidAmount 金額必須為正數
	ErrInvalidAmount = errors.New("amount must be a positive decimal")

	// ErrPersistence 儲存層失敗 (連線、約束、逾時)，狀態保證未變更
	ErrPersistence = errors.New("persistence failure")

	// ErrAccountClosed 帳戶已關閉
	ErrAccountClosed = errors.New("account closed")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrPersonNotFound 找不到客戶資料
	ErrPersonNotFound = errors.New("person not found")

	// ErrPersonAlreadyExists 客戶資料已存在
	ErrPersonAlreadyExists = errors.New("person already exists")

	// ErrInvalidPerson 客戶資料驗證失敗
	ErrInvalidPerson = errors.New("invalid person data")

	// ErrDuplicateRequest 同一個 request id 被用在不同的交易
	ErrDuplicateRequest = errors.New("request id already used by a different transaction")
)

// 順序固定：Persistence 放最後，包裝過的儲存層錯誤仍可能帶有其他 sentinel
var sentinels = []struct {
	err  error
	kind ErrorKind
}{
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInvalidTransactionKind, KindInvalidTransactionKind},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrAccountClosed, KindAccountClosed},
	{ErrAccountAlreadyExists, KindAccountAlreadyExists},
	{ErrPersonNotFound, KindPersonNotFound},
	{ErrPersonAlreadyExists, KindPersonAlreadyExists},
	{ErrInvalidPerson, KindInvalidPerson},
	{ErrDuplicateRequest, KindDuplicateRequest},
	{ErrPersistence, KindPersistence},
}

// KindOf 回傳錯誤所屬的分類；nil 或無法辨識的錯誤回傳 KindUnknown
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}

// ErrorFor 回傳分類對應的 sentinel error
func ErrorFor(kind ErrorKind) error {
	for _, s := range sentinels {
		if s.kind == kind {
			return s.err
		}
	}
	return nil
}

// WrapPersistence 將非領域錯誤包裝為 ErrPersistence，領域錯誤原樣回傳
func WrapPersistence(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
