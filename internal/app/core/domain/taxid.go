package domain

import "strings"

// NormalizeTaxID 移除所有非數字字元，作為帳戶查詢的 key
// 不檢查長度與檢查碼
func NormalizeTaxID(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}
