package utils

import (
	"fmt"
	"strings"
)

// NormalizeStockCode normalizes a user-input KRX listing code to the six-digit
// form used by DART. It trims whitespace, drops the "A" prefix some brokers
// print (A005930) and left-pads short numeric codes with zeros.
func NormalizeStockCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 7 && code[0] == 'A' {
		code = code[1:]
	}
	if code != "" && len(code) < 6 && isDigits(code) {
		code = strings.Repeat("0", 6-len(code)) + code
	}
	return code
}

// ValidateStockCode reports an error unless code (after normalization) is a
// six-character KRX code. Newer listings use alphanumeric codes such as
// 0088M0, so only the length and the leading digit are checked.
func ValidateStockCode(code string) error {
	n := NormalizeStockCode(code)
	if len(n) != 6 || n[0] < '0' || n[0] > '9' || !isAlnum(n) {
		return fmt.Errorf("invalid stock code %q", code)
	}
	return nil
}

// IsCorpCode reports whether s looks like an eight-digit DART corp code.
func IsCorpCode(s string) bool {
	return len(s) == 8 && isDigits(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
