// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"unicode"
)

// IsValidOrderNumber проверяет корректность номера заказа по алгоритму Луна.
func IsValidOrderNumber(number string) bool {
	if number == "" {
		return false
	}

	sum, ok := luhnSum(number, false)
	if !ok {
		return false
	}

	return sum%10 == 0
}

// AppendCheckDigit дописывает к цифровой строке контрольную цифру по алгоритму Луна.
func AppendCheckDigit(digits string) (string, error) {
	if digits == "" {
		return "", fmt.Errorf("empty order number base")
	}

	// Для будущей контрольной цифры удваивается крайняя правая цифра основы.
	sum, ok := luhnSum(digits, true)
	if !ok {
		return "", fmt.Errorf("order number base %q contains non-digit characters", digits)
	}

	check := (10 - sum%10) % 10
	return digits + string(rune('0'+check)), nil
}

func luhnSum(number string, double bool) (int, bool) {
	sum := 0

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return 0, false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, true
}
