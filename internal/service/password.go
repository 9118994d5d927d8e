package service

import (
	"strings"
	"unicode"
)

const minPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"qwerty123": {}, "qwertyuiop": {}, "11111111": {}, "iloveyou": {}, "abc12345": {},
	"contraseña": {}, "contrasena": {}, "admin123": {}, "levelup123": {}, "letmein1": {},
	"welcome1": {}, "sunshine": {}, "princess": {}, "football": {}, "00000000": {},
}

// validatePassword applies the account password policy.
func validatePassword(password, confirm string) error {
	if password != confirm {
		return fieldError("password_confirm", "passwords do not match")
	}
	if len([]rune(password)) < minPasswordLength {
		return fieldError("password", "password must have at least 8 characters")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return fieldError("password", "password is too common")
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fieldError("password", "password cannot be entirely numeric")
	}
	return nil
}
