package rut

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat indicates the value does not look like a RUT.
	ErrInvalidFormat = errors.New("invalid rut format")
	// ErrInvalidCheckDigit indicates the verifier digit does not match the body.
	ErrInvalidCheckDigit = errors.New("invalid rut check digit")
)

var (
	rutPattern = regexp.MustCompile(`^\s*\d{1,2}\.?\d{3}\.?\d{3}-?[\dkK]\s*$`)
	stripChars = regexp.MustCompile(`[^0-9kK]`)
)

// CheckDigit computes the modulo 11 verifier for the numeric body.
func CheckDigit(body int) string {
	factor := 2
	total := 0
	for body > 0 {
		total += (body % 10) * factor
		body /= 10
		if factor == 7 {
			factor = 2
		} else {
			factor++
		}
	}

	switch dv := 11 - (total % 11); dv {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(dv)
	}
}

// Validate checks the shape and verifier digit of a RUT.
func Validate(raw string) error {
	if !rutPattern.MatchString(raw) {
		return ErrInvalidFormat
	}

	body, dv := split(raw)
	number, err := strconv.Atoi(body)
	if err != nil || body == "" {
		return ErrInvalidFormat
	}

	if CheckDigit(number) != dv {
		return ErrInvalidCheckDigit
	}
	return nil
}

// Format renders the canonical "12.345.678-5" form. It does not validate.
func Format(raw string) string {
	body, dv := split(raw)
	if body == "" {
		return dv
	}

	groups := make([]string, 0, len(body)/3+1)
	for end := len(body); end > 0; end -= 3 {
		start := end - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{body[start:end]}, groups...)
	}

	return strings.Join(groups, ".") + "-" + dv
}

// Normalize validates the value and returns its canonical form.
func Normalize(raw string) (string, error) {
	if err := Validate(raw); err != nil {
		return "", err
	}
	return Format(raw), nil
}

// FromNumber builds a formatted RUT for the given body, computing its verifier.
func FromNumber(body int) string {
	return Format(strconv.Itoa(body) + CheckDigit(body))
}

func split(raw string) (string, string) {
	cleaned := strings.ToUpper(stripChars.ReplaceAllString(raw, ""))
	if cleaned == "" {
		return "", ""
	}
	return cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1:]
}
