// Package qr handles the textual table identifier TABLE_<n> and renders it
// as printable images.
package qr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	Prefix         = "TABLE_"
	MinTableNumber = 1
	MaxTableNumber = 999
)

var (
	ErrInvalidFormat = errors.New("invalid QR code format, expected TABLE_<number>")
	ErrOutOfRange    = fmt.Errorf("table number must be between %d and %d", MinTableNumber, MaxTableNumber)

	pattern = regexp.MustCompile(`^TABLE_(\d+)$`)
)

// Format -> canonical code for a table number
func Format(tableNumber int) string {
	return Prefix + strconv.Itoa(tableNumber)
}

// Normalize trims and upper-cases a code without validating it.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Parse validates a code (case-insensitive) and returns its table number
// together with the canonical uppercase form.
func Parse(code string) (int, string, error) {
	m := pattern.FindStringSubmatch(Normalize(code))
	if m == nil {
		return 0, "", ErrInvalidFormat
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", ErrInvalidFormat
	}
	if !ValidTableNumber(n) {
		return 0, "", ErrOutOfRange
	}
	return n, Format(n), nil
}

func ValidTableNumber(n int) bool {
	return n >= MinTableNumber && n <= MaxTableNumber
}

// ScanURL -> the URL a printed code should open
func ScanURL(frontendURL, code string) string {
	return strings.TrimRight(frontendURL, "/") + "/?table=" + code
}
