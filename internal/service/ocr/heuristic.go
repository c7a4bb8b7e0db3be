package ocr

import (
	"strings"
	"unicode"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
)

const (
	minPlateLength = 4
	maxPlateLength = 9
)

// Normalize strips everything except letters and digits.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
}

// LooksLikePlate reports whether text, once normalized, is 4 to 9 characters
// long and mixes letters with digits.
func LooksLikePlate(text string) bool {
	stripped := []rune(Normalize(text))
	if len(stripped) < minPlateLength || len(stripped) > maxPlateLength {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			hasLetter = true
		} else {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// SelectPlate picks the first plate-like candidate, falling back to the first
// candidate. It returns false only for an empty list.
func SelectPlate(candidates []model.OCRCandidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	for _, c := range candidates {
		if LooksLikePlate(c.Text) {
			return c.Text, true
		}
	}
	return candidates[0].Text, true
}
