package domain

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxQuestionLength bounds the size of a user question in runes.
const MaxQuestionLength = 2000

// ValidateFilename accepts only names ending in ".pdf".
func ValidateFilename(name string) error {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return NewValidationError("filename", name, ErrInvalidInput)
	}
	if !strings.HasSuffix(base, ".pdf") {
		return NewValidationError("filename", name, ErrUnsupportedFile)
	}
	return nil
}

// SanitizeFilename strips any directory components from an uploaded name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return filepath.Base(strings.TrimSpace(name))
}

// ValidateQuestion rejects blank and oversized questions.
func ValidateQuestion(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	if utf8.RuneCountInString(q) > MaxQuestionLength {
		return NewValidationError("question", string([]rune(q)[:32])+"...", ErrQuestionTooLong)
	}
	return nil
}
