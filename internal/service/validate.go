package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Story field limits, counted in runes after trimming.
const (
	TitleMinLen = 2
	TitleMaxLen = 20
	BodyMinLen  = 10
	BodyMaxLen  = 999

	idAlphabet = "1234567890"
	idLength   = 20
	maxIDLen   = 64
)

// NewStoryID returns a random 20-digit numeric ID.
func NewStoryID() (string, error) {
	return gonanoid.Generate(idAlphabet, idLength)
}

// ValidateID checks that id is 1-64 characters of [0-9A-Za-z_-].
func ValidateID(id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if len(id) > maxIDLen {
		return &ValidationError{Field: "id", Message: fmt.Sprintf("must be at most %d characters", maxIDLen)}
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		default:
			return &ValidationError{Field: "id", Message: "may only contain letters, digits, '_' and '-'"}
		}
	}
	return nil
}

// validateInput trims the fields and checks their lengths.
func validateInput(in StoryInput) (StoryInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)

	if err := checkLength("title", in.Title, TitleMinLen, TitleMaxLen); err != nil {
		return in, err
	}
	if err := checkLength("body", in.Body, BodyMinLen, BodyMaxLen); err != nil {
		return in, err
	}
	return in, nil
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		return &ValidationError{Field: field, Message: "cannot be empty"}
	case n < minLen:
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", minLen)}
	case n > maxLen:
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxLen)}
	}
	return nil
}
