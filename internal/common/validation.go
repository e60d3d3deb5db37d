package common

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds a single chat message body, in runes.
const MaxMessageLength = 2000

var (
	emailRegex  = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)
	if len(handle) < 3 || len(handle) > 50 {
		return errors.New("handle must be between 3 and 50 characters")
	}

	if !handleRegex.MatchString(handle) {
		return errors.New("handle can only contain letters, numbers, and underscores")
	}

	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters long")
	}

	if len(password) > 100 {
		return errors.New("password is too long")
	}

	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}

	return nil
}

func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return errors.New("message content is too long")
	}
	return nil
}
