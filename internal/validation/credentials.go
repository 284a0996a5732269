// Package validation checks user supplied identifiers, credentials and
// request structs before they reach the services.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	minUsernameLen = 3
	maxUsernameLen = 30
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9_-]*[a-zA-Z0-9])?$`)

// Usernames that collide with fixed route segments such as /users/me.
var reservedUsernames = []string{"me", "admin", "api", "ws", "drafts", "latest", "new", "root", "system"}

// commonPasswords is a short deny list checked case-insensitively.
var commonPasswords = []string{
	"password", "password1", "password123", "passw0rd", "12345678", "123456789",
	"1234567890", "qwerty123", "qwertyuiop", "iloveyou", "letmein1", "admin123",
	"welcome1", "zanhu123", "abc12345", "11111111",
}

var (
	ErrPasswordNumeric = errors.New("password can't be entirely numeric")
	ErrPasswordCommon  = errors.New("password is too common")
	ErrPasswordSimilar = errors.New("password is too similar to the username")
)

// ValidatePassword applies the length, numeric, common-password and
// username-similarity rules. username may be empty.
func ValidatePassword(password, username string) error {
	n := len([]rune(password))
	switch {
	case n < minPasswordLen:
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	case n > maxPasswordLen:
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}

	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return ErrPasswordNumeric
	}

	lower := strings.ToLower(password)
	if slices.Contains(commonPasswords, lower) {
		return ErrPasswordCommon
	}

	name := strings.ToLower(strings.TrimSpace(username))
	if len(name) >= minUsernameLen && (strings.Contains(lower, name) || strings.Contains(name, lower)) {
		return ErrPasswordSimilar
	}
	return nil
}

// ValidateUsername keeps usernames safe to embed in URLs and notification slugs.
func ValidateUsername(username string) error {
	switch n := len(username); {
	case n < minUsernameLen:
		return fmt.Errorf("username must be at least %d characters long", minUsernameLen)
	case n > maxUsernameLen:
		return fmt.Errorf("username must not exceed %d characters", maxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username may contain letters, numbers, underscores and hyphens, and must start and end with a letter or number")
	}
	if slices.Contains(reservedUsernames, strings.ToLower(username)) {
		return fmt.Errorf("username %q is reserved", username)
	}
	return nil
}
