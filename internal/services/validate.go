package services

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidatePassword enforces the strength rules applied before any remote
// call: at least 8 characters with an uppercase letter, a lowercase letter,
// a digit and a symbol.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters long")
	}

	hasUpper := false
	hasLower := false
	hasNumber := false
	hasSymbol := false
	for _, ch := range pw {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSymbol = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("Password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("Password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	if !hasSymbol {
		return fmt.Errorf("Password must contain at least one symbol")
	}
	return nil
}

// ValidateUsername allows letters, digits, '.', '-' and '_', and requires a
// dot (the name.surname convention used for student accounts).
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("Username is required")
	}
	for _, ch := range username {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '.' && ch != '-' && ch != '_' {
			return fmt.Errorf("Username may only contain letters, digits, '.', '-' and '_'")
		}
	}
	if !strings.Contains(username, ".") {
		return fmt.Errorf("Username must contain a dot, e.g. name.surname")
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("Invalid email format")
	}
	return nil
}
