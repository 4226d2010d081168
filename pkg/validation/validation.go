package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

const (
	MinPasswordLength = 6
	// bcrypt refuses inputs longer than 72 bytes
	MaxPasswordLength    = 72
	MaxNameLength        = 100
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password is too long (max %d bytes)", MaxPasswordLength)
	}
	return nil
}

// ValidateDisplayName validates a user's display name
func ValidateDisplayName(name string) error {
	if err := ValidateNonEmptyString(name, "name"); err != nil {
		return err
	}
	return ValidateStringLength(strings.TrimSpace(name), 1, MaxNameLength, "name")
}

// ValidateSessionTitle validates a session title
func ValidateSessionTitle(title string) error {
	if err := ValidateNonEmptyString(title, "title"); err != nil {
		return err
	}
	return ValidateStringLength(strings.TrimSpace(title), 1, MaxTitleLength, "title")
}

// ValidateSessionDescription accepts nil; otherwise bounds the length.
func ValidateSessionDescription(description *string) error {
	if description == nil {
		return nil
	}
	return ValidateStringLength(*description, 0, MaxDescriptionLength, "description")
}

// ValidateLanguage checks a language code against EN, UK and DE.
func ValidateLanguage(lang string) error {
	switch lang {
	case "EN", "UK", "DE":
		return nil
	case "":
		return fmt.Errorf("language is required")
	default:
		return fmt.Errorf("invalid language %q (must be EN, UK, or DE)", lang)
	}
}

// ValidateRole checks a requested role. nil stands for "no role" and is valid.
func ValidateRole(role *string) error {
	if role == nil {
		return nil
	}
	switch *role {
	case "HOST", "CLIENT":
		return nil
	default:
		return fmt.Errorf("invalid role %q (must be HOST, CLIENT, or null)", *role)
	}
}

// ValidateSessionID validates a session identifier
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
