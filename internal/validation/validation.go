// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes  = 72
	minUsernameLength = 3
	maxUsernameLength = 50
	maxEmailLength    = 254
	maxBioLength      = 500
	maxLocationLength = 100
	maxMessageLength  = 140
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
)

// ValidatePassword checks the length bounds bcrypt can honour.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", maxPasswordBytes)
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength {
		return fmt.Errorf("username must be at least %d characters long", minUsernameLength)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username must not exceed %d characters", maxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	// Cannot start or end with underscore/hyphen
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > maxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", maxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateImageURL accepts an empty value, a site-relative path or an
// absolute http(s) URL.
func ValidateImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("image URL must be an http(s) URL or a site path")
	}
	return nil
}

// ValidateProfileText bounds the free-text profile fields.
func ValidateProfileText(bio, location string) error {
	if utf8.RuneCountInString(bio) > maxBioLength {
		return fmt.Errorf("bio must not exceed %d characters", maxBioLength)
	}
	if utf8.RuneCountInString(location) > maxLocationLength {
		return fmt.Errorf("location must not exceed %d characters", maxLocationLength)
	}
	return nil
}

// ValidateMessageText requires 1 to 140 characters of non-blank text.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return fmt.Errorf("message must not exceed %d characters", maxMessageLength)
	}
	return nil
}
