package cookies

import (
	"fmt"
	"os"
	"time"
)

// Jar status values
const (
	JarValid   = "valid"
	JarStale   = "stale"
	JarExpired = "expired"
	JarInvalid = "invalid"
	JarMissing = "missing"
)

// ValidationResult contains the result of validating a cookie jar
type ValidationResult struct {
	IsValid   bool
	Status    string
	Message   string
	ExpiresAt *time.Time
}

// ValidateJar checks that a jar exists, is younger than maxAge and still
// carries at least one unexpired cookie.
func ValidateJar(path string, maxAge time.Duration, now time.Time) *ValidationResult {
	info, err := os.Stat(path)
	if err != nil {
		return &ValidationResult{Status: JarMissing, Message: err.Error()}
	}

	if maxAge > 0 && now.Sub(info.ModTime()) > maxAge {
		return &ValidationResult{
			Status:  JarStale,
			Message: fmt.Sprintf("jar older than %s", maxAge),
		}
	}

	cookies, err := ParseFile(path)
	if err != nil {
		return &ValidationResult{
			Status:  JarInvalid,
			Message: fmt.Sprintf("failed to parse cookie file: %v", err),
		}
	}

	return ValidateExpiration(cookies, now)
}

// ValidateExpiration checks if cookies are expired. Session cookies never expire.
func ValidateExpiration(cookies []NetscapeCookie, now time.Time) *ValidationResult {
	if len(cookies) == 0 {
		return &ValidationResult{Status: JarInvalid, Message: "no cookies found"}
	}

	expiredCount := 0
	for _, cookie := range cookies {
		if !cookie.IsSession() && cookie.Expiration < now.Unix() {
			expiredCount++
		}
	}

	var expiresAt *time.Time
	if t := EarliestExpiration(cookies); !t.IsZero() {
		expiresAt = &t
	}

	if expiredCount == len(cookies) {
		return &ValidationResult{
			Status:    JarExpired,
			Message:   fmt.Sprintf("all %d cookies expired", len(cookies)),
			ExpiresAt: expiresAt,
		}
	}

	return &ValidationResult{
		IsValid:   true,
		Status:    JarValid,
		Message:   fmt.Sprintf("%d of %d cookies valid", len(cookies)-expiredCount, len(cookies)),
		ExpiresAt: expiresAt,
	}
}
