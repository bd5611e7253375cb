package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([kKmMgGtT]?)(?:i?[bB])?\s*$`)

// ParseBytes parses a byte size string like "4MB", "500K", "1.5GiB"
func ParseBytes(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid size: %s", s)
	}

	val, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	multiplier := int64(1)
	switch strings.ToLower(matches[2]) {
	case "k":
		multiplier = 1024
	case "m":
		multiplier = 1024 * 1024
	case "g":
		multiplier = 1024 * 1024 * 1024
	case "t":
		multiplier = 1024 * 1024 * 1024 * 1024
	}

	return int64(val * float64(multiplier)), nil
}

// HumanBytes converts bytes to human-readable format
func HumanBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	val := float64(n)

	for val >= 1024 && i < len(units)-1 {
		val /= 1024
		i++
	}

	return fmt.Sprintf("%.2f%s", val, units[i])
}

// NormalizeRateLimit validates a rate limit and renders it the way yt-dlp
// expects for --limit-rate ("500K", "2M"). Empty means no limit.
func NormalizeRateLimit(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	n, err := ParseBytes(s)
	if err != nil {
		return "", fmt.Errorf("invalid rate limit: %w", err)
	}
	if n <= 0 {
		return "", fmt.Errorf("invalid rate limit: %s", s)
	}

	switch {
	case n%(1024*1024*1024) == 0:
		return fmt.Sprintf("%dG", n/(1024*1024*1024)), nil
	case n%(1024*1024) == 0:
		return fmt.Sprintf("%dM", n/(1024*1024)), nil
	case n%1024 == 0:
		return fmt.Sprintf("%dK", n/1024), nil
	}
	return strconv.FormatInt(n, 10), nil
}
