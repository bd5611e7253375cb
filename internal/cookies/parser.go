package cookies

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// NetscapeCookie represents a single cookie from Netscape format
type NetscapeCookie struct {
	Domain     string
	Flag       string
	Path       string
	Secure     bool
	Expiration int64 // Unix timestamp, 0 for session cookies
	Name       string
	Value      string
}

// IsSession reports whether the cookie has no expiration
func (c NetscapeCookie) IsSession() bool {
	return c.Expiration == 0
}

// ParseFile parses a Netscape format cookie file
func ParseFile(path string) ([]NetscapeCookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads cookies in Netscape format
// Format: domain	flag	path	secure	expiration	name	value
func Parse(r io.Reader) ([]NetscapeCookie, error) {
	var cookies []NetscapeCookie
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// curl marca las cookies HttpOnly con este prefijo
		line = strings.TrimPrefix(line, "#HttpOnly_")

		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			fields = strings.Fields(line)
			if len(fields) < 7 {
				return nil, fmt.Errorf("line %d: invalid format (expected 7 fields, got %d)", lineNum, len(fields))
			}
		}

		expiration, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid expiration timestamp: %w", lineNum, err)
		}

		value := fields[6]
		if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = strings.Trim(value, "\"")
		}

		cookies = append(cookies, NetscapeCookie{
			Domain:     fields[0],
			Flag:       fields[1],
			Path:       fields[2],
			Secure:     strings.ToUpper(fields[3]) == "TRUE",
			Expiration: expiration,
			Name:       fields[5],
			Value:      value,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("no valid cookies found in file")
	}

	return cookies, nil
}

// Write serializes cookies in Netscape format
func Write(w io.Writer, cookies []NetscapeCookie) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString("# Netscape HTTP Cookie File\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, cookie := range cookies {
		secure := "FALSE"
		if cookie.Secure {
			secure = "TRUE"
		}
		flag := cookie.Flag
		if flag == "" {
			flag = "TRUE"
		}

		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			cookie.Domain,
			flag,
			cookie.Path,
			secure,
			cookie.Expiration,
			cookie.Name,
			cookie.Value,
		); err != nil {
			return fmt.Errorf("write cookie: %w", err)
		}
	}

	return bw.Flush()
}

// EarliestExpiration returns the earliest expiration among persistent cookies.
// The zero time is returned when every cookie is a session cookie.
func EarliestExpiration(cookies []NetscapeCookie) time.Time {
	var earliest int64
	for _, cookie := range cookies {
		if cookie.IsSession() {
			continue
		}
		if earliest == 0 || cookie.Expiration < earliest {
			earliest = cookie.Expiration
		}
	}
	if earliest == 0 {
		return time.Time{}
	}
	return time.Unix(earliest, 0)
}
