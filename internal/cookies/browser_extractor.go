package cookies

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/chrome"
	_ "github.com/browserutils/kooky/browser/chromium"
	_ "github.com/browserutils/kooky/browser/edge"
	_ "github.com/browserutils/kooky/browser/firefox"
	_ "github.com/browserutils/kooky/browser/opera"
)

// Extractor reads cookies for a domain and stores them as a Netscape jar
type Extractor interface {
	Extract(ctx context.Context, opts ExtractOptions) ([]NetscapeCookie, error)
}

// BrowserExtractor handles extraction of cookies from web browsers
type BrowserExtractor struct{}

// NewBrowserExtractor creates a new browser cookie extractor
func NewBrowserExtractor() *BrowserExtractor {
	return &BrowserExtractor{}
}

// SupportedBrowsers returns a list of supported browser names
func SupportedBrowsers() []string {
	return []string{
		"chrome",
		"chromium",
		"firefox",
		"edge",
		"opera",
	}
}

// IsSupportedBrowser reports whether name is one of SupportedBrowsers
func IsSupportedBrowser(name string) bool {
	name = strings.ToLower(name)
	for _, b := range SupportedBrowsers() {
		if b == name {
			return true
		}
	}
	return false
}

// ExtractOptions contains options for browser cookie extraction
type ExtractOptions struct {
	Browser    string // Browser name (chrome, firefox, etc.)
	Domain     string // Domain to filter cookies (e.g., "youtube.com")
	OutputPath string // Path to save cookies in Netscape format
}

// Extract extracts cookies from a browser and saves them in Netscape format
func (e *BrowserExtractor) Extract(ctx context.Context, opts ExtractOptions) ([]NetscapeCookie, error) {
	browser := strings.ToLower(opts.Browser)

	var filters []kooky.Filter
	if opts.Domain != "" {
		// Match cookies for domain and its subdomains
		filters = append(filters, kooky.DomainHasSuffix(opts.Domain))
	}

	cookies, err := kooky.ReadCookies(ctx, filters...)
	if err != nil {
		return nil, fmt.Errorf("read cookies from browser: %w", err)
	}

	netscapeCookies := make([]NetscapeCookie, 0, len(cookies))
	for _, cookie := range cookies {
		if browser != "" && cookie.Browser != nil {
			cookieBrowser := strings.ToLower(cookie.Browser.Browser())
			if !strings.Contains(cookieBrowser, browser) {
				continue
			}
		}

		domain := cookie.Domain
		if !strings.HasPrefix(domain, ".") && domain != "" {
			domain = "." + domain
		}

		expiration := cookie.Expires.Unix()
		if cookie.Expires.IsZero() || expiration < 0 {
			expiration = 0
		}

		path := cookie.Path
		if path == "" {
			path = "/"
		}

		netscapeCookies = append(netscapeCookies, NetscapeCookie{
			Domain:     domain,
			Flag:       "TRUE",
			Path:       path,
			Secure:     cookie.Secure,
			Expiration: expiration,
			Name:       cookie.Name,
			Value:      cookie.Value,
		})
	}

	if len(netscapeCookies) == 0 {
		return nil, fmt.Errorf("no cookies found for browser '%s' and domain '%s'", browser, opts.Domain)
	}

	if opts.OutputPath != "" {
		if err := SaveFile(opts.OutputPath, netscapeCookies); err != nil {
			return nil, fmt.Errorf("save cookies: %w", err)
		}
	}

	return netscapeCookies, nil
}

// SaveFile writes cookies to path in Netscape format, replacing it atomically
func SaveFile(path string, cookies []NetscapeCookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".jar-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, cookies); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}
