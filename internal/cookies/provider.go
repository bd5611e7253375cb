package cookies

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultMaxAge is how long an extracted jar is reused before re-reading the browser
const DefaultMaxAge = time.Hour

// Provider hands yt-dlp a cookie jar per domain, extracted from a browser
type Provider struct {
	extractor Extractor
	browser   string
	dir       string
	maxAge    time.Duration
	now       func() time.Time

	mu sync.Mutex
}

// NewProvider crea un provider que guarda los jars en dir
func NewProvider(extractor Extractor, browser, dir string) *Provider {
	return &Provider{
		extractor: extractor,
		browser:   browser,
		dir:       dir,
		maxAge:    DefaultMaxAge,
		now:       time.Now,
	}
}

// CookieFile retorna el path del jar para la URL, extrayéndolo si hace falta.
// Sin browser configurado solo se usan jars importados; si no hay, retorna "" sin error.
func (p *Provider) CookieFile(ctx context.Context, rawURL string) (string, error) {
	if p == nil {
		return "", nil
	}

	domain, err := DomainOf(rawURL)
	if err != nil {
		if p.browser == "" {
			return "", nil
		}
		return "", err
	}

	path := filepath.Join(p.dir, domain+".txt")

	if p.browser == "" {
		if res := ValidateJar(path, 0, p.now()); res.IsValid {
			return path, nil
		}
		return "", nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if res := ValidateJar(path, p.maxAge, p.now()); res.IsValid {
		return path, nil
	}

	if _, err := p.extractor.Extract(ctx, ExtractOptions{
		Browser:    p.browser,
		Domain:     domain,
		OutputPath: path,
	}); err != nil {
		return "", fmt.Errorf("extract cookies for %s: %w", domain, err)
	}

	log.Printf("Cookies for %s extracted from %s", domain, p.browser)
	return path, nil
}

// DomainOf retorna el dominio base de la URL, sin "www." ni subdominios móviles
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url has no host: %s", rawURL)
	}

	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}

	return host, nil
}
