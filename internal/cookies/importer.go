package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ImportOptions contains options for importing a cookie file
type ImportOptions struct {
	FilePath string
	Domain   string // se detecta de las cookies si está vacío
	Force    bool   // sobreescribe un jar existente
}

// ImportResult describe el jar que quedó instalado
type ImportResult struct {
	Domain     string
	Path       string
	Cookies    int
	Validation *ValidationResult
}

// Import copia un jar Netscape al directorio de cookies como <dominio>.txt,
// donde el Provider lo usa aunque no haya browser configurado.
func Import(dir string, opts ImportOptions, now time.Time) (*ImportResult, error) {
	if _, err := os.Stat(opts.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cookie file not found: %s", opts.FilePath)
	}

	cookies, err := ParseFile(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("parse cookie file: %w", err)
	}

	validation := ValidateExpiration(cookies, now)
	if !validation.IsValid {
		return nil, fmt.Errorf("refusing to import %s jar: %s", validation.Status, validation.Message)
	}

	domain := opts.Domain
	if domain == "" {
		domain = DetectDomain(cookies)
		if domain == "" {
			return nil, fmt.Errorf("could not auto-detect domain, please specify --domain")
		}
	} else if strings.Contains(domain, "://") {
		if domain, err = DomainOf(domain); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dir, domain+".txt")
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return nil, fmt.Errorf("jar already exists: %s (use --force to overwrite)", path)
	}

	if err := SaveFile(path, cookies); err != nil {
		return nil, fmt.Errorf("write cookie jar: %w", err)
	}

	return &ImportResult{
		Domain:     domain,
		Path:       path,
		Cookies:    len(cookies),
		Validation: validation,
	}, nil
}

// DetectDomain retorna el dominio con más cookies en el jar
func DetectDomain(cookies []NetscapeCookie) string {
	counts := make(map[string]int)
	for _, c := range cookies {
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		for _, prefix := range []string{"www.", "m.", "music."} {
			d = strings.TrimPrefix(d, prefix)
		}
		if d != "" {
			counts[d]++
		}
	}

	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if counts[domains[i]] != counts[domains[j]] {
			return counts[domains[i]] > counts[domains[j]]
		}
		return domains[i] < domains[j]
	})

	if len(domains) == 0 {
		return ""
	}
	return domains[0]
}
