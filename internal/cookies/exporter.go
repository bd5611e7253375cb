package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Export copia el jar de un dominio a outputPath
func Export(dir, domain, outputPath string) error {
	path := filepath.Join(dir, domain+".txt")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("cookie file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0600); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}

	return nil
}

// JarInfo is one jar in the cookies directory
type JarInfo struct {
	Domain     string
	Path       string
	Validation *ValidationResult
}

// ListJars retorna los jars del directorio con su estado
func ListJars(dir string, now time.Time) ([]JarInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookies dir: %w", err)
	}

	var jars []JarInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		jars = append(jars, JarInfo{
			Domain:     strings.TrimSuffix(e.Name(), ".txt"),
			Path:       path,
			Validation: ValidateJar(path, 0, now),
		})
	}

	sort.Slice(jars, func(i, j int) bool { return jars[i].Domain < jars[j].Domain })
	return jars, nil
}
