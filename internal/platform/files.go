package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Suffixes yt-dlp uses for in-progress artifacts
var (
	PartialSuffixes = []string{".part", ".ytdl"}
)

// LocalFS probes and removes files on the local filesystem
type LocalFS struct{}

// Exists reports whether path exists. A stat error other than "not exist" is returned.
func (LocalFS) Exists(path string) (bool, error) {
	if path == "" {
		return false, errors.New("empty path")
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes path. A missing file is not an error.
func (LocalFS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PartialArtifacts returns the final artifact path followed by its partial variants
func PartialArtifacts(target string) []string {
	if target == "" {
		return nil
	}
	paths := []string{target}
	for _, suffix := range PartialSuffixes {
		paths = append(paths, target+suffix)
	}
	return paths
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}
