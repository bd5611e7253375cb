package downloader

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/elsanchez/downlodr/internal/domain"
)

// maxFileNameBytes deja margen para ".part"/".ytdl" dentro de NAME_MAX
const maxFileNameBytes = 200

var invalidFileChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// DetectPlatform detecta la plataforma desde la URL
func DetectPlatform(urlStr string) string {
	urlStr = strings.ToLower(urlStr)

	switch {
	case strings.Contains(urlStr, "youtube.com"), strings.Contains(urlStr, "youtu.be"):
		return domain.PlatformYouTube
	case strings.Contains(urlStr, "twitter.com"), strings.Contains(urlStr, "x.com"):
		return domain.PlatformTwitter
	case strings.Contains(urlStr, "instagram.com"):
		return domain.PlatformInstagram
	case strings.Contains(urlStr, "tiktok.com"):
		return domain.PlatformTikTok
	case strings.Contains(urlStr, "vimeo.com"):
		return domain.PlatformVimeo
	case strings.Contains(urlStr, "dailymotion.com"):
		return domain.PlatformDailymotion
	case strings.Contains(urlStr, "twitch.tv"):
		return domain.PlatformTwitch
	case strings.Contains(urlStr, "reddit.com"):
		return domain.PlatformReddit
	case strings.Contains(urlStr, "soundcloud.com"):
		return domain.PlatformSoundCloud
	case strings.Contains(urlStr, "bandcamp.com"):
		return domain.PlatformBandcamp
	default:
		return domain.PlatformOther
	}
}

// SanitizeFilename reemplaza los caracteres no permitidos en nombres de archivo
func SanitizeFilename(s string) string {
	s = invalidFileChars.ReplaceAllString(s, "_")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")

	for len(s) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}

	return strings.TrimSpace(s)
}

// BuildFileName arma "<título>.<ext>" saneado; usa fallback si el título queda vacío
func BuildFileName(title, ext, fallback string) string {
	name := SanitizeFilename(title)
	if name == "" {
		name = SanitizeFilename(fallback)
	}
	if name == "" {
		name = "download"
	}
	if ext == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// ReplaceExtension conserva la extensión actual al renombrar
func ReplaceExtension(newName, currentFile string) string {
	ext := ""
	if i := strings.LastIndex(currentFile, "."); i > 0 {
		ext = currentFile[i+1:]
	}
	if ext != "" && strings.HasSuffix(strings.ToLower(newName), "."+strings.ToLower(ext)) {
		newName = newName[:len(newName)-len(ext)-1]
	}
	return BuildFileName(newName, ext, currentFile)
}
