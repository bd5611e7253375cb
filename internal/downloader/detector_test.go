package downloader

import (
	"strings"
	"testing"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube"},
		{"https://twitter.com/user/status/123", "twitter"},
		{"https://x.com/user/status/123", "twitter"},
		{"https://www.instagram.com/p/ABC123/", "instagram"},
		{"https://www.tiktok.com/@user/video/123", "tiktok"},
		{"https://vimeo.com/123456789", "vimeo"},
		{"https://www.reddit.com/r/videos/comments/abc/", "reddit"},
		{"https://soundcloud.com/artist/track", "soundcloud"},
		{"https://unknown-site.com/video", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := DetectPlatform(tt.url)
			if result != tt.expected {
				t.Errorf("DetectPlatform(%q) = %q, want %q", tt.url, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"AC/DC: Live?", "AC_DC_ Live_"},
		{`a\b*c"d<e>f|g`, "a_b_c_d_e_f_g"},
		{"  spaced  ", "spaced"},
		{"tab\there", "tabhere"},
		{"...hidden", "hidden"},
		{"Canción ñandú", "Canción ñandú"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ñ", 150) // 300 bytes
	got := SanitizeFilename(long)
	if len(got) > maxFileNameBytes {
		t.Errorf("expected at most %d bytes, got %d", maxFileNameBytes, len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Errorf("truncation split a rune")
	}
}

func TestBuildFileName(t *testing.T) {
	tests := []struct {
		title, ext, fallback string
		expected             string
	}{
		{"My Song", "m4a", "abc", "My Song.m4a"},
		{"My Song", ".mp4", "abc", "My Song.mp4"},
		{"", "mp4", "abc123", "abc123.mp4"},
		{"///", "mp4", "", "___.mp4"},
		{"", "", "", "download"},
	}

	for _, tt := range tests {
		if got := BuildFileName(tt.title, tt.ext, tt.fallback); got != tt.expected {
			t.Errorf("BuildFileName(%q, %q, %q) = %q, want %q", tt.title, tt.ext, tt.fallback, got, tt.expected)
		}
	}
}

func TestReplaceExtension(t *testing.T) {
	tests := []struct {
		newName, current string
		expected         string
	}{
		{"Other", "Song.m4a", "Other.m4a"},
		{"Other.m4a", "Song.m4a", "Other.m4a"},
		{"Other.MP4", "Song.mp4", "Other.mp4"},
		{"a/b", "Song.webm", "a_b.webm"},
	}

	for _, tt := range tests {
		if got := ReplaceExtension(tt.newName, tt.current); got != tt.expected {
			t.Errorf("ReplaceExtension(%q, %q) = %q, want %q", tt.newName, tt.current, got, tt.expected)
		}
	}
}
