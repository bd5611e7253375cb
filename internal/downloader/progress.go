package downloader

import (
	"strconv"
	"strings"

	"github.com/elsanchez/downlodr/internal/domain"
)

// ParseProgressLine interpreta una línea generada con ProgressTemplate.
// Retorna false para cualquier otra salida de yt-dlp.
func ParseProgressLine(line string) (domain.Progress, bool) {
	idx := strings.Index(line, progressPrefix)
	if idx < 0 {
		return domain.Progress{}, false
	}

	fields := strings.Split(line[idx+len(progressPrefix):], "|")
	if len(fields) != 7 {
		return domain.Progress{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	p := domain.Progress{
		Status: fields[0],
		Speed:  unknownToEmpty(fields[2]),
		ETA:    unknownToEmpty(fields[3]),
	}

	if pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64); err == nil {
		p.Percent = clampPercent(pct)
	}

	p.TotalBytes = parseCount(fields[4])
	if p.TotalBytes == 0 {
		p.TotalBytes = parseCount(fields[5])
	}
	p.DownloadedBytes = parseCount(fields[6])

	if p.Percent == 0 && p.TotalBytes > 0 && p.DownloadedBytes > 0 {
		p.Percent = clampPercent(float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100)
	}
	if p.Status == "finished" {
		p.Percent = 100
	}

	return p, true
}

func parseCount(s string) int64 {
	if s == "" || s == "NA" || s == "None" {
		return 0
	}
	// total_bytes_estimate puede venir como float
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f)
}

func unknownToEmpty(s string) string {
	switch s {
	case "NA", "None", "Unknown", "Unknown speed", "Unknown ETA":
		return ""
	}
	return s
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
