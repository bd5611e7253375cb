package domain

import (
	"fmt"
	"strings"
)

// Format es un formato disponible reportado por el extractor
type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	VideoExt   string `json:"video_ext,omitempty"`
	AudioExt   string `json:"audio_ext,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Note       string `json:"format_note,omitempty"`
	VCodec     string `json:"vcodec,omitempty"`
	ACodec     string `json:"acodec,omitempty"`
	Filesize   int64  `json:"filesize,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// HasVideo retorna true si el formato trae pista de video
func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio retorna true si el formato trae pista de audio
func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Metadata es el resultado de resolver una URL
type Metadata struct {
	Title        string   `json:"title"`
	ExtractorKey string   `json:"extractor_key"`
	IsLive       bool     `json:"is_live"`
	FormatID     string   `json:"format_id"`
	Ext          string   `json:"ext"`
	Filesize     int64    `json:"filesize,omitempty"`
	Formats      []Format `json:"formats"`
}

// FindFormat busca un formato por id
func (m *Metadata) FindFormat(id string) (Format, bool) {
	for _, f := range m.Formats {
		if f.FormatID == id {
			return f, true
		}
	}
	return Format{}, false
}

// DefaultEncoding deriva la selección por defecto a partir del formato
// elegido por el extractor. "137+140" se convierte en video más audio separado.
func (m *Metadata) DefaultEncoding() (Encoding, error) {
	if m.FormatID == "" {
		if len(m.Formats) == 0 {
			return Encoding{}, fmt.Errorf("%w: no formats available", ErrMetadataFetchFailed)
		}
		last := m.Formats[len(m.Formats)-1]
		return Combined(last.Ext, last.FormatID), nil
	}

	video, audio, separate := strings.Cut(m.FormatID, "+")
	if !separate {
		ext := m.Ext
		if f, ok := m.FindFormat(video); ok && ext == "" {
			ext = f.Ext
		}
		if ext == "" {
			return Encoding{}, fmt.Errorf("%w: no extension for format %s", ErrMetadataFetchFailed, video)
		}
		return Combined(ext, video), nil
	}

	audioFormat, ok := m.FindFormat(audio)
	if !ok {
		return Encoding{}, fmt.Errorf("%w: audio format %s not listed", ErrMetadataFetchFailed, audio)
	}
	ext := m.Ext
	if ext == "" {
		if f, ok := m.FindFormat(video); ok {
			ext = f.Ext
		}
	}
	if ext == "" {
		return Encoding{}, fmt.Errorf("%w: no container for format %s", ErrMetadataFetchFailed, m.FormatID)
	}

	return WithSeparateAudio(ext, video, audioFormat.Ext, audio), nil
}

// Supports verifica que la selección exista en la lista de formatos.
// Sin lista de formatos cualquier selección válida se acepta.
func (m *Metadata) Supports(enc Encoding) error {
	return CheckEncoding(m.Formats, enc)
}

// CheckEncoding valida una selección contra una lista de formatos
func CheckEncoding(formats []Format, enc Encoding) error {
	if err := enc.Validate(); err != nil {
		return err
	}
	if len(formats) == 0 {
		return nil
	}

	find := func(id string) bool {
		for _, f := range formats {
			if f.FormatID == id {
				return true
			}
		}
		return false
	}

	if !find(enc.FormatID) {
		return fmt.Errorf("%w: format %s not available", ErrInvalidEncoding, enc.FormatID)
	}
	if enc.Kind == EncodingSeparateAudio && !find(enc.AudioFormatID) {
		return fmt.Errorf("%w: audio format %s not available", ErrInvalidEncoding, enc.AudioFormatID)
	}
	return nil
}
