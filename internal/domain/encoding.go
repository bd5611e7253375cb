package domain

import (
	"fmt"
	"strings"
)

// EncodingKind distingue los dos escenarios de codificación que soporta el worker
type EncodingKind string

const (
	// EncodingCombined: un solo formato con video y audio (o solo audio)
	EncodingCombined EncodingKind = "combined"
	// EncodingSeparateAudio: formato de video más pista de audio separada
	EncodingSeparateAudio EncodingKind = "separate_audio"
)

// Encoding es la selección de formato de una descarga.
// Los campos de audio solo tienen sentido con EncodingSeparateAudio.
type Encoding struct {
	Kind          EncodingKind `json:"kind"`
	Ext           string       `json:"ext"`
	FormatID      string       `json:"format_id"`
	AudioExt      string       `json:"audio_ext,omitempty"`
	AudioFormatID string       `json:"audio_format_id,omitempty"`
}

// Combined crea una selección de un solo formato
func Combined(ext, formatID string) Encoding {
	return Encoding{Kind: EncodingCombined, Ext: ext, FormatID: formatID}
}

// WithSeparateAudio crea una selección de video más audio separado
func WithSeparateAudio(ext, formatID, audioExt, audioFormatID string) Encoding {
	return Encoding{
		Kind:          EncodingSeparateAudio,
		Ext:           ext,
		FormatID:      formatID,
		AudioExt:      audioExt,
		AudioFormatID: audioFormatID,
	}
}

// Validate verifica que la selección sea coherente con su Kind
func (e Encoding) Validate() error {
	if e.Ext == "" || e.FormatID == "" {
		return fmt.Errorf("%w: ext and format id are required", ErrInvalidEncoding)
	}

	switch e.Kind {
	case EncodingCombined:
		if e.AudioExt != "" || e.AudioFormatID != "" {
			return fmt.Errorf("%w: combined encoding cannot carry an audio track", ErrInvalidEncoding)
		}
	case EncodingSeparateAudio:
		if e.AudioExt == "" || e.AudioFormatID == "" {
			return fmt.Errorf("%w: separate audio requires audio ext and format id", ErrInvalidEncoding)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEncoding, e.Kind)
	}

	return nil
}

// Selector retorna el selector de formato para yt-dlp (-f)
func (e Encoding) Selector() string {
	if e.Kind == EncodingSeparateAudio {
		return e.FormatID + "+" + e.AudioFormatID
	}
	return e.FormatID
}

// UsesExtension retorna true si el contenedor o la pista de audio usan ext
func (e Encoding) UsesExtension(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	return strings.ToLower(e.Ext) == ext || strings.ToLower(e.AudioExt) == ext
}
