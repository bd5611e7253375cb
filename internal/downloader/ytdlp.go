package downloader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
)

// progressPrefix marca las líneas de progreso generadas por --progress-template
const progressPrefix = "[dlr] "

// ProgressTemplate produce: status|percent|speed|eta|total|total_estimate|downloaded
const ProgressTemplate = "download:" + progressPrefix +
	"%(progress.status)s|%(progress._percent_str)s|%(progress._speed_str)s|%(progress._eta_str)s|" +
	"%(progress.total_bytes)s|%(progress.total_bytes_estimate)s|%(progress.downloaded_bytes)s"

// stderrTailLines es cuántas líneas de stderr se conservan para el error
const stderrTailLines = 5

// YtDlp ejecuta descargas y resuelve metadata con el binario yt-dlp
type YtDlp struct {
	binary    string
	cookies   CookieSource
	waitDelay time.Duration
}

// NewYtDlp crea un worker de yt-dlp. cookies puede ser nil.
func NewYtDlp(binary string, cookies CookieSource, waitDelay time.Duration) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{
		binary:    binary,
		cookies:   cookies,
		waitDelay: waitDelay,
	}
}

// Run ejecuta la descarga. Cancelar ctx envía SIGINT para que yt-dlp
// conserve el .part; si no termina dentro de waitDelay se mata.
func (y *YtDlp) Run(ctx context.Context, spec domain.JobSpec, progress func(domain.Progress)) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := BuildDownloadArgs(spec, y.cookieFile(ctx, spec.URL))

	cmd := exec.CommandContext(ctx, y.binary, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = y.waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := newTailWriter(stderrTailLines)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	scanProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("yt-dlp interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("yt-dlp failed: %w: %s", err, stderr.String())
	}

	return nil
}

// maxProgressLine es el tope de una línea de stdout que se intenta parsear
const maxProgressLine = 1 << 20

// scanProgress parsea stdout hasta EOF. Si el scanner se corta, el resto se
// descarta igual para que yt-dlp no se bloquee con el pipe lleno.
func scanProgress(r io.Reader, progress func(domain.Progress)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxProgressLine)
	for scanner.Scan() {
		p, ok := ParseProgressLine(scanner.Text())
		if ok && progress != nil {
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Stopped parsing yt-dlp output: %v", err)
		if _, err := io.Copy(io.Discard, r); err != nil {
			log.Printf("Failed to drain yt-dlp output: %v", err)
		}
	}
}

func (y *YtDlp) cookieFile(ctx context.Context, rawURL string) string {
	if y.cookies == nil {
		return ""
	}
	path, err := y.cookies.CookieFile(ctx, rawURL)
	if err != nil {
		log.Printf("Cookies unavailable for %s, continuing without: %v", rawURL, err)
		return ""
	}
	return path
}

// BuildDownloadArgs construye los argumentos de yt-dlp para un job
func BuildDownloadArgs(spec domain.JobSpec, cookieFile string) []string {
	args := []string{
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--progress-template", ProgressTemplate,
		"-o", strings.ReplaceAll(spec.OutputPath, "%", "%%"),
		"-f", spec.Encoding.Selector(),
	}

	if spec.Encoding.Kind == domain.EncodingSeparateAudio {
		args = append(args, "--merge-output-format", spec.Encoding.Ext)
	} else {
		args = append(args, "--remux-video", spec.Encoding.Ext)
	}

	if spec.RateLimit != "" {
		args = append(args, "--limit-rate", spec.RateLimit)
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}

	// URL al final
	return append(args, spec.URL)
}

// ytInfo es el subconjunto de `yt-dlp -J` que se usa
type ytInfo struct {
	Title          string     `json:"title"`
	ExtractorKey   string     `json:"extractor_key"`
	IsLive         bool       `json:"is_live"`
	LiveStatus     string     `json:"live_status"`
	FormatID       string     `json:"format_id"`
	Ext            string     `json:"ext"`
	Filesize       int64      `json:"filesize"`
	FilesizeApprox float64    `json:"filesize_approx"`
	Formats        []ytFormat `json:"formats"`
}

type ytFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VideoExt       string  `json:"video_ext"`
	AudioExt       string  `json:"audio_ext"`
	Resolution     string  `json:"resolution"`
	FormatNote     string  `json:"format_note"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	Height         int     `json:"height"`
}

// FetchInfo resuelve la metadata de url con `yt-dlp -J`
func (y *YtDlp) FetchInfo(ctx context.Context, rawURL string) (*domain.Metadata, error) {
	args := []string{"-J", "--no-playlist", "--no-warnings"}
	if jar := y.cookieFile(ctx, rawURL); jar != "" {
		args = append(args, "--cookies", jar)
	}
	args = append(args, rawURL)

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", domain.ErrMetadataFetchFailed, err, strings.TrimSpace(stderr.String()))
	}

	return ParseInfo(output)
}

// ParseInfo decodifica la salida de `yt-dlp -J`
func ParseInfo(data []byte) (*domain.Metadata, error) {
	var info ytInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: decode info: %v", domain.ErrMetadataFetchFailed, err)
	}

	meta := &domain.Metadata{
		Title:        info.Title,
		ExtractorKey: info.ExtractorKey,
		IsLive:       info.IsLive || info.LiveStatus == "is_live" || info.LiveStatus == "is_upcoming",
		FormatID:     info.FormatID,
		Ext:          info.Ext,
		Filesize:     sizeOf(info.Filesize, info.FilesizeApprox),
	}

	for _, f := range info.Formats {
		if f.FormatID == "" || f.Ext == "" || f.Ext == "mhtml" {
			continue
		}
		meta.Formats = append(meta.Formats, domain.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			VideoExt:   noneToEmpty(f.VideoExt),
			AudioExt:   noneToEmpty(f.AudioExt),
			Resolution: f.Resolution,
			Note:       f.FormatNote,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			Filesize:   sizeOf(f.Filesize, f.FilesizeApprox),
			Height:     f.Height,
		})
	}

	if meta.FormatID == "" && len(meta.Formats) == 0 && !meta.IsLive {
		return nil, fmt.Errorf("%w: no formats found", domain.ErrMetadataFetchFailed)
	}

	return meta, nil
}

func sizeOf(exact int64, approx float64) int64 {
	if exact > 0 {
		return exact
	}
	return int64(approx)
}

func noneToEmpty(s string) string {
	if s == "none" {
		return ""
	}
	return s
}

// CheckYtDlpInstalled verifica si yt-dlp está instalado
func CheckYtDlpInstalled(binary string) error {
	if binary == "" {
		binary = "yt-dlp"
	}
	cmd := exec.Command(binary, "--version")
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("yt-dlp not found: %w (install: pip install yt-dlp)", err)
		}
		return fmt.Errorf("yt-dlp --version: %w", err)
	}
	return nil
}

// tailWriter conserva las últimas n líneas escritas
type tailWriter struct {
	mu    sync.Mutex
	n     int
	lines []string
	buf   []byte
}

func newTailWriter(n int) *tailWriter {
	return &tailWriter{n: n}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.push(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *tailWriter) push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	w.lines = append(w.lines, line)
	if len(w.lines) > w.n {
		w.lines = w.lines[len(w.lines)-w.n:]
	}
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	lines := w.lines
	if rest := strings.TrimSpace(string(w.buf)); rest != "" {
		lines = append(append([]string(nil), lines...), rest)
	}
	if len(lines) > w.n {
		lines = lines[len(lines)-w.n:]
	}
	return strings.Join(lines, "; ")
}
