// Package media converts user media into Telegram sticker files with ffmpeg.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"grouphelper/internal/models"
)

// MaxStickerSize is the largest sticker file Telegram accepts for video stickers
const MaxStickerSize = 256 * 1024

// MaxDownloadSize bounds source files fetched from Telegram
const MaxDownloadSize = 20 * 1024 * 1024

var (
	// ErrStickerTooLarge is returned when a converted sticker exceeds MaxStickerSize
	ErrStickerTooLarge = errors.New("sticker exceeds size limit")
	// ErrDownloadTooLarge is returned when a source file exceeds MaxDownloadSize
	ErrDownloadTooLarge = errors.New("file exceeds download limit")
	// ErrUnsupportedFormat is returned for formats ffmpeg is not asked to produce
	ErrUnsupportedFormat = errors.New("unsupported sticker format")
)

// Converter runs ffmpeg to produce sticker files
type Converter struct {
	FFmpegPath string
	HTTPClient *http.Client
}

// NewConverter creates a converter using the given ffmpeg binary ("ffmpeg" when empty)
func NewConverter(ffmpegPath string) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Converter{
		FFmpegPath: ffmpegPath,
		HTTPClient: http.DefaultClient,
	}
}

// ffmpegArgs builds the ffmpeg command line for a sticker format
func ffmpegArgs(format, input, output string) ([]string, error) {
	switch format {
	case models.StickerFormatStatic:
		return []string{
			"-y", "-i", input,
			"-vf", "scale=512:512:force_original_aspect_ratio=decrease",
			"-c:v", "libwebp",
			"-quality", "90",
			output,
		}, nil
	case models.StickerFormatVideo:
		return []string{
			"-y", "-i", input,
			"-t", "3",
			"-vf", "scale=512:512:force_original_aspect_ratio=decrease,fps=30",
			"-c:v", "libvpx-vp9",
			"-pix_fmt", "yuv420p",
			"-b:v", "200k",
			"-maxrate", "200k",
			"-bufsize", "200k",
			"-an",
			output,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Extension returns the sticker file extension of a format
func Extension(format string) string {
	if format == models.StickerFormatVideo {
		return ".webm"
	}
	return ".webp"
}

// Convert turns source media into a sticker file of the given format
func (c *Converter) Convert(ctx context.Context, source []byte, format string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "sticker-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output"+Extension(format))

	args, err := ffmpegArgs(format, input, output)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(input, source, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.FFmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	if len(data) > MaxStickerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrStickerTooLarge, len(data))
	}
	return data, nil
}

// Download fetches url, refusing bodies larger than MaxDownloadSize
func (c *Converter) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, ErrDownloadTooLarge
	}
	return data, nil
}

// lastLine returns the final line of ffmpeg's stderr, which carries the error
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
