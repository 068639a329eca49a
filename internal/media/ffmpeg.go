// Package media derives still thumbnails from uploaded video clips.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/errs"
)

// ThumbnailContentType is the MIME type of every extracted frame.
const ThumbnailContentType = "image/png"

// FFmpegExtractor pulls the first decodable frame out of a video by running
// ffmpeg against a private temp copy of the upload.
type FFmpegExtractor struct {
	binary  string
	tempDir string
	timeout time.Duration
}

func NewFFmpegExtractor(cfg config.MediaConfig) *FFmpegExtractor {
	return &FFmpegExtractor{
		binary:  cfg.FFmpegPath,
		tempDir: cfg.TempDir,
		timeout: cfg.Timeout,
	}
}

// ExtractFirstFrame returns the first frame of video as PNG bytes.
//
// It fails with errs.ErrDecodeFailed when the container or codec cannot be
// read and with errs.ErrEmptyVideo when no frame is readable. The temp file
// is removed on every return path.
func (f *FFmpegExtractor) ExtractFirstFrame(ctx context.Context, video io.Reader) ([]byte, error) {
	path, err := f.spool(video)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove frame temp file", "path", path, "error", err)
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	frame, err := f.run(ctx, path)
	if err != nil {
		return nil, err
	}
	return reencodePNG(frame)
}

// spool copies the upload to a uniquely named temp file; ffmpeg needs a
// seekable input for most containers.
func (f *FFmpegExtractor) spool(video io.Reader) (string, error) {
	tmp, err := os.CreateTemp(f.tempDir, "bw-frame-*.video")
	if err != nil {
		return "", fmt.Errorf("create frame temp file: %w", err)
	}
	path := tmp.Name()

	_, copyErr := io.Copy(tmp, video)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write frame temp file: %w", err)
	}
	return path, nil
}

func (f *FFmpegExtractor) run(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %w", errs.ErrDecodeFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", errs.ErrDecodeFailed, err, lastLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errs.ErrEmptyVideo
	}
	return stdout.Bytes(), nil
}

// reencodePNG decodes ffmpeg's output and writes a clean PNG, so a truncated
// pipe never reaches blob storage.
func reencodePNG(frame []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %w", errs.ErrDecodeFailed, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
