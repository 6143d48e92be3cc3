package recorder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// Encoder transforma a sequência de frames JPEG num contêiner de vídeo.
type Encoder interface {
	Encode(ctx context.Context, frames []mjpeg.Frame, fps int) ([]byte, error)
}

// FFmpegEncoder codifica via processo ffmpeg externo: JPEGs entram por stdin
// (image2pipe) e o mp4 fragmentado sai por stdout.
type FFmpegEncoder struct {
	Binary string
}

func NewFFmpegEncoder() *FFmpegEncoder {
	return &FFmpegEncoder{Binary: "ffmpeg"}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames []mjpeg.Frame, fps int) ([]byte, error) {
	cmd := exec.CommandContext(
		ctx,
		e.Binary,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"-",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("erro ao criar stdin pipe: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("erro ao iniciar FFmpeg: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		for _, frame := range frames {
			if _, err := stdin.Write(frame.Data); err != nil {
				writeErr <- err
				return
			}
		}
		writeErr <- nil
	}()

	if err := cmd.Wait(); err != nil {
		logger.Log.Errorw("FFmpeg encerrou com erro",
			"error", err,
			"stderr", stderr.String())
		return nil, fmt.Errorf("ffmpeg falhou: %w", err)
	}
	if err := <-writeErr; err != nil {
		return nil, fmt.Errorf("erro ao alimentar FFmpeg: %w", err)
	}

	return stdout.Bytes(), nil
}
