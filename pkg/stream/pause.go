package stream

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// PauseState guarda o estado da pausa administrativa. Propriedade do Engine;
// no máximo uma pausa ativa por vez.
type PauseState struct {
	paused      bool
	startedAt   time.Time
	deadline    time.Time
	placeholder mjpeg.Frame
}

// Remaining retorna quanto falta para a retomada automática.
func (p *PauseState) Remaining(now time.Time) time.Duration {
	if !p.paused {
		return 0
	}
	remaining := p.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

const (
	placeholderWidth  = 640
	placeholderHeight = 480
)

// RenderPlaceholder gera o frame sintético exibido durante a pausa, com o
// tempo restante legível. Regenerado a cada tick enquanto pausado.
func RenderPlaceholder(remaining time.Duration) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 24, G: 24, B: 28, A: 255}), image.Point{}, draw.Src)

	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining.Round(time.Second).Seconds())
	caption := "Transmissão pausada"
	countdown := fmt.Sprintf("Retoma em %02d:%02d", total/60, total%60)

	drawCentered(img, caption, placeholderHeight/2-10)
	drawCentered(img, countdown, placeholderHeight/2+14)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("erro ao codificar placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCentered(img *image.RGBA, text string, y int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 220, G: 220, B: 220, A: 255}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I((placeholderWidth - width) / 2),
			Y: fixed.I(y),
		},
	}
	d.DrawString(text)
}
