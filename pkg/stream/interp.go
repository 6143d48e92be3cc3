package stream

import (
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// InterpolationBuffer guarda os frames bons mais recentes, limitado por
// contagem E por memória total. Só responde "qual foi o último frame bom"
// durante o preenchimento de lacunas; nunca é reproduzido por inteiro.
type InterpolationBuffer struct {
	frames     []mjpeg.Frame
	totalBytes int
	maxFrames  int
	maxBytes   int
}

func NewInterpolationBuffer(maxFrames, maxBytes int) *InterpolationBuffer {
	if maxFrames <= 0 {
		maxFrames = 10
	}
	if maxBytes <= 0 {
		maxBytes = 16 * 1024 * 1024
	}
	return &InterpolationBuffer{
		frames:    make([]mjpeg.Frame, 0, maxFrames),
		maxFrames: maxFrames,
		maxBytes:  maxBytes,
	}
}

// Add insere um frame no fim e expulsa do início até ambos os limites
// valerem de novo.
func (ib *InterpolationBuffer) Add(frame mjpeg.Frame) {
	ib.frames = append(ib.frames, frame)
	ib.totalBytes += frame.Size()

	for len(ib.frames) > ib.maxFrames || ib.totalBytes > ib.maxBytes {
		if len(ib.frames) == 1 {
			// Um único frame maior que o teto de memória ainda é mantido:
			// sem ele não haveria frame para preencher lacunas
			break
		}
		ib.totalBytes -= ib.frames[0].Size()
		ib.frames[0] = mjpeg.Frame{}
		ib.frames = ib.frames[1:]
	}
}

// Last retorna o frame bom mais recente.
func (ib *InterpolationBuffer) Last() (mjpeg.Frame, bool) {
	if len(ib.frames) == 0 {
		return mjpeg.Frame{}, false
	}
	return ib.frames[len(ib.frames)-1], true
}

func (ib *InterpolationBuffer) Len() int {
	return len(ib.frames)
}

func (ib *InterpolationBuffer) Bytes() int {
	return ib.totalBytes
}

// Trim descarta todos os frames menos o último. Chamado pelo watchdog de
// memória sob pressão.
func (ib *InterpolationBuffer) Trim() {
	if len(ib.frames) <= 1 {
		return
	}
	last := ib.frames[len(ib.frames)-1]
	ib.frames = append(ib.frames[:0:0], last)
	ib.totalBytes = last.Size()
}
