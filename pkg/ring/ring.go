package ring

import (
	"sync"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/events"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// PreBuffer é o buffer circular dos frames mais recentes, escrito
// continuamente e lido só quando uma gravação dispara. Com o cursor dando a
// volta, cada escrita nova sobrepõe a entrada mais antiga.
type PreBuffer struct {
	mu         sync.Mutex
	frames     []mjpeg.Frame
	cursor     int
	full       bool
	totalBytes int
	copyFrames bool

	detach func()
}

// Stats é o retrato de ocupação do pré-buffer.
type Stats struct {
	Occupancy  int       `json:"occupancy"`
	Capacity   int       `json:"capacity"`
	TotalBytes int       `json:"total_bytes"`
	OldestTS   time.Time `json:"oldest_ts"`
	NewestTS   time.Time `json:"newest_ts"`
}

// NewPreBuffer cria um pré-buffer com capacidade fixa. copyFrames controla se
// cada frame é duplicado na entrada; com o extrator entregando cópias
// independentes, a referência direta é segura e é o padrão.
func NewPreBuffer(capacity int, copyFrames bool) *PreBuffer {
	if capacity <= 0 {
		capacity = 75 // 5s x 15fps
	}
	return &PreBuffer{
		frames:     make([]mjpeg.Frame, capacity),
		copyFrames: copyFrames,
	}
}

// Attach assina o stream de frames do emitter. Chamar Detach desfaz.
func (pb *PreBuffer) Attach(emitter *events.Emitter) {
	pb.detach = emitter.SubscribeFrames(pb.AddFrame)
}

func (pb *PreBuffer) Detach() {
	if pb.detach != nil {
		pb.detach()
		pb.detach = nil
	}
}

// AddFrame escreve no cursor atual e avança módulo capacidade.
func (pb *PreBuffer) AddFrame(frame mjpeg.Frame) {
	if pb.copyFrames {
		frame = frame.Clone()
	}

	pb.mu.Lock()
	old := pb.frames[pb.cursor]
	pb.totalBytes += frame.Size() - old.Size()

	pb.frames[pb.cursor] = frame
	pb.cursor++
	if pb.cursor == len(pb.frames) {
		pb.cursor = 0
		pb.full = true
	}
	occupancy := pb.occupancyLocked()
	pb.mu.Unlock()

	metrics.PreBufferOccupancy.Set(float64(occupancy))
}

// Snapshot retorna os frames retidos em ordem cronológica. Sempre uma cópia
// do índice, nunca uma visão viva do anel.
func (pb *PreBuffer) Snapshot() []mjpeg.Frame {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !pb.full {
		out := make([]mjpeg.Frame, pb.cursor)
		copy(out, pb.frames[:pb.cursor])
		return out
	}

	// Cheio: o mais antigo está no cursor
	out := make([]mjpeg.Frame, 0, len(pb.frames))
	out = append(out, pb.frames[pb.cursor:]...)
	out = append(out, pb.frames[:pb.cursor]...)
	return out
}

func (pb *PreBuffer) Stats() Stats {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	s := Stats{
		Occupancy:  pb.occupancyLocked(),
		Capacity:   len(pb.frames),
		TotalBytes: pb.totalBytes,
	}
	if s.Occupancy == 0 {
		return s
	}

	if pb.full {
		s.OldestTS = pb.frames[pb.cursor].Timestamp
	} else {
		s.OldestTS = pb.frames[0].Timestamp
	}
	newest := pb.cursor - 1
	if newest < 0 {
		newest = len(pb.frames) - 1
	}
	s.NewestTS = pb.frames[newest].Timestamp
	return s
}

func (pb *PreBuffer) occupancyLocked() int {
	if pb.full {
		return len(pb.frames)
	}
	return pb.cursor
}
