package buffer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// FrameBuffer desacopla a ingestão upstream do fan-out: o leitor do stream
// empurra frames sem bloquear e o dispatcher consome no seu próprio ritmo.
type FrameBuffer struct {
	buffer        chan mjpeg.Frame
	capacity      int
	droppedFrames int64
	totalFrames   int64
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	return &FrameBuffer{
		buffer:   make(chan mjpeg.Frame, capacity),
		capacity: capacity,
	}
}

func (fb *FrameBuffer) Push(frame mjpeg.Frame) error {
	atomic.AddInt64(&fb.totalFrames, 1)

	select {
	case fb.buffer <- frame:
		return nil
	default:
		// Buffer cheio: descarta o frame mais antigo para dar lugar ao novo
		select {
		case <-fb.buffer:
		default:
		}
		fb.buffer <- frame
		atomic.AddInt64(&fb.droppedFrames, 1)
		return fmt.Errorf("buffer cheio: frame substituído")
	}
}

func (fb *FrameBuffer) Pop() (mjpeg.Frame, bool) {
	select {
	case frame := <-fb.buffer:
		return frame, true
	default:
		return mjpeg.Frame{}, false
	}
}

func (fb *FrameBuffer) PopBlocking(ctx context.Context) (mjpeg.Frame, bool) {
	select {
	case <-ctx.Done():
		return mjpeg.Frame{}, false
	case frame, ok := <-fb.buffer:
		return frame, ok
	}
}

func (fb *FrameBuffer) Size() int {
	return len(fb.buffer)
}

func (fb *FrameBuffer) Capacity() int {
	return fb.capacity
}

func (fb *FrameBuffer) Stats() BufferStats {
	dropped := atomic.LoadInt64(&fb.droppedFrames)
	total := atomic.LoadInt64(&fb.totalFrames)

	dropRate := float64(0)
	if total > 0 {
		dropRate = float64(dropped) / float64(total) * 100
	}

	return BufferStats{
		Size:          fb.Size(),
		Capacity:      fb.capacity,
		DroppedFrames: dropped,
		TotalFrames:   total,
		DropRate:      dropRate,
	}
}

func (fb *FrameBuffer) Close() {
	close(fb.buffer)
}

type BufferStats struct {
	Size          int
	Capacity      int
	DroppedFrames int64
	TotalFrames   int64
	DropRate      float64
}

func (bs BufferStats) String() string {
	return fmt.Sprintf("Buffer: %d/%d, Total: %d, Dropped: %d (%.2f%%)",
		bs.Size, bs.Capacity, bs.TotalFrames, bs.DroppedFrames, bs.DropRate)
}
