package ring

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/T3-Labs/coop-cam/pkg/events"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

func frame(seq uint64, at time.Time) mjpeg.Frame {
	var b bytes.Buffer
	b.Write(mjpeg.SOI)
	b.WriteByte(byte(seq))
	b.Write(mjpeg.EOI)
	return mjpeg.Frame{Seq: seq, Data: b.Bytes(), Timestamp: at}
}

func TestSnapshotNotYetFull(t *testing.T) {
	pb := NewPreBuffer(5, false)
	base := time.Now()

	pb.AddFrame(frame(1, base))
	pb.AddFrame(frame(2, base.Add(time.Second)))
	pb.AddFrame(frame(3, base.Add(2*time.Second)))

	snap := pb.Snapshot()
	assert.Len(t, snap, 3)
	for i, f := range snap {
		assert.Equal(t, uint64(i+1), f.Seq)
	}
}

func TestSnapshotWrapped(t *testing.T) {
	pb := NewPreBuffer(3, false)
	base := time.Now()

	for seq := uint64(1); seq <= 5; seq++ {
		pb.AddFrame(frame(seq, base.Add(time.Duration(seq)*time.Second)))
	}

	// Capacidade 3, escritos 5: restam 3, 4, 5 em ordem cronológica
	snap := pb.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, uint64(3), snap[0].Seq)
	assert.Equal(t, uint64(4), snap[1].Seq)
	assert.Equal(t, uint64(5), snap[2].Seq)
}

func TestSnapshotEmpty(t *testing.T) {
	pb := NewPreBuffer(4, false)
	assert.Empty(t, pb.Snapshot())
}

func TestSnapshotIsCopy(t *testing.T) {
	pb := NewPreBuffer(3, false)
	pb.AddFrame(frame(1, time.Now()))

	snap := pb.Snapshot()
	snap[0] = mjpeg.Frame{}

	again := pb.Snapshot()
	assert.Equal(t, uint64(1), again[0].Seq)
}

func TestCopyFramesIsolatesCallerBuffer(t *testing.T) {
	pb := NewPreBuffer(3, true)

	data := append(append([]byte{}, mjpeg.SOI...), mjpeg.EOI...)
	pb.AddFrame(mjpeg.Frame{Seq: 1, Data: data, Timestamp: time.Now()})

	data[0] = 0x00

	snap := pb.Snapshot()
	assert.Equal(t, mjpeg.SOI[0], snap[0].Data[0])
}

func TestStats(t *testing.T) {
	pb := NewPreBuffer(3, false)
	base := time.Now()

	stats := pb.Stats()
	assert.Equal(t, 0, stats.Occupancy)
	assert.Equal(t, 3, stats.Capacity)

	pb.AddFrame(frame(1, base))
	pb.AddFrame(frame(2, base.Add(time.Second)))

	stats = pb.Stats()
	assert.Equal(t, 2, stats.Occupancy)
	assert.Equal(t, 10, stats.TotalBytes) // 2 frames de 5 bytes
	assert.Equal(t, base, stats.OldestTS)
	assert.Equal(t, base.Add(time.Second), stats.NewestTS)

	// Dá a volta: o mais antigo muda e o total de bytes não cresce sem limite
	for seq := uint64(3); seq <= 6; seq++ {
		pb.AddFrame(frame(seq, base.Add(time.Duration(seq)*time.Second)))
	}
	stats = pb.Stats()
	assert.Equal(t, 3, stats.Occupancy)
	assert.Equal(t, 15, stats.TotalBytes)
	assert.Equal(t, base.Add(4*time.Second), stats.OldestTS)
	assert.Equal(t, base.Add(6*time.Second), stats.NewestTS)
}

func TestAttachCollectsEmittedFrames(t *testing.T) {
	pb := NewPreBuffer(10, false)
	emitter := events.NewEmitter()

	pb.Attach(emitter)
	emitter.EmitFrame(frame(1, time.Now()))
	emitter.EmitFrame(frame(2, time.Now()))

	assert.Len(t, pb.Snapshot(), 2)

	pb.Detach()
	emitter.EmitFrame(frame(3, time.Now()))
	assert.Len(t, pb.Snapshot(), 2)
}
