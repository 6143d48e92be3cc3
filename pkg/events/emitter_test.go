package events

import (
	"testing"

	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
	"github.com/stretchr/testify/assert"
)

func TestEmitterSubscribeFrames(t *testing.T) {
	emitter := NewEmitter()

	var received []uint64
	unsubscribe := emitter.SubscribeFrames(func(frame mjpeg.Frame) {
		received = append(received, frame.Seq)
	})

	emitter.EmitFrame(mjpeg.Frame{Seq: 1})
	emitter.EmitFrame(mjpeg.Frame{Seq: 2})

	unsubscribe()

	emitter.EmitFrame(mjpeg.Frame{Seq: 3})

	assert.Equal(t, []uint64{1, 2}, received)
}

func TestEmitterUnsubscribeTwice(t *testing.T) {
	emitter := NewEmitter()

	count := 0
	unsubscribe := emitter.SubscribeFrames(func(mjpeg.Frame) { count++ })

	unsubscribe()
	unsubscribe()

	emitter.EmitFrame(mjpeg.Frame{Seq: 1})
	assert.Equal(t, 0, count)
}

func TestEmitterMultipleObservers(t *testing.T) {
	emitter := NewEmitter()

	a, b := 0, 0
	emitter.SubscribeFrames(func(mjpeg.Frame) { a++ })
	emitter.SubscribeFrames(func(mjpeg.Frame) { b++ })

	emitter.EmitFrame(mjpeg.Frame{Seq: 1})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestEmitterStatus(t *testing.T) {
	emitter := NewEmitter()

	var states []bool
	emitter.SubscribeStatus(func(connected bool) {
		states = append(states, connected)
	})

	emitter.EmitStatus(true)
	emitter.EmitStatus(false)

	assert.Equal(t, []bool{true, false}, states)
}

func TestEmitterRecordingEvents(t *testing.T) {
	emitter := NewEmitter()

	var completed []RecordingComplete
	var failed []RecordingFailed
	emitter.SubscribeRecordings(
		func(ev RecordingComplete) { completed = append(completed, ev) },
		func(ev RecordingFailed) { failed = append(failed, ev) },
	)

	emitter.EmitRecordingComplete(RecordingComplete{JobID: "job-1", FrameCount: 42})
	emitter.EmitRecordingFailed(RecordingFailed{JobID: "job-2", Reason: "encoder exited"})

	assert.Len(t, completed, 1)
	assert.Equal(t, "job-1", completed[0].JobID)
	assert.Equal(t, 42, completed[0].FrameCount)

	assert.Len(t, failed, 1)
	assert.Equal(t, "job-2", failed[0].JobID)
}

func TestAMQPPublisherDisabled(t *testing.T) {
	publisher, err := NewAMQPPublisher("", "", "", false)

	assert.NoError(t, err)
	assert.False(t, publisher.Enabled())
	assert.NoError(t, publisher.PublishStatus(true))
	assert.NoError(t, publisher.PublishRecordingComplete(RecordingComplete{}))
	assert.NoError(t, publisher.PublishRecordingFailed(RecordingFailed{}))
}
