package events

import (
	"sync"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// RecordingComplete descreve uma gravação finalizada com sucesso.
type RecordingComplete struct {
	JobID           string
	OutputPath      string
	FrameCount      int
	DurationSeconds float64
	Score           float64
	Timestamp       time.Time
}

// RecordingFailed descreve uma gravação descartada por falha de codificação.
type RecordingFailed struct {
	JobID     string
	Reason    string
	Timestamp time.Time
}

type FrameHandler func(frame mjpeg.Frame)
type StatusHandler func(connected bool)
type CompleteHandler func(ev RecordingComplete)
type FailedHandler func(ev RecordingFailed)

// Emitter é o ponto de observação do engine: frame a frame para coletores
// (gravação, análise externa) e eventos de ciclo de vida para colaboradores.
// Emissão é "emit and forget": handlers lentos não são aguardados pelo caller
// além do seu próprio tempo de execução, e handlers não podem bloquear.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	frame    map[int]FrameHandler
	status   map[int]StatusHandler
	complete map[int]CompleteHandler
	failed   map[int]FailedHandler
}

func NewEmitter() *Emitter {
	return &Emitter{
		frame:    make(map[int]FrameHandler),
		status:   make(map[int]StatusHandler),
		complete: make(map[int]CompleteHandler),
		failed:   make(map[int]FailedHandler),
	}
}

// SubscribeFrames registra um observador de frames e retorna a função de
// cancelamento. Cancelar duas vezes é inofensivo.
func (e *Emitter) SubscribeFrames(h FrameHandler) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.frame[id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.frame, id)
		e.mu.Unlock()
	}
}

func (e *Emitter) SubscribeStatus(h StatusHandler) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.status[id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.status, id)
		e.mu.Unlock()
	}
}

func (e *Emitter) SubscribeRecordings(onComplete CompleteHandler, onFailed FailedHandler) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if onComplete != nil {
		e.complete[id] = onComplete
	}
	if onFailed != nil {
		e.failed[id] = onFailed
	}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.complete, id)
		delete(e.failed, id)
		e.mu.Unlock()
	}
}

func (e *Emitter) EmitFrame(frame mjpeg.Frame) {
	e.mu.RLock()
	handlers := make([]FrameHandler, 0, len(e.frame))
	for _, h := range e.frame {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(frame)
	}
}

func (e *Emitter) EmitStatus(connected bool) {
	e.mu.RLock()
	handlers := make([]StatusHandler, 0, len(e.status))
	for _, h := range e.status {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(connected)
	}
}

func (e *Emitter) EmitRecordingComplete(ev RecordingComplete) {
	e.mu.RLock()
	handlers := make([]CompleteHandler, 0, len(e.complete))
	for _, h := range e.complete {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (e *Emitter) EmitRecordingFailed(ev RecordingFailed) {
	e.mu.RLock()
	handlers := make([]FailedHandler, 0, len(e.failed))
	for _, h := range e.failed {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
