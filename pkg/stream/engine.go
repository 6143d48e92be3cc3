package stream

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/events"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

var ErrSinkClosed = errors.New("sink fechado")

// Options controla o comportamento do engine de broadcast.
type Options struct {
	Boundary           string
	MaxFPS             float64
	GapThreshold       time.Duration
	MaxInterpFrames    int
	InterpBufferFrames int
	InterpBufferBytes  int
	PauseDuration      time.Duration
	PauseRefresh       time.Duration
}

func (o *Options) applyDefaults() {
	if o.Boundary == "" {
		o.Boundary = "frame"
	}
	if o.MaxFPS <= 0 {
		o.MaxFPS = 30
	}
	if o.GapThreshold <= 0 {
		o.GapThreshold = 500 * time.Millisecond
	}
	if o.MaxInterpFrames <= 0 {
		o.MaxInterpFrames = 5
	}
	if o.PauseDuration <= 0 {
		o.PauseDuration = 5 * time.Minute
	}
	if o.PauseRefresh <= 0 {
		o.PauseRefresh = time.Second
	}
}

// Stats é o retrato de conectividade e dos contadores de interpolação.
type Stats struct {
	Connected          bool    `json:"connected"`
	Clients            int     `json:"clients"`
	PausedClients      int     `json:"paused_clients"`
	HasLastFrame       bool    `json:"has_last_frame"`
	GapCount           int64   `json:"gap_count"`
	MeanGapMs          float64 `json:"mean_gap_ms"`
	InterpolatedFrames int64   `json:"interpolated_frames"`
}

// Engine distribui frames extraídos para todos os viewers conectados.
//
// Todo o estado compartilhado (clientes, pausa, buffer de interpolação,
// contadores) é serializado por um único mutex: subscribe/unsubscribe,
// broadcast e notificações de sink fechado são logicamente concorrentes.
type Engine struct {
	opts    Options
	emitter *events.Emitter

	mu            sync.Mutex
	clients       map[string]*ViewerClient
	interp        *InterpolationBuffer
	connected     bool
	lastBroadcast time.Time

	gapCount     int64
	gapTotal     time.Duration
	interpolated int64

	pause       PauseState
	pauseTimer  *time.Timer
	refreshStop chan struct{}
}

func NewEngine(opts Options, emitter *events.Emitter) *Engine {
	opts.applyDefaults()
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	return &Engine{
		opts:    opts,
		emitter: emitter,
		clients: make(map[string]*ViewerClient),
		interp:  NewInterpolationBuffer(opts.InterpBufferFrames, opts.InterpBufferBytes),
	}
}

// Emitter retorna o ponto de observação de frames e eventos do engine.
func (e *Engine) Emitter() *events.Emitter {
	return e.emitter
}

// maxInterval é o intervalo mínimo entre broadcasts imposto pelo teto global.
func (e *Engine) maxInterval() time.Duration {
	return time.Duration(float64(time.Second) / e.opts.MaxFPS)
}

func (e *Engine) wireEnvelope(jpegData []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(jpegData) + 64)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", e.opts.Boundary)
	b.Write(jpegData)
	b.WriteString("\r\n")
	return b.Bytes()
}

// Boundary retorna o token declarado no header da resposta de subscribe.
func (e *Engine) Boundary() string {
	return e.opts.Boundary
}

// Subscribe registra um viewer e envia imediatamente o último frame bom
// conhecido, para que o primeiro quadro não espere um intervalo inteiro.
func (e *Engine) Subscribe(clientID string, sink Sink, targetFPS float64) {
	c := &ViewerClient{
		ID:        clientID,
		sink:      sink,
		targetFPS: targetFPS,
	}

	e.mu.Lock()
	if old, ok := e.clients[clientID]; ok {
		old.sink.Close()
	}
	e.clients[clientID] = c

	var firstPaint []byte
	if e.pause.paused && len(e.pause.placeholder.Data) > 0 {
		firstPaint = e.pause.placeholder.Data
	} else if last, ok := e.interp.Last(); ok {
		firstPaint = last.Data
	}
	if firstPaint != nil {
		if ok, err := c.sink.TryWrite(e.wireEnvelope(firstPaint)); err == nil && ok {
			c.lastDelivery = time.Now()
		}
	}
	count := len(e.clients)
	e.mu.Unlock()

	// Sink fechado é o único sinal de cancelamento de um viewer
	go func() {
		<-sink.Closed()
		e.mu.Lock()
		if cur, ok := e.clients[clientID]; ok && cur == c {
			e.removeLocked(clientID)
		}
		e.mu.Unlock()
	}()

	metrics.ClientsConnected.Set(float64(count))
	logger.Log.Infow("Viewer conectado",
		"client_id", clientID,
		"target_fps", targetFPS,
		"clients", count)
}

// Unsubscribe remove um viewer. Idempotente.
func (e *Engine) Unsubscribe(clientID string) {
	e.mu.Lock()
	e.removeLocked(clientID)
	count := len(e.clients)
	e.mu.Unlock()

	metrics.ClientsConnected.Set(float64(count))
}

func (e *Engine) removeLocked(clientID string) {
	c, ok := e.clients[clientID]
	if !ok {
		return
	}
	delete(e.clients, clientID)
	c.sink.Close()
}

// OnFrame é chamado uma vez por frame extraído do pipeline upstream.
//
// Frames acima do teto global de FPS são descartados para broadcast mas ainda
// atualizam o cache de último frame bom e seguem para o ring de pré-gravação
// e para a gravação (contrato do pipeline de movimento).
func (e *Engine) OnFrame(frame mjpeg.Frame) {
	now := time.Now()
	valid := frame.Valid()

	metrics.FrameSizeBytes.Observe(float64(frame.Size()))

	e.mu.Lock()
	throttled := !e.lastBroadcast.IsZero() && now.Sub(e.lastBroadcast) < e.maxInterval()
	if throttled {
		if valid {
			e.interp.Add(frame)
		}
		metrics.FramesDropped.WithLabelValues("rate_ceiling").Inc()
	} else {
		// Preenche a lacuna antes de atualizar o cache: o frame repetido é o
		// último frame bom de antes da lacuna, não o que acabou de chegar
		e.fillGapLocked(now)
		if valid {
			e.interp.Add(frame)
		}

		payload := frame.Data
		if e.pause.paused && len(e.pause.placeholder.Data) > 0 {
			payload = e.pause.placeholder.Data
		}
		e.broadcastLocked(e.wireEnvelope(payload))
		e.lastBroadcast = now
		metrics.FramesBroadcast.Inc()
	}
	e.mu.Unlock()

	// Caminho de gravação/pré-buffer: frames inválidos são descartados aqui
	// mesmo quando transmitidos acima (exibição best-effort)
	if valid {
		e.emitter.EmitFrame(frame)
	}
}

// fillGapLocked mascara uma lacuna de entrega reenviando o último frame bom
// um número limitado de vezes. Reenvio do último frame real, não interpolação
// verdadeira: a ilusão barata de movimento é intencional.
//
// Durante a pausa administrativa nenhum frame real pode chegar aos viewers, e
// o placeholderLoop já mantém o stream vivo num tick fixo: lacunas não são
// preenchidas.
func (e *Engine) fillGapLocked(now time.Time) {
	if e.pause.paused {
		return
	}
	if e.lastBroadcast.IsZero() {
		return
	}
	gap := now.Sub(e.lastBroadcast)
	if gap <= e.opts.GapThreshold {
		return
	}

	e.gapCount++
	e.gapTotal += gap
	metrics.GapsFilled.Inc()

	last, ok := e.interp.Last()
	if !ok {
		return
	}

	missed := int(gap / e.maxInterval())
	if missed > e.opts.MaxInterpFrames {
		missed = e.opts.MaxInterpFrames
	}
	if missed <= 0 {
		return
	}

	wire := e.wireEnvelope(last.Data)
	for i := 0; i < missed; i++ {
		e.broadcastLocked(wire)
	}
	e.interpolated += int64(missed)
	metrics.InterpolatedFrames.Add(float64(missed))

	logger.Log.Debugw("Lacuna de entrega preenchida",
		"gap", gap.String(),
		"repeated_frames", missed)
}

// broadcastLocked percorre o conjunto de viewers uma única vez. Clientes
// mortos detectados no meio da iteração são removidos só após o passe
// completo.
func (e *Engine) broadcastLocked(wire []byte) {
	now := time.Now()
	var dead []string
	paused := 0

	for id, c := range e.clients {
		if c.paused {
			if !c.sink.CanAccept() {
				paused++
				continue
			}
			c.paused = false
		}

		// Throttle por cliente: pula só este frame, sem tocar lastDelivery
		if iv := c.minInterval(); iv > 0 && now.Sub(c.lastDelivery) < iv {
			continue
		}

		ok, err := c.sink.TryWrite(wire)
		if err != nil {
			c.dead = true
			dead = append(dead, id)
			continue
		}
		if !ok {
			c.paused = true
			c.pauseCount++
			paused++
			metrics.FramesDropped.WithLabelValues("backpressure").Inc()
			continue
		}
		c.lastDelivery = now
	}

	for _, id := range dead {
		logger.Log.Infow("Viewer removido por falha de escrita", "client_id", id)
		e.removeLocked(id)
	}
	if len(dead) > 0 {
		metrics.ClientsConnected.Set(float64(len(e.clients)))
	}
	metrics.ClientsPaused.Set(float64(paused))
}

// PauseStream ativa a pausa administrativa. Retorna false se já pausado.
func (e *Engine) PauseStream() bool {
	e.mu.Lock()
	if e.pause.paused {
		e.mu.Unlock()
		return false
	}

	now := time.Now()
	e.pause.paused = true
	e.pause.startedAt = now
	e.pause.deadline = now.Add(e.opts.PauseDuration)
	e.regeneratePlaceholderLocked(now)

	stop := make(chan struct{})
	e.refreshStop = stop
	// A pausa expira sozinha mesmo sem resume explícito
	e.pauseTimer = time.AfterFunc(e.opts.PauseDuration, func() {
		e.ResumeStream()
	})
	e.mu.Unlock()

	go e.placeholderLoop(stop)

	logger.Log.Infow("Stream pausado",
		"duration", e.opts.PauseDuration.String())
	return true
}

// ResumeStream desfaz a pausa. Retorna false se não estava pausado.
func (e *Engine) ResumeStream() bool {
	e.mu.Lock()
	if !e.pause.paused {
		e.mu.Unlock()
		return false
	}

	e.pause = PauseState{}
	if e.pauseTimer != nil {
		// Parar um timer que já disparou é um no-op seguro
		e.pauseTimer.Stop()
		e.pauseTimer = nil
	}
	if e.refreshStop != nil {
		close(e.refreshStop)
		e.refreshStop = nil
	}
	e.mu.Unlock()

	logger.Log.Info("Stream retomado")
	return true
}

// placeholderLoop regenera e transmite o placeholder num tick fixo enquanto
// a pausa durar, para o contador regressivo andar mesmo sem frames upstream.
func (e *Engine) placeholderLoop(stop chan struct{}) {
	ticker := time.NewTicker(e.opts.PauseRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if !e.pause.paused {
				e.mu.Unlock()
				return
			}
			e.regeneratePlaceholderLocked(time.Now())
			if len(e.pause.placeholder.Data) > 0 {
				e.broadcastLocked(e.wireEnvelope(e.pause.placeholder.Data))
			}
			e.mu.Unlock()
		}
	}
}

func (e *Engine) regeneratePlaceholderLocked(now time.Time) {
	data, err := RenderPlaceholder(e.pause.Remaining(now))
	if err != nil {
		logger.Log.Errorw("Erro ao gerar placeholder", "error", err)
		return
	}
	e.pause.placeholder = mjpeg.Frame{Data: data, Timestamp: now}
}

// GetPauseStatus retorna o flag de pausa e os segundos restantes.
func (e *Engine) GetPauseStatus() (bool, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pause.paused {
		return false, 0
	}
	return true, e.pause.Remaining(time.Now()).Seconds()
}

// SetConnected é chamado pelo gerenciador de conexão upstream. Na queda,
// todos os sinks são fechados e o conjunto de viewers esvaziado: os viewers
// reassinam contra o stream novo em vez de receber frames velhos.
func (e *Engine) SetConnected(connected bool) {
	e.mu.Lock()
	changed := e.connected != connected
	e.connected = connected

	if !connected {
		for id, c := range e.clients {
			c.sink.Close()
			delete(e.clients, id)
		}
		metrics.ClientsConnected.Set(0)
	}
	e.mu.Unlock()

	if changed {
		if connected {
			metrics.UpstreamConnected.Set(1)
		} else {
			metrics.UpstreamConnected.Set(0)
		}
		e.emitter.EmitStatus(connected)
	}
}

// LastFrame retorna o último frame bom conhecido (cópia rasa; o dado é
// imutável após a extração).
func (e *Engine) LastFrame() (mjpeg.Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interp.Last()
}

// TrimInterpolation descarta o histórico de interpolação sob pressão de
// memória, mantendo só o último frame bom.
func (e *Engine) TrimInterpolation() {
	e.mu.Lock()
	e.interp.Trim()
	e.mu.Unlock()
}

func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	paused := 0
	for _, c := range e.clients {
		if c.paused {
			paused++
		}
	}

	meanGapMs := float64(0)
	if e.gapCount > 0 {
		meanGapMs = float64(e.gapTotal.Milliseconds()) / float64(e.gapCount)
	}

	_, hasLast := e.interp.Last()

	return Stats{
		Connected:          e.connected,
		Clients:            len(e.clients),
		PausedClients:      paused,
		HasLastFrame:       hasLast,
		GapCount:           e.gapCount,
		MeanGapMs:          meanGapMs,
		InterpolatedFrames: e.interpolated,
	}
}
