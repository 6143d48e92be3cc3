package stream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/buffer"
	"github.com/T3-Labs/coop-cam/pkg/circuit"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
)

// SourceOptions configura o gerenciador de conexão upstream.
type SourceOptions struct {
	URL            string
	ReconnectDelay time.Duration
	IdleTimeout    time.Duration
	QueueSize      int
}

func (o *SourceOptions) applyDefaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 30
	}
}

// Source mantém a única conexão de saída com a câmera: reconexão com backoff,
// detecção de resposta ocupada/HTML e alimentação do extrator de frames.
//
// Uma única goroutine executa o ciclo conectar→ler→desconectar→esperar, então
// o agendamento de reconexão é naturalmente idempotente: nunca há duas
// reconexões pendentes.
type Source struct {
	opts    SourceOptions
	engine  *Engine
	breaker *circuit.Breaker
	queue   *buffer.FrameBuffer
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	seq       uint64
}

func NewSource(ctx context.Context, opts SourceOptions, engine *Engine, breaker *circuit.Breaker) *Source {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(ctx)

	return &Source{
		opts:    opts,
		engine:  engine,
		breaker: breaker,
		queue:   buffer.NewFrameBuffer(opts.QueueSize),
		client: &http.Client{
			// O dial TCP e a espera pelos headers respeitam o mesmo limite
			// duro; a inatividade pós-conexão fica com o watchdog em
			// streamOnce
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: opts.IdleTimeout,
				}).DialContext,
				ResponseHeaderTimeout: opts.IdleTimeout,
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Source) Start() {
	go s.connectLoop()
	go s.dispatchLoop()
}

func (s *Source) Stop() {
	s.cancel()
}

// Connected informa se há um stream upstream ativo agora.
func (s *Source) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// QueueStats expõe as estatísticas da fila de frames para introspecção.
func (s *Source) QueueStats() buffer.BufferStats {
	return s.queue.Stats()
}

func (s *Source) connectLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var err error
		if s.breaker.Allow() {
			err = s.streamOnce()
			if err != nil {
				s.breaker.RecordFailure()
			}
		} else {
			err = fmt.Errorf("circuit breaker aberto, aguardando backoff")
		}

		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.handleDisconnect(err)

		delay := s.opts.ReconnectDelay
		if s.breaker.State() == circuit.StateOpen && s.breaker.Backoff() > delay {
			delay = s.breaker.Backoff()
		}

		logger.Log.Infow("Reconexão agendada",
			"delay", delay.String(),
			"breaker_state", s.breaker.State().String())
		metrics.UpstreamReconnects.Inc()

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// streamOnce abre uma requisição de streaming e lê chunks até o stream
// terminar ou falhar. Qualquer retorno não-nil conta como falha no breaker.
func (s *Source) streamOnce() error {
	reqCtx, cancelReq := context.WithCancel(s.ctx)
	defer cancelReq()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("erro ao montar requisição upstream: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("erro ao conectar no upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream respondeu status %d", resp.StatusCode)
	}

	// Resposta com markup indica câmera ocupada ou página de erro:
	// abandona a tentativa como se fosse falha de transporte
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || strings.HasPrefix(contentType, "text/") {
		return fmt.Errorf("upstream ocupado: content-type %q", contentType)
	}

	// Conexão aberta e com content-type binário: conta como sucesso para o
	// breaker mesmo que o stream caia mais tarde
	s.breaker.RecordSuccess()

	s.setConnected(true)
	logger.Log.Infow("Conectado ao upstream",
		"url", s.opts.URL,
		"content_type", contentType)

	// Watchdog de inatividade: sem chunk dentro do timeout, derruba a
	// requisição e força reconexão
	idle := time.AfterFunc(s.opts.IdleTimeout, cancelReq)
	defer idle.Stop()

	chunk := make([]byte, 32*1024)
	var carry []byte

	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			idle.Reset(s.opts.IdleTimeout)
			carry = append(carry, chunk[:n]...)

			frames, rest := mjpeg.Extract(carry)
			carry = append(carry[:0:0], rest...)

			for _, data := range frames {
				s.mu.Lock()
				s.seq++
				seq := s.seq
				s.mu.Unlock()

				metrics.FramesExtracted.Inc()
				_ = s.queue.Push(mjpeg.Frame{
					Seq:       seq,
					Data:      data,
					Timestamp: time.Now(),
				})
			}
		}
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("stream upstream encerrou")
			}
			return fmt.Errorf("erro ao ler stream upstream: %w", err)
		}
	}
}

// dispatchLoop drena a fila e entrega cada frame ao engine no ritmo do
// consumidor, isolando a leitura do upstream do fan-out.
func (s *Source) dispatchLoop() {
	for {
		frame, ok := s.queue.PopBlocking(s.ctx)
		if !ok {
			return
		}
		s.engine.OnFrame(frame)
	}
}

// handleDisconnect limpa o estado de conexão. Os viewers são derrubados para
// reassinar contra o stream novo; a fila de frames não é esvaziada, então uma
// gravação em andamento finaliza com os frames que chegaram.
func (s *Source) handleDisconnect(err error) {
	wasConnected := s.setConnected(false)

	if wasConnected {
		logger.Log.Warnw("Desconectado do upstream", "error", err)
	} else if err != nil {
		logger.Log.Warnw("Tentativa de conexão upstream falhou", "error", err)
	}
}

func (s *Source) setConnected(connected bool) (was bool) {
	s.mu.Lock()
	was = s.connected
	s.connected = connected
	s.mu.Unlock()

	if was != connected {
		s.engine.SetConnected(connected)
	}
	return was
}
