package stream

import (
	"sync"
	"time"
)

// Sink é a saída de um viewer. Escritas nunca bloqueiam o caminho de
// broadcast: um sink que não consegue aceitar mais dados sinaliza backpressure
// e o engine marca o cliente como pausado em vez de travar a iteração.
type Sink interface {
	// TryWrite tenta entregar sem bloquear. ok=false indica backpressure
	// (o dado não foi aceito); err != nil indica sink morto.
	TryWrite(p []byte) (ok bool, err error)
	// CanAccept informa se o sink drenou e pode voltar a receber.
	CanAccept() bool
	// Closed é fechado quando o lado remoto desconecta.
	Closed() <-chan struct{}
	// Close encerra o sink. Chamadas repetidas são inofensivas.
	Close() error
}

// ViewerClient é o estado por espectador. Propriedade exclusiva do Engine:
// nenhum outro componente muta estes campos.
type ViewerClient struct {
	ID           string
	sink         Sink
	targetFPS    float64
	lastDelivery time.Time
	paused       bool
	pauseCount   int64
	dead         bool
}

// minInterval retorna o intervalo mínimo entre entregas para este cliente,
// ou zero quando o cliente não limita FPS.
func (c *ViewerClient) minInterval() time.Duration {
	if c.targetFPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.targetFPS)
}

// ChanSink implementa Sink sobre um channel com buffer. É o sink usado pelo
// handler HTTP: o broadcast enfileira sem bloquear e a goroutine da conexão
// drena no ritmo do socket do cliente.
type ChanSink struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewChanSink(capacity int) *ChanSink {
	if capacity <= 0 {
		capacity = 8
	}
	return &ChanSink{
		frames: make(chan []byte, capacity),
		closed: make(chan struct{}),
	}
}

func (s *ChanSink) TryWrite(p []byte) (bool, error) {
	select {
	case <-s.closed:
		return false, ErrSinkClosed
	default:
	}

	select {
	case s.frames <- p:
		return true, nil
	default:
		return false, nil
	}
}

// CanAccept só libera o cliente quando o canal drenou por completo, para não
// alternar pausa/retomada a cada frame com consumidores lentos.
func (s *ChanSink) CanAccept() bool {
	return len(s.frames) == 0
}

func (s *ChanSink) Closed() <-chan struct{} {
	return s.closed
}

func (s *ChanSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// Frames expõe o canal de leitura para a goroutine da conexão.
func (s *ChanSink) Frames() <-chan []byte {
	return s.frames
}
