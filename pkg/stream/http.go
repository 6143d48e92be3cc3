package stream

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/T3-Labs/coop-cam/pkg/logger"
)

// Handler expõe o stream MJPEG para viewers HTTP. A resposta nunca fecha
// enquanto o cliente estiver assinado; fechar a conexão é o sinal de
// cancelamento.
type Handler struct {
	engine   *Engine
	sinkSize int
}

func NewHandler(engine *Engine, sinkSize int) *Handler {
	return &Handler{engine: engine, sinkSize: sinkSize}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming não suportado", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", h.engine.Boundary()))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var targetFPS float64
	if raw := r.URL.Query().Get("fps"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			targetFPS = parsed
		}
	}

	clientID := fmt.Sprintf("%s-%s", r.RemoteAddr, uuid.New().String()[:8])
	sink := NewChanSink(h.sinkSize)

	h.engine.Subscribe(clientID, sink, targetFPS)
	defer h.engine.Unsubscribe(clientID)

	for {
		select {
		case <-r.Context().Done():
			sink.Close()
			return

		case <-sink.Closed():
			// Upstream caiu ou o engine derrubou este viewer
			return

		case wire := <-sink.Frames():
			if _, err := w.Write(wire); err != nil {
				logger.Log.Debugw("Erro de escrita para viewer",
					"client_id", clientID,
					"error", err)
				sink.Close()
				return
			}
			flusher.Flush()
		}
	}
}
