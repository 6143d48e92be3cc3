package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	istorage "github.com/T3-Labs/coop-cam/internal/storage"
	"github.com/T3-Labs/coop-cam/pkg/camctl"
	"github.com/T3-Labs/coop-cam/pkg/config"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/recorder"
	"github.com/T3-Labs/coop-cam/pkg/ring"
	"github.com/T3-Labs/coop-cam/pkg/stream"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Coop Cam</title></head>
<body style="margin:0;background:#111;display:flex;justify-content:center;align-items:center;height:100vh">
<img src="/video" style="max-width:100%;max-height:100%" alt="Coop Cam">
</body>
</html>
`

func newMux(cfg *config.Config, engine *stream.Engine, source *stream.Source, preBuffer *ring.PreBuffer, rec *recorder.Recorder, snapshots *istorage.RedisStore) *http.ServeMux {
	mux := http.NewServeMux()
	camera := camctl.NewClient(cfg.Upstream.ControlURL)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexPage))
	})

	mux.Handle("/video", stream.NewHandler(engine, cfg.Stream.QueueSize))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/flashlight", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		body, status, err := camera.ToggleTorch(r.Context())
		if err != nil {
			logger.Log.Errorw("Erro no proxy da lanterna", "error", err)
			http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		w.Write(body)
	})

	// Imagem parada para consumidores que não querem entrar no stream: o
	// snapshot persistido no Redis, com fallback para o último frame bom
	mux.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		var data []byte
		if snapshots != nil {
			var err error
			data, err = snapshots.GetLatest(r.Context())
			if err != nil {
				logger.Log.Warnw("Erro ao ler snapshot do redis", "error", err)
			}
		}
		if data == nil {
			if frame, ok := engine.LastFrame(); ok {
				data = frame.Data
			}
		}
		if data == nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Write(data)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"stream":     engine.GetStats(),
			"queue":      source.QueueStats(),
			"pre_buffer": preBuffer.Stats(),
		}
		if rec != nil {
			stats["recorder"] = map[string]interface{}{
				"state":       rec.State().String(),
				"active_jobs": rec.ActiveJobs(),
			}
		}
		writeJSON(w, stats)
	})

	mux.HandleFunc("/api/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		changed := engine.PauseStream()
		paused, remaining := engine.GetPauseStatus()
		writeJSON(w, map[string]interface{}{
			"changed":           changed,
			"paused":            paused,
			"remaining_seconds": remaining,
		})
	})

	mux.HandleFunc("/api/resume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		changed := engine.ResumeStream()
		paused, remaining := engine.GetPauseStatus()
		writeJSON(w, map[string]interface{}{
			"changed":           changed,
			"paused":            paused,
			"remaining_seconds": remaining,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Warnw("Erro ao serializar resposta", "error", err)
	}
}
