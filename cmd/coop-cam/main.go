package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	istorage "github.com/T3-Labs/coop-cam/internal/storage"
	"github.com/T3-Labs/coop-cam/pkg/circuit"
	"github.com/T3-Labs/coop-cam/pkg/config"
	"github.com/T3-Labs/coop-cam/pkg/events"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/memcontrol"
	"github.com/T3-Labs/coop-cam/pkg/motion"
	"github.com/T3-Labs/coop-cam/pkg/recorder"
	"github.com/T3-Labs/coop-cam/pkg/ring"
	"github.com/T3-Labs/coop-cam/pkg/store"
	"github.com/T3-Labs/coop-cam/pkg/stream"
	"github.com/T3-Labs/coop-cam/pkg/util"
	"github.com/T3-Labs/coop-cam/pkg/worker"
)

var version = "dev" // Definido no build com -ldflags

func main() {
	configPath := flag.String("config", "config.yaml", "caminho do arquivo de configuração")
	dev := flag.Bool("dev", false, "logging de desenvolvimento")
	flag.Parse()

	if err := logger.InitLogger(*dev); err != nil {
		log.Fatalf("erro ao inicializar logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalw("Erro ao carregar configuração", "path", *configPath, "error", err)
	}

	logger.Log.Infow("Coop Cam iniciando",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"upstream", cfg.Upstream.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter := events.NewEmitter()

	engine := stream.NewEngine(stream.Options{
		Boundary:           cfg.GetBoundary(),
		MaxFPS:             cfg.Stream.MaxFPS,
		GapThreshold:       cfg.GetGapThreshold(),
		MaxInterpFrames:    cfg.Stream.MaxInterpFrames,
		InterpBufferFrames: cfg.Stream.InterpBufferFrames,
		InterpBufferBytes:  cfg.Stream.InterpBufferMB * 1024 * 1024,
		PauseDuration:      cfg.GetPauseDuration(),
		PauseRefresh:       cfg.GetPauseRefresh(),
	}, emitter)

	maxFails := int64(cfg.Upstream.CircuitMaxFails)
	if maxFails <= 0 {
		maxFails = 5
	}
	resetTimeout := time.Duration(cfg.Upstream.CircuitResetSec) * time.Second
	breaker := circuit.NewBreaker("upstream", maxFails, resetTimeout)

	source := stream.NewSource(ctx, stream.SourceOptions{
		URL:            cfg.Upstream.URL,
		ReconnectDelay: cfg.GetReconnectDelay(),
		IdleTimeout:    cfg.GetIdleTimeout(),
		QueueSize:      cfg.Stream.QueueSize,
	}, engine, breaker)
	source.Start()
	defer source.Stop()

	preBuffer := ring.NewPreBuffer(cfg.PreBufferCapacity(), cfg.PreBuffer.CopyFrames)
	preBuffer.Attach(emitter)
	defer preBuffer.Detach()

	provider, err := store.New(cfg)
	if err != nil {
		logger.Log.Fatalw("Erro ao inicializar armazenamento", "error", err)
	}

	var rec *recorder.Recorder
	if cfg.Recording.Enabled {
		workers := cfg.Recording.MaxWorkers
		if workers <= 0 {
			workers = 2
		}
		queueSize := cfg.Recording.WorkerQueueSize
		if queueSize <= 0 {
			queueSize = 8
		}
		pool := worker.NewPool(ctx, workers, queueSize)
		defer pool.Close()

		rec = recorder.NewRecorder(recorder.Options{
			PostTrigger:   time.Duration(cfg.Recording.PostTriggerSeconds) * time.Second,
			Cooldown:      time.Duration(cfg.Recording.CooldownSeconds) * time.Second,
			MaxConcurrent: cfg.Recording.MaxConcurrent,
			MaxFrames:     cfg.Recording.MaxFrames,
			EncodeFPS:     cfg.Recording.EncodeFPS,
			RetentionTopK: cfg.Recording.RetentionTopK,
		}, emitter, preBuffer, pool, provider, recorder.NewFFmpegEncoder())

		if cfg.MQTT.Enabled {
			subscriber, err := motion.NewSubscriber(cfg.MQTT.Broker, cfg.MQTT.MotionTopic, rec)
			if err != nil {
				logger.Log.Fatalw("Erro ao conectar no broker MQTT", "error", err)
			}
			defer subscriber.Close()
		}
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.AmqpURL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey, cfg.AMQP.Enabled)
	if err != nil {
		logger.Log.Fatalw("Erro ao conectar no RabbitMQ", "error", err)
	}
	defer publisher.Close()
	publisher.Attach(emitter)

	snapshots := setupSnapshotStore(cfg)
	defer snapshots.Close()
	if snapshots.Enabled() {
		go snapshotLoop(ctx, cfg, engine, snapshots)
	}

	memController := memcontrol.NewController(cfg.MaxMemoryMB)
	memController.OnLevel(memcontrol.MemoryCritical, func(stats memcontrol.MemoryStats) {
		engine.TrimInterpolation()
	})
	memController.Start()
	defer memController.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newMux(cfg, engine, source, preBuffer, rec, snapshots),
	}

	go func() {
		logger.Log.Infow("Servidor HTTP escutando", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalw("Servidor HTTP falhou", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Log.Infow("Encerrando", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnw("Encerramento do servidor HTTP forçado", "error", err)
	}
	cancel()
}

func setupSnapshotStore(cfg *config.Config) *istorage.RedisStore {
	var compressor *util.Compressor
	if cfg.Compression.Enabled {
		var err error
		compressor, err = util.NewCompressor(cfg.Compression.Level)
		if err != nil {
			logger.Log.Fatalw("Erro ao criar compressor", "error", err)
		}
	}

	keys := istorage.NewKeyGenerator(istorage.KeyGeneratorConfig{
		Prefix: cfg.Redis.Prefix,
		Camera: "coop",
	})
	return istorage.NewRedisStore(cfg.Redis.Address, cfg.Redis.TTLSeconds, keys, compressor, cfg.Redis.Enabled)
}

// snapshotLoop grava periodicamente o último frame bom no Redis para
// consumidores que só querem uma imagem parada.
func snapshotLoop(ctx context.Context, cfg *config.Config, engine *stream.Engine, snapshots *istorage.RedisStore) {
	interval := time.Duration(cfg.Redis.SnapshotSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := engine.LastFrame()
			if !ok {
				continue
			}
			saveCtx, saveCancel := context.WithTimeout(ctx, 5*time.Second)
			if _, err := snapshots.SaveSnapshot(saveCtx, frame.Timestamp, frame.Data); err != nil {
				logger.Log.Warnw("Falha ao gravar snapshot", "error", err)
			}
			saveCancel()
		}
	}
}
