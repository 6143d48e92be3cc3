package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_frames_extracted_total",
			Help: "Total de frames JPEG extraídos do stream upstream",
		},
	)

	FramesBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_frames_broadcast_total",
			Help: "Total de frames transmitidos aos clientes",
		},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coop_cam_frames_dropped_total",
			Help: "Total de frames descartados",
		},
		[]string{"reason"},
	)

	GapsFilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_gaps_filled_total",
			Help: "Total de lacunas de entrega preenchidas por repetição de frame",
		},
	)

	InterpolatedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_interpolated_frames_total",
			Help: "Total de frames repetidos para mascarar lacunas",
		},
	)

	ClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coop_cam_clients_connected",
			Help: "Número de clientes conectados ao stream",
		},
	)

	ClientsPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coop_cam_clients_paused",
			Help: "Número de clientes pausados por backpressure",
		},
	)

	UpstreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coop_cam_upstream_connected",
			Help: "Status da conexão upstream (0=desconectado, 1=conectado)",
		},
	)

	UpstreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_upstream_reconnects_total",
			Help: "Total de reconexões agendadas ao upstream",
		},
	)

	RecordingsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coop_cam_recordings_triggered_total",
			Help: "Total de gatilhos de movimento recebidos",
		},
		[]string{"outcome"},
	)

	RecordingsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coop_cam_recordings_completed_total",
			Help: "Total de gravações finalizadas",
		},
		[]string{"status"},
	)

	RecordingsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coop_cam_recordings_deleted_total",
			Help: "Total de gravações removidas pela retenção",
		},
	)

	EncodeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coop_cam_encode_latency_seconds",
			Help:    "Latência de codificação das gravações",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FrameSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coop_cam_frame_size_bytes",
			Help:    "Tamanho dos frames em bytes",
			Buckets: []float64{1024, 5120, 10240, 51200, 102400, 512000, 1048576},
		},
	)

	PreBufferOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coop_cam_pre_buffer_occupancy",
			Help: "Ocupação atual do ring buffer de pré-gravação",
		},
	)

	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coop_cam_storage_operations_total",
			Help: "Total de operações de armazenamento",
		},
		[]string{"operation", "status"},
	)
)
