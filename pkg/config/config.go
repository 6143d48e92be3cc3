package config

import (
	"time"

	"github.com/spf13/viper"
)

type UpstreamConfig struct {
	URL               string `mapstructure:"url"`
	ControlURL        string `mapstructure:"control_url"`
	ReconnectSeconds  int    `mapstructure:"reconnect_seconds"`
	IdleTimeoutSec    int    `mapstructure:"idle_timeout_seconds"`
	CircuitMaxFails   int    `mapstructure:"circuit_max_failures"`
	CircuitResetSec   int    `mapstructure:"circuit_reset_seconds"`
}

type StreamConfig struct {
	MaxFPS             float64 `mapstructure:"max_fps"`
	Boundary           string  `mapstructure:"boundary"`
	GapThresholdMs     int     `mapstructure:"gap_threshold_ms"`
	MaxInterpFrames    int     `mapstructure:"max_interp_frames"`
	InterpBufferFrames int     `mapstructure:"interp_buffer_frames"`
	InterpBufferMB     int     `mapstructure:"interp_buffer_mb"`
	QueueSize          int     `mapstructure:"queue_size"`
}

type PauseConfig struct {
	DurationSeconds int `mapstructure:"duration_seconds"`
	RefreshSeconds  int `mapstructure:"refresh_seconds"`
}

type PreBufferConfig struct {
	Seconds    int  `mapstructure:"seconds"`
	NominalFPS int  `mapstructure:"nominal_fps"`
	CopyFrames bool `mapstructure:"copy_frames"`
}

type RecordingConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	OutputDir          string `mapstructure:"output_dir"`
	PostTriggerSeconds int    `mapstructure:"post_trigger_seconds"`
	CooldownSeconds    int    `mapstructure:"cooldown_seconds"`
	MaxConcurrent      int    `mapstructure:"max_concurrent"`
	MaxFrames          int    `mapstructure:"max_frames"`
	RetentionTopK      int    `mapstructure:"retention_top_k"`
	EncodeFPS          int    `mapstructure:"encode_fps"`
	MaxWorkers         int    `mapstructure:"max_workers"`
	WorkerQueueSize    int    `mapstructure:"worker_queue_size"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	MotionTopic string `mapstructure:"motion_topic"`
}

type AMQPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AmqpURL    string `mapstructure:"amqp_url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

type RedisConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Address         string `mapstructure:"address"`
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
	Prefix          string `mapstructure:"prefix"`
	SnapshotSeconds int    `mapstructure:"snapshot_seconds"`
}

type Compression struct {
	Enabled bool `mapstructure:"enabled"`
	Level   int  `mapstructure:"level"`
}

type S3Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	KeyID    string `mapstructure:"key_id"`
	AppKey   string `mapstructure:"app_key"`
}

type Config struct {
	ListenAddr  string          `mapstructure:"listen_addr"`
	MaxMemoryMB uint64          `mapstructure:"max_memory_mb"`
	Upstream    UpstreamConfig  `mapstructure:"upstream"`
	Stream      StreamConfig    `mapstructure:"stream"`
	Pause       PauseConfig     `mapstructure:"pause"`
	PreBuffer   PreBufferConfig `mapstructure:"pre_buffer"`
	Recording   RecordingConfig `mapstructure:"recording"`
	MQTT        MQTTConfig      `mapstructure:"mqtt"`
	AMQP        AMQPConfig      `mapstructure:"amqp"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Compression Compression     `mapstructure:"compression"`
	S3          S3Config        `mapstructure:"s3"`
}

// GetMaxFrameInterval calcula o intervalo mínimo entre frames transmitidos
// com base no teto global de FPS. Retorna um padrão de 30 FPS se inválido.
func (c *Config) GetMaxFrameInterval() time.Duration {
	if c.Stream.MaxFPS <= 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) / c.Stream.MaxFPS)
}

// GetReconnectDelay retorna o atraso base entre tentativas de reconexão.
func (c *Config) GetReconnectDelay() time.Duration {
	if c.Upstream.ReconnectSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Upstream.ReconnectSeconds) * time.Second
}

// GetIdleTimeout retorna o timeout de conexão/inatividade do upstream.
func (c *Config) GetIdleTimeout() time.Duration {
	if c.Upstream.IdleTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Upstream.IdleTimeoutSec) * time.Second
}

// GetGapThreshold retorna o limiar de detecção de lacunas na entrega.
func (c *Config) GetGapThreshold() time.Duration {
	if c.Stream.GapThresholdMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Stream.GapThresholdMs) * time.Millisecond
}

// GetPauseDuration retorna a duração máxima de uma pausa administrativa.
func (c *Config) GetPauseDuration() time.Duration {
	if c.Pause.DurationSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Pause.DurationSeconds) * time.Second
}

// GetPauseRefresh retorna o intervalo de regeneração do placeholder de pausa.
func (c *Config) GetPauseRefresh() time.Duration {
	if c.Pause.RefreshSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.Pause.RefreshSeconds) * time.Second
}

// GetBoundary retorna o token de boundary do envelope multipart.
func (c *Config) GetBoundary() string {
	if c.Stream.Boundary == "" {
		return "frame"
	}
	return c.Stream.Boundary
}

// PreBufferCapacity calcula a capacidade do ring buffer de pré-gravação.
func (c *Config) PreBufferCapacity() int {
	seconds := c.PreBuffer.Seconds
	if seconds <= 0 {
		seconds = 5
	}
	fps := c.PreBuffer.NominalFPS
	if fps <= 0 {
		fps = 15
	}
	return seconds * fps
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
