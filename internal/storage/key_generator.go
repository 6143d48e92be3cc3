package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyStrategy define a estratégia de geração de chaves de snapshot
type KeyStrategy string

const (
	// StrategyBasic usa apenas timestamp
	StrategyBasic KeyStrategy = "basic"
	// StrategySequence usa timestamp + contador sequencial (padrão)
	StrategySequence KeyStrategy = "sequence"
	// StrategyUUID usa timestamp + UUID (para múltiplas instâncias)
	StrategyUUID KeyStrategy = "uuid"
)

// KeyGeneratorConfig configuração do gerador de chaves
type KeyGeneratorConfig struct {
	Strategy KeyStrategy
	Prefix   string
	Camera   string // identificador da câmera de origem
}

// KeyGenerator gera chaves únicas para snapshots no Redis
type KeyGenerator struct {
	config   KeyGeneratorConfig
	sequence uint64
	mu       sync.Mutex
}

func NewKeyGenerator(config KeyGeneratorConfig) *KeyGenerator {
	if config.Strategy == "" {
		config.Strategy = StrategySequence
	}
	if config.Camera == "" {
		config.Camera = "default"
	}
	if config.Prefix == "" {
		config.Prefix = "snapshots"
	}

	return &KeyGenerator{config: config}
}

// GenerateKey gera uma chave única para um snapshot
// Formato: {prefix}:{camera}:{unix_timestamp}:{sufixo}
// Exemplo: snapshots:coop:1731024000123456789:00001
func (kg *KeyGenerator) GenerateKey(timestamp time.Time) string {
	baseKey := fmt.Sprintf("%s:%s:%d",
		kg.config.Prefix,
		kg.config.Camera,
		timestamp.UnixNano(),
	)

	switch kg.config.Strategy {
	case StrategySequence:
		return fmt.Sprintf("%s:%05d", baseKey, kg.nextSequence())
	case StrategyUUID:
		return fmt.Sprintf("%s:%s", baseKey, uuid.New().String()[:8])
	case StrategyBasic:
		fallthrough
	default:
		return baseKey
	}
}

// LatestKey é a chave estável que aponta sempre para o snapshot mais recente.
func (kg *KeyGenerator) LatestKey() string {
	return fmt.Sprintf("%s:%s:latest", kg.config.Prefix, kg.config.Camera)
}

// KeyComponents são as partes decompostas de uma chave de snapshot
type KeyComponents struct {
	Prefix    string
	Camera    string
	Timestamp time.Time
	Suffix    string
}

// ParseKey extrai os componentes de uma chave
func (kg *KeyGenerator) ParseKey(key string) (*KeyComponents, error) {
	// Formato: prefix:camera:unix_timestamp[:suffix]
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("formato de chave inválido: %s", key)
	}

	remaining := parts[2]
	lastColon := strings.LastIndex(remaining, ":")

	var timestampStr, suffix string
	if lastColon > 0 {
		timestampStr = remaining[:lastColon]
		suffix = remaining[lastColon+1:]
	} else {
		timestampStr = remaining
	}

	var unixNano int64
	if _, err := fmt.Sscanf(timestampStr, "%d", &unixNano); err != nil {
		return nil, fmt.Errorf("timestamp inválido na chave: %w", err)
	}

	return &KeyComponents{
		Prefix:    parts[0],
		Camera:    parts[1],
		Timestamp: time.Unix(0, unixNano),
		Suffix:    suffix,
	}, nil
}

// QueryPattern retorna o padrão para varrer as chaves de uma câmera no Redis
func (kg *KeyGenerator) QueryPattern(camera string) string {
	if camera == "" {
		camera = kg.config.Camera
	}
	return fmt.Sprintf("%s:%s:*", kg.config.Prefix, camera)
}

func (kg *KeyGenerator) nextSequence() uint64 {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.sequence++
	// Reset após 99999 para manter o formato de 5 dígitos
	if kg.sequence > 99999 {
		kg.sequence = 1
	}
	return kg.sequence
}
