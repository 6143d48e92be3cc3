package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/T3-Labs/coop-cam/pkg/util"
)

// RedisStore persiste o último frame bom do engine como snapshot com TTL,
// para dashboards externos pegarem uma imagem parada sem entrar no stream
// MJPEG.
type RedisStore struct {
	client     *redis.Client
	keys       *KeyGenerator
	ttl        time.Duration
	compressor *util.Compressor
	enabled    bool
}

// NewRedisStore cria o store de snapshots. Compressor nil guarda os frames
// crus.
func NewRedisStore(addr string, ttlSeconds int, keys *KeyGenerator, compressor *util.Compressor, enabled bool) *RedisStore {
	if !enabled {
		return &RedisStore{enabled: false}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return &RedisStore{
		client:     rdb,
		keys:       keys,
		ttl:        time.Duration(ttlSeconds) * time.Second,
		compressor: compressor,
		enabled:    true,
	}
}

// Enabled informa se o store de snapshots está ativo.
func (r *RedisStore) Enabled() bool {
	return r.enabled
}

// SaveSnapshot grava o frame sob uma chave única e renova a chave estável
// "latest", ambas com o TTL configurado.
func (r *RedisStore) SaveSnapshot(ctx context.Context, timestamp time.Time, data []byte) (string, error) {
	if !r.enabled {
		return "", nil
	}

	if r.compressor != nil {
		data = r.compressor.Compress(data)
	}

	key := r.keys.GenerateKey(timestamp)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, r.ttl)
	pipe.Set(ctx, r.keys.LatestKey(), data, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("falha ao gravar snapshot no redis: %w", err)
	}
	return key, nil
}

// GetLatest retorna o snapshot mais recente, descomprimindo quando preciso.
func (r *RedisStore) GetLatest(ctx context.Context) ([]byte, error) {
	if !r.enabled {
		return nil, nil
	}

	data, err := r.client.Get(ctx, r.keys.LatestKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao ler snapshot do redis: %w", err)
	}

	if r.compressor != nil {
		return util.Decompress(data)
	}
	return data, nil
}

// Close libera a conexão com o Redis.
func (r *RedisStore) Close() error {
	if !r.enabled || r.client == nil {
		return nil
	}
	return r.client.Close()
}
