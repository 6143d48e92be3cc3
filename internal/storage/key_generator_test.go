package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeySequence(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{
		Strategy: StrategySequence,
		Prefix:   "snapshots",
		Camera:   "coop",
	})

	ts := time.Unix(0, 1731024000123456789)

	key1 := kg.GenerateKey(ts)
	key2 := kg.GenerateKey(ts)

	assert.Equal(t, "snapshots:coop:1731024000123456789:00001", key1)
	assert.Equal(t, "snapshots:coop:1731024000123456789:00002", key2)
}

func TestGenerateKeyBasic(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{
		Strategy: StrategyBasic,
		Prefix:   "snapshots",
		Camera:   "coop",
	})

	ts := time.Unix(0, 42)
	assert.Equal(t, "snapshots:coop:42", kg.GenerateKey(ts))
}

func TestGenerateKeyUUIDUnique(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{
		Strategy: StrategyUUID,
		Prefix:   "snapshots",
		Camera:   "coop",
	})

	ts := time.Now()
	assert.NotEqual(t, kg.GenerateKey(ts), kg.GenerateKey(ts))
}

func TestDefaults(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{})

	assert.Equal(t, StrategySequence, kg.config.Strategy)
	assert.Equal(t, "snapshots", kg.config.Prefix)
	assert.Equal(t, "default", kg.config.Camera)
	assert.Equal(t, "snapshots:default:latest", kg.LatestKey())
}

func TestParseKeyRoundTrip(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{
		Strategy: StrategySequence,
		Prefix:   "snapshots",
		Camera:   "coop",
	})

	ts := time.Unix(0, 1731024000123456789)
	key := kg.GenerateKey(ts)

	parsed, err := kg.ParseKey(key)
	require.NoError(t, err)
	assert.Equal(t, "snapshots", parsed.Prefix)
	assert.Equal(t, "coop", parsed.Camera)
	assert.Equal(t, ts.UnixNano(), parsed.Timestamp.UnixNano())
	assert.Equal(t, "00001", parsed.Suffix)
}

func TestParseKeyInvalid(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{})

	_, err := kg.ParseKey("sem-separadores")
	assert.Error(t, err)

	_, err = kg.ParseKey("snapshots:coop:nao-e-numero")
	assert.Error(t, err)
}

func TestQueryPattern(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{Prefix: "snapshots", Camera: "coop"})

	assert.Equal(t, "snapshots:coop:*", kg.QueryPattern(""))
	assert.Equal(t, "snapshots:outra:*", kg.QueryPattern("outra"))
}

func TestSequenceWrapsAt99999(t *testing.T) {
	kg := NewKeyGenerator(KeyGeneratorConfig{Strategy: StrategySequence})
	kg.sequence = 99999

	key := kg.GenerateKey(time.Unix(0, 1))
	assert.Contains(t, key, ":00001")
}
