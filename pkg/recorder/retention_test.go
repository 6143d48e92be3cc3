package recorder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T3-Labs/coop-cam/pkg/store"
)

func seedRecording(t *testing.T, p store.Provider, day, base string, score float64) {
	t.Helper()

	meta := Metadata{
		ID:         base,
		StartTime:  time.Now(),
		EndTime:    time.Now(),
		FrameCount: 10,
		Motion:     MotionMeta{Score: score},
	}
	raw, err := json.Marshal(meta)
	require.NoError(t, err)

	prefix := day + "/" + base
	require.NoError(t, p.Put(prefix+".json", bytes.NewReader(raw), "application/json"))
	require.NoError(t, p.Put(prefix+".mp4", bytes.NewReader([]byte("video")), "video/mp4"))
	require.NoError(t, p.Put(prefix+".jpg", bytes.NewReader([]byte("thumb")), "image/jpeg"))
	require.NoError(t, p.Put(prefix+".reactions.json", bytes.NewReader([]byte("[]")), "application/json"))
}

func TestEnforceRetentionKeepsTopK(t *testing.T) {
	p, err := store.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	day := "2026-08-23"
	scores := []float64{0.9, 0.7, 0.5, 0.3, 0.1}
	for i, score := range scores {
		seedRecording(t, p, day, fmt.Sprintf("rec_%d", i), score)
	}

	require.NoError(t, EnforceRetention(p, day, 3))

	keys, err := p.List(day + "/")
	require.NoError(t, err)

	// Sobram as 3 melhores, 4 arquivos cada
	assert.Len(t, keys, 12)
	for _, survivor := range []string{"rec_0", "rec_1", "rec_2"} {
		assert.Contains(t, keys, fmt.Sprintf("%s/%s.mp4", day, survivor))
		assert.Contains(t, keys, fmt.Sprintf("%s/%s.json", day, survivor))
		assert.Contains(t, keys, fmt.Sprintf("%s/%s.jpg", day, survivor))
		assert.Contains(t, keys, fmt.Sprintf("%s/%s.reactions.json", day, survivor))
	}
	for _, doomed := range []string{"rec_3", "rec_4"} {
		assert.NotContains(t, keys, fmt.Sprintf("%s/%s.mp4", day, doomed))
	}
}

func TestEnforceRetentionNoopBelowK(t *testing.T) {
	p, err := store.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	day := "2026-08-23"
	seedRecording(t, p, day, "rec_a", 0.2)
	seedRecording(t, p, day, "rec_b", 0.1)

	require.NoError(t, EnforceRetention(p, day, 3))

	keys, err := p.List(day + "/")
	require.NoError(t, err)
	assert.Len(t, keys, 8)
}

func TestEnforceRetentionIgnoresOtherDays(t *testing.T) {
	p, err := store.NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	seedRecording(t, p, "2026-08-22", "ontem", 0.05)
	for i := 0; i < 4; i++ {
		seedRecording(t, p, "2026-08-23", fmt.Sprintf("rec_%d", i), float64(i)/10)
	}

	require.NoError(t, EnforceRetention(p, "2026-08-23", 2))

	keys, err := p.List("2026-08-22/")
	require.NoError(t, err)
	assert.Len(t, keys, 4)
}
