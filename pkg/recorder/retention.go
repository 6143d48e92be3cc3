package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
	"github.com/T3-Labs/coop-cam/pkg/store"
)

// companionSuffixes são os arquivos que compõem uma gravação, todos com a
// mesma base de nome.
var companionSuffixes = []string{".mp4", ".jpg", ".json", ".reactions.json"}

type candidate struct {
	base  string
	score float64
}

// EnforceRetention mantém só as topK gravações do dia por intensidade de
// movimento, removendo vídeo e companheiros das demais.
func EnforceRetention(provider store.Provider, day string, topK int) error {
	keys, err := provider.List(day + "/")
	if err != nil {
		return fmt.Errorf("erro ao listar gravações do dia %s: %w", day, err)
	}

	candidates := make([]candidate, 0)
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") || strings.HasSuffix(key, ".reactions.json") {
			continue
		}

		score, err := readMotionScore(provider, key)
		if err != nil {
			logger.Log.Warnw("Metadado ilegível ignorado pela retenção",
				"key", key,
				"error", err)
			continue
		}
		candidates = append(candidates, candidate{
			base:  strings.TrimSuffix(key, ".json"),
			score: score,
		})
	}

	if len(candidates) <= topK {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	for _, doomed := range candidates[topK:] {
		for _, suffix := range companionSuffixes {
			if err := provider.Delete(doomed.base + suffix); err != nil {
				logger.Log.Warnw("Falha ao remover arquivo na retenção",
					"key", doomed.base+suffix,
					"error", err)
			}
		}
		metrics.RecordingsDeleted.Inc()
		logger.Log.Infow("Gravação removida pela retenção",
			"base", doomed.base,
			"score", doomed.score)
	}

	return nil
}

func readMotionScore(provider store.Provider, key string) (float64, error) {
	obj, err := provider.Get(key)
	if err != nil {
		return 0, err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return 0, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0, err
	}
	return meta.Motion.Score, nil
}
